package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamishop/kamishop-backend/api/controllers"
	webhookcontrollers "github.com/kamishop/kamishop-backend/api/controllers/webhooks"
	"github.com/kamishop/kamishop-backend/api/middleware"
	"github.com/kamishop/kamishop-backend/internal/catalog"
	internalorders "github.com/kamishop/kamishop-backend/internal/orders"
	"github.com/kamishop/kamishop-backend/internal/settlement"
	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/logger"
)

// NewRouter wires the storefront HTTP surface. The settlement service is the
// same instance the orders service reconciles through, so webhook and poll
// paths share one row-locked settle step.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP controllers.Pinger,
	catalogService catalog.Service,
	ordersService internalorders.Service,
	settlementService settlement.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.SiteURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    redisP,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(catalogService, logg))
			r.Get("/{productId}", controllers.GetProduct(catalogService, logg))
			r.Post("/{productId}/orders", controllers.CreateOrder(ordersService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Get("/{orderId}/status", controllers.GetOrderStatus(ordersService, logg))
		})

		r.Post("/payments/wechat/notify", webhookcontrollers.WeChatNotify(settlementService, logg))
	})

	return r
}
