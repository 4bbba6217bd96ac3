package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kamishop/kamishop-backend/api/controllers"
	"github.com/kamishop/kamishop-backend/api/middleware"
	"github.com/kamishop/kamishop-backend/internal/catalog"
	"github.com/kamishop/kamishop-backend/internal/cron"
	internalorders "github.com/kamishop/kamishop-backend/internal/orders"
	"github.com/kamishop/kamishop-backend/internal/notify"
	"github.com/kamishop/kamishop-backend/internal/stats"
	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/feishu"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/mail"
	"github.com/kamishop/kamishop-backend/pkg/metrics"
	"github.com/kamishop/kamishop-backend/pkg/migrate"
	"github.com/kamishop/kamishop-backend/pkg/redis"
)

const lockKeyFormat = "kamishop:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	// The cron worker never prepays or settles: the sweep only flips overdue
	// pending orders, so no gateway, settler or store metrics are wired.
	ordersSvc, err := internalorders.NewService(
		internalorders.NewRepository(dbClient.DB()),
		catalogSvc,
		catalogRepo,
		dbClient,
		nil,
		noopSettler{},
		cfg.Orders,
		true,
		nil,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	statsSvc, err := stats.NewService(dbClient.DB(), cfg.Orders.StockWarnThreshold)
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}

	dispatcher, err := notify.NewDispatcher(
		mail.NewMailer(cfg.Mail),
		feishu.NewClient(cfg.Feishu),
		nil,
		cfg.App.SiteURL,
		cfg.Orders.StockWarnThreshold,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger: logg,
		Orders: ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}

	reportJob, err := cron.NewDailyReportJob(cron.DailyReportJobParams{
		Logger: logg,
		Stats:  statsSvc,
		Notify: dispatcher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create daily report job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, reportJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})

	go serveSidecar(ctx, cfg, logg, reportJob)

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// serveSidecar exposes prometheus metrics, liveness and the manual report
// trigger on the worker's side port.
func serveSidecar(ctx context.Context, cfg *config.Config, logg *logger.Logger, reportJob cron.Job) {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
	)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/cron/daily-report", controllers.TriggerCronJob(reportJob, cfg.Cron.Secret, logg))

	addr := ":" + cfg.Cron.Port
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logg.Info(logg.WithField(ctx, "addr", addr), "starting cron sidecar server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "cron sidecar server stopped unexpectedly", err)
	}
}

type noopSettler struct{}

func (noopSettler) Reconcile(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("settlement not available on the cron worker")
}

func (noopSettler) Simulate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("settlement not available on the cron worker")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
