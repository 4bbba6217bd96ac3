package orders

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/internal/catalog"
	"github.com/kamishop/kamishop-backend/pkg/config"
	pkgdb "github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/wechat"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.PricingTier{}, &models.Order{}, &models.Card{}); err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

type fakeGateway struct {
	codeURL    string
	prepayErr  error
	queryState wechat.TradeState
	queryErr   error
	prepays    int
}

func (g *fakeGateway) CreateNativeOrder(ctx context.Context, params wechat.PrepayParams) (string, error) {
	g.prepays++
	if g.prepayErr != nil {
		return "", g.prepayErr
	}
	if g.codeURL == "" {
		return "weixin://wxpay/bizpayurl?pr=test", nil
	}
	return g.codeURL, nil
}

func (g *fakeGateway) QueryOrder(ctx context.Context, outTradeNo string) (*wechat.OrderState, error) {
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	state := g.queryState
	if state == "" {
		state = wechat.TradeStateNotPaid
	}
	return &wechat.OrderState{OutTradeNo: outTradeNo, State: state}, nil
}

func (g *fakeGateway) VerifyNotify(ctx context.Context, req *http.Request) (*wechat.PaymentEvent, error) {
	return nil, nil
}

type fakeSettler struct {
	repo       *Repository
	reconciles int
	simulates  int
}

func (f *fakeSettler) Reconcile(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.reconciles++
	return f.repo.FindByID(ctx, orderID)
}

func (f *fakeSettler) Simulate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.simulates++
	return f.repo.FindByID(ctx, orderID)
}

type testEnv struct {
	db      *gorm.DB
	svc     Service
	repo    *Repository
	gateway *fakeGateway
	settler *fakeSettler
}

func newTestEnv(t *testing.T, testMode bool) *testEnv {
	t.Helper()
	db := newTestDB(t)

	catalogRepo := catalog.NewRepository(db)
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}

	repo := NewRepository(db)
	gateway := &fakeGateway{}
	settler := &fakeSettler{repo: repo}

	cfg := config.OrdersConfig{
		ExpireAfter: 30 * time.Minute,
		MaxQuantity: 10,
	}
	svc, err := NewService(repo, catalogSvc, catalogRepo, pkgdb.NewWithConn(db), gateway, settler, cfg, testMode, nil, testLogger())
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	return &testEnv{db: db, svc: svc, repo: repo, gateway: gateway, settler: settler}
}

func seedProduct(t *testing.T, db *gorm.DB, price string, cardCount int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		Name:     "Game Key",
		Slug:     "game-key-" + uuid.NewString()[:8],
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	for i := 0; i < cardCount; i++ {
		card := &models.Card{
			ID:        uuid.New(),
			ProductID: product.ID,
			Content:   "KEY-" + uuid.NewString()[:8],
			Status:    enums.CardStatusUnsold,
		}
		if err := db.Create(card).Error; err != nil {
			t.Fatalf("create card: %v", err)
		}
	}
	return product
}
