package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kamishop/kamishop-backend/api/routes"
	"github.com/kamishop/kamishop-backend/internal/allocation"
	"github.com/kamishop/kamishop-backend/internal/catalog"
	internalorders "github.com/kamishop/kamishop-backend/internal/orders"
	"github.com/kamishop/kamishop-backend/internal/notify"
	"github.com/kamishop/kamishop-backend/internal/settlement"
	"github.com/kamishop/kamishop-backend/pkg/bigquery"
	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/feishu"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/mail"
	"github.com/kamishop/kamishop-backend/pkg/metrics"
	"github.com/kamishop/kamishop-backend/pkg/migrate"
	"github.com/kamishop/kamishop-backend/pkg/redis"
	"github.com/kamishop/kamishop-backend/pkg/wechat"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	testMode := cfg.FeatureFlags.PaymentTestMode

	var gateway wechat.Gateway
	if !testMode {
		client, err := wechat.NewClient(context.Background(), cfg.WeChatPay)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap wechat pay client", err)
			os.Exit(1)
		}
		gateway = client
	} else {
		logg.Warn(context.Background(), "payment test mode enabled, gateway disabled")
	}

	var sink notify.SaleSink
	if cfg.FeatureFlags.AnalyticsSink {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery client", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		sink = bqClient
	}

	dispatcher, err := notify.NewDispatcher(
		mail.NewMailer(cfg.Mail),
		feishu.NewClient(cfg.Feishu),
		sink,
		cfg.App.SiteURL,
		cfg.Orders.StockWarnThreshold,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ordersRepo := internalorders.NewRepository(dbClient.DB())

	settlementSvc, err := settlement.NewService(
		ordersRepo,
		allocation.NewEngine(),
		dbClient,
		gateway,
		dispatcher,
		redisClient,
		cfg.Orders.EventIdempotencyTTL,
		testMode,
		storeMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	ordersSvc, err := internalorders.NewService(
		ordersRepo,
		catalogSvc,
		catalogRepo,
		dbClient,
		gateway,
		settlementSvc,
		cfg.Orders,
		testMode,
		storeMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"test_mode": testMode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, catalogSvc, ordersSvc, settlementSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
