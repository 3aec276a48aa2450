package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/api/routes"
	checkoutsvc "github.com/shreesanatan/pujapath-backend/internal/checkout"
	"github.com/shreesanatan/pujapath-backend/internal/identity"
	"github.com/shreesanatan/pujapath-backend/internal/notifications"
	"github.com/shreesanatan/pujapath-backend/internal/otp"
	"github.com/shreesanatan/pujapath-backend/internal/payments"
	"github.com/shreesanatan/pujapath-backend/pkg/auth/session"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/metrics"
	"github.com/shreesanatan/pujapath-backend/pkg/migrate"
	internalorders "github.com/shreesanatan/pujapath-backend/internal/orders"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
	"github.com/shreesanatan/pujapath-backend/pkg/razorpay"
	"github.com/shreesanatan/pujapath-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	dbClient, err := openDatabase(context.Background(), cfg, logg)
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	smsSender, err := notifications.NewSMSSender(cfg.Twilio, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sms sender", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	identityService, err := identity.NewService(identity.ServiceParams{
		Runner:         dbClient,
		Repo:           identity.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Events:         outboxService,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}

	otpService, err := otp.NewService(otp.ServiceParams{
		Store:    otp.NewStore(redisClient),
		Sender:   smsSender,
		Identity: identityService,
		Metrics:  storefrontMetrics,
		Config:   cfg.OTP,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create otp service", err)
		os.Exit(1)
	}

	verifier, err := payments.NewVerifier(gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Gateway:  gateway,
		Verifier: verifier,
		Runner:   dbClient,
		Orders:   internalorders.NewRepository(dbClient.DB()),
		Events:   outboxService,
		Metrics:  storefrontMetrics,
		Config:   cfg.Checkout,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			SessionManager:  sessionManager,
			OTPService:      otpService,
			CheckoutService: checkoutService,
			MetricsGatherer: registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

// openDatabase prefers Postgres; the sqlite flag exists for local single-binary
// development without a running Postgres.
func openDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	if cfg.FeatureFlags.UseSQLite {
		conn, err := gorm.Open(sqlite.Open("pujapath.db"), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		logg.Info(ctx, "using sqlite database")
		return db.NewFromConn(conn), nil
	}
	return db.New(ctx, cfg.DB, logg)
}
