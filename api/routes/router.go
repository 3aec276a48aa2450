package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shreesanatan/pujapath-backend/api/controllers"
	"github.com/shreesanatan/pujapath-backend/api/middleware"
	checkoutsvc "github.com/shreesanatan/pujapath-backend/internal/checkout"
	"github.com/shreesanatan/pujapath-backend/internal/otp"
	"github.com/shreesanatan/pujapath-backend/pkg/auth/session"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

type pinger interface {
	Ping(context.Context) error
}

// Deps carries everything the router needs. cmd/api builds one after
// bootstrapping the services.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              pinger
	Redis           *redis.Client
	SessionManager  sessionManager
	OTPService      otp.Service
	CheckoutService checkoutsvc.Service
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	otpPolicy := middleware.NewOTPRateLimitPolicy(
		"request-otp",
		cfg.RateLimit.OTPWindow,
		cfg.RateLimit.OTPIPLimit,
		cfg.RateLimit.OTPPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.OTPRateLimit(otpPolicy, deps.Redis, logg)).Post("/request-otp", controllers.AuthRequestOTP(deps.OTPService, logg))
		r.With(middleware.OTPRateLimit(otpPolicy, deps.Redis, logg)).Post("/verify-otp", controllers.AuthVerifyOTP(deps.OTPService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.SessionManager, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(deps.SessionManager, cfg.JWT, logg))
	})

	// quoting is anonymous so the cart page can price before sign-in
	r.Post("/api/v1/checkout/quote", controllers.CheckoutQuote(deps.CheckoutService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/checkout/payment-order", controllers.CheckoutPaymentOrder(deps.CheckoutService, logg))
		r.Post("/checkout", controllers.CheckoutComplete(deps.CheckoutService, logg))

		r.Get("/orders", controllers.OrdersList(deps.CheckoutService, logg))
		r.Get("/orders/{orderId}", controllers.OrdersDetail(deps.CheckoutService, logg))
	})

	return r
}
