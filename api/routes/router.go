package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/grocery-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/grocery-backend/api/controllers/webhooks"
	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/internal/auth"
	"github.com/angelmondragon/grocery-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	product "github.com/angelmondragon/grocery-backend/internal/products"
	stripewebhook "github.com/angelmondragon/grocery-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/grocery-backend/pkg/auth/session"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
	"github.com/angelmondragon/grocery-backend/pkg/stripe"
)

type rateLimitStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies is everything the HTTP surface is built from. Redis, Sessions,
// Stripe, StripeWebhooks, WebhookGuard and the metrics fields are optional.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	Sessions       session.AccessSessionChecker
	Auth           auth.Service
	Products       product.Service
	Cart           cart.Service
	Orders         orders.Service
	Checkout       checkoutsvc.Service
	Stripe         *stripe.Client
	StripeWebhooks *stripewebhook.Service
	WebhookGuard   *stripewebhook.EventGuard
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// Optional dependencies are handed to middleware as untyped nils when absent.
	var (
		limiter     rateLimitStore
		idempotency redis.IdempotencyStore
		redisPinger controllers.Pinger
		guard       webhookGuard
		webhookSvc  webhookcontrollers.StripeWebhookService
	)
	if deps.Redis != nil {
		limiter = deps.Redis
		idempotency = deps.Redis
		redisPinger = deps.Redis
	}
	if deps.WebhookGuard != nil {
		guard = deps.WebhookGuard
	}
	if deps.StripeWebhooks != nil {
		webhookSvc = deps.StripeWebhooks
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		"username",
		cfg.AuthRateLimit.LoginUserLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		"email",
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    redisPinger,
		}, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", controllers.APIHealth())

		r.Get("/products", controllers.ProductList(deps.Products, logg))
		r.Get("/products/{productID}", controllers.ProductDetail(deps.Products, logg))
		r.Get("/suppliers", controllers.ProductSuppliers(deps.Products, logg))
		r.Get("/brands", controllers.ProductBrands(deps.Products, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(webhookSvc, deps.Stripe, guard, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(
				middleware.AuthRateLimit(registerPolicy, limiter, logg),
				middleware.Idempotency(idempotency, logg),
			).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Get("/profile", controllers.AuthProfile(deps.Auth, logg))
				r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Get("/", controllers.CartList(deps.Cart, logg))
			r.Post("/add", controllers.CartAdd(deps.Cart, logg))
			r.Put("/update", controllers.CartUpdate(deps.Cart, logg))
			r.Delete("/remove", controllers.CartRemove(deps.Cart, logg))
			r.Delete("/clear", controllers.CartClear(deps.Cart, logg))
			r.Post("/sync", controllers.CartSync(deps.Cart, logg))
		})

		// Checkout works for guests; a valid token attaches the user.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Idempotency(idempotency, logg))

			r.Post("/orders", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/orders/{order}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/orders/{order}/confirm-payment", controllers.OrderConfirmPayment(deps.Orders, logg))
			r.Post("/verify-payment", controllers.VerifyPayment(deps.Orders, logg))
			r.Post("/stripe/create-checkout-session", controllers.CheckoutSessionCreate(deps.Checkout, logg))
		})
	})

	return r
}
