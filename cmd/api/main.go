package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/grocery-backend/api/routes"
	"github.com/angelmondragon/grocery-backend/internal/auth"
	"github.com/angelmondragon/grocery-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/internal/payments"
	product "github.com/angelmondragon/grocery-backend/internal/products"
	"github.com/angelmondragon/grocery-backend/internal/users"
	stripewebhook "github.com/angelmondragon/grocery-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/grocery-backend/pkg/auth/session"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/migrate"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
	"github.com/angelmondragon/grocery-backend/pkg/security"
	"github.com/angelmondragon/grocery-backend/pkg/stripe"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	deps := routes.Dependencies{Config: cfg, Logger: logg, DB: dbClient}

	var sessions *session.Manager
	if cfg.Redis.Enabled() {
		redisClient, redisErr := redis.New(ctx, cfg.Redis, logg)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		deps.Redis = redisClient

		if sessions, err = session.NewManager(redisClient, cfg.JWT); err != nil {
			return err
		}
		deps.Sessions = sessions
	} else {
		logg.Warn(ctx, "redis not configured; sessions, rate limits and idempotency disabled")
	}

	registry := prometheus.NewRegistry()
	var checkoutMetrics *metrics.CheckoutMetrics
	if cfg.FeatureFlags.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		checkoutMetrics = metrics.NewCheckoutMetrics(registry)
		deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)
		deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	authParams := auth.ServiceParams{
		UserRepo:  users.NewRepository(dbClient.DB()),
		Hasher:    security.NewHasher(cfg.Password),
		JWTConfig: cfg.JWT,
		Logger:    logg,
	}
	if sessions != nil {
		authParams.SessionManager = sessions
	}
	if deps.Auth, err = auth.NewService(authParams); err != nil {
		return err
	}

	productRepo := product.NewRepository(dbClient.DB())
	if deps.Products, err = product.NewService(productRepo); err != nil {
		return err
	}

	if deps.Cart, err = cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(dbClient.DB()),
		Products: productRepo,
		Logger:   logg,
		Metrics:  checkoutMetrics,
	}); err != nil {
		return err
	}

	orderParams := orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Cart:     deps.Cart,
		Products: productRepo,
		Logger:   logg,
		Metrics:  checkoutMetrics,
		Numbers:  orders.NewNumberGenerator(cfg.Checkout.OrderNumberPrefix),
	}

	var sessionCreator checkoutsvc.SessionCreator
	if cfg.Stripe.Enabled() {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		adapter, err := payments.NewStripeAdapter(stripeClient)
		if err != nil {
			return err
		}
		deps.Stripe = stripeClient
		orderParams.Payments = adapter
		sessionCreator = adapter
	} else {
		logg.Warn(ctx, "stripe not configured; card checkout disabled")
	}

	if deps.Orders, err = orders.NewService(orderParams); err != nil {
		return err
	}
	if deps.Checkout, err = checkoutsvc.NewService(productRepo, sessionCreator, logg); err != nil {
		return err
	}

	if deps.Stripe.WebhooksEnabled() {
		if deps.StripeWebhooks, err = stripewebhook.NewService(stripewebhook.ServiceParams{Orders: deps.Orders, Logger: logg}); err != nil {
			return err
		}
		if deps.Redis != nil {
			if deps.WebhookGuard, err = stripewebhook.NewEventGuard(deps.Redis, cfg.Checkout.WebhookEventTTL); err != nil {
				return err
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"stripe": cfg.Stripe.Enabled(),
		"redis":  cfg.Redis.Enabled(),
	})
	logg.Info(logCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
