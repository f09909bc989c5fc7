package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/controller"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/carpore/carpore-backend/internal/router"
	"github.com/carpore/carpore-backend/internal/scheduler"
	"github.com/carpore/carpore-backend/internal/storage"
	ws "github.com/carpore/carpore-backend/internal/websocket"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/metrics"
	"github.com/carpore/carpore-backend/pkg/payment/razorpay"
	redisclient "github.com/carpore/carpore-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := cfg.Log.Level
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting CarPore Backend Server", map[string]interface{}{
		"environment":  cfg.Server.Environment,
		"port":         cfg.Server.Port,
		"log_level":    logLevel,
		"payment_mode": paymentMode(cfg),
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis backs carts, token revocation and idempotent checkout. Without it
	// carts live in process memory.
	var (
		cartRepo         repository.CartRepository
		revocations      *redisclient.Store
		idempotencyStore middleware.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		if err := redisclient.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer func() {
			if err := redisclient.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
		store := redisclient.NewStore(redisclient.GetClient())
		cartRepo = repository.NewRedisCartRepository(redisclient.GetClient(), cfg.Redis.CartTTL)
		revocations = store
		idempotencyStore = store
	} else {
		logger.Warn("Redis disabled, carts are kept in memory")
		cartRepo = repository.NewMemoryCartRepository(cfg.Redis.CartTTL)
	}

	var imageStore *storage.S3Storage
	var imageURL model.ImageURLFunc
	if cfg.S3.Bucket != "" {
		imageStore, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			logger.Warn("S3 storage unavailable, image uploads disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			imageURL = imageStore.PublicURL
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	hub := ws.NewHub()
	go hub.Run()

	userRepo := repository.NewUserRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())
	prefsRepo := repository.NewPreferencesRepository(db.GetDB())
	wishlistRepo := repository.NewWishlistRepository(db.GetDB())

	var revoker service.TokenRevoker
	var revocationChecker middleware.RevocationChecker
	if revocations != nil {
		revoker = revocations
		revocationChecker = revocations
	}

	authService := service.NewAuthService(
		userRepo,
		revoker,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	unsubscribe := authService.OnAuthStateChange(func(userID uint, user *model.User) {
		if err := hub.SendToUser(userID, ws.EventAuthState, map[string]interface{}{
			"signed_in": user != nil,
		}); err != nil {
			logger.Debug("Failed to push auth state", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	})
	defer unsubscribe()

	catalogService := service.NewCatalogService(repository.NewCatalogRepository(db.GetDB()), imageURL)
	cartService := service.NewCartService(cartRepo, catalogService, cfg.Checkout.MaxLineQuantity)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db.GetDB()), prefsRepo, hub)
	orderService := service.NewOrderService(orderRepo, notificationService)
	builder := service.NewOrderBuilder(cfg.Checkout, cfg.Payment.Razorpay.Currency)
	addressService := service.NewAddressService(repository.NewAddressRepository(db.GetDB()), builder)
	wishlistService := service.NewWishlistService(wishlistRepo, catalogService)
	userService := service.NewUserService(userRepo, prefsRepo, orderRepo, wishlistRepo)

	pending := service.NewPendingPayments()
	gateway, err := newPaymentGateway(cfg, pending)
	if err != nil {
		logger.Fatal("Failed to configure payment gateway", err)
	}

	tracker := service.NewAttemptTracker()
	checkoutService := service.NewCheckoutService(
		cartService,
		builder,
		orderService,
		gateway,
		notificationService,
		service.CheckoutOptions{
			RequireLogin:   cfg.Checkout.RequireLogin,
			PaymentTimeout: cfg.Checkout.PaymentTimeout,
		},
		tracker,
		service.NewMetricsObserver(checkoutMetrics),
		service.NewPushObserver(hub),
	)

	// attempts run in the background and end with this context
	appCtx, stopAttempts := context.WithCancel(context.Background())
	defer stopAttempts()

	controllers := router.Controllers{
		Auth:     controller.NewAuthController(authService, cartService),
		Catalog:  controller.NewCatalogController(catalogService),
		Cart:     controller.NewCartController(cartService, checkoutService),
		Checkout: controller.NewCheckoutController(appCtx, checkoutService, tracker, pending, controller.CheckoutControllerOptions{
			RequireLogin: cfg.Checkout.RequireLogin,
			AttemptTTL:   cfg.Scheduler.OrphanOrderTTL,
		}),
		Order:        controller.NewOrderController(orderService),
		User:         controller.NewUserController(userService, authService),
		Address:      controller.NewAddressController(addressService),
		Wishlist:     controller.NewWishlistController(wishlistService),
		Notification: controller.NewNotificationController(notificationService),
		WebSocket:    controller.NewWebSocketController(hub, cfg.CORS.AllowedOrigins),
	}
	if imageStore != nil {
		controllers.Upload = controller.NewUploadController(imageStore)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, revocationChecker)
	engine := router.NewRouter(controllers, authMiddleware, idempotencyStore, httpMetrics, registry, cfg).Setup()

	sweeper := scheduler.NewOrderSweeper(orderService, tracker, cronMetrics, cfg.Scheduler.OrphanOrderSpec, cfg.Scheduler.OrphanOrderTTL)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start order sweeper", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sweeper.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	stopAttempts()
	hub.Stop()
	logger.Info("Server stopped successfully", map[string]interface{}{
		"pending_payments": pending.Len(),
	})
}

func paymentMode(cfg *config.Config) string {
	if cfg.Payment.DemoMode {
		return service.PaymentModeDemo
	}
	return service.PaymentModeRazorpay
}

// newPaymentGateway selects the demo simulator or Razorpay. In demo mode the
// storefront answers the simulated prompt unless auto-confirm is set.
func newPaymentGateway(cfg *config.Config, pending *service.PendingPayments) (service.PaymentGateway, error) {
	rp := cfg.Payment.Razorpay
	if cfg.Payment.DemoMode {
		var confirmer service.Confirmer = service.CallbackConfirmer{Pending: pending}
		if cfg.Payment.DemoAutoConfirm {
			confirmer = service.AutoConfirmer{Accept: true}
		}
		return service.NewDemoGateway(confirmer, pending, cfg.Payment.DemoDelay, rp.StoreName, rp.ThemeColor), nil
	}

	client, err := razorpay.NewClient(razorpay.Config{
		KeyID:     rp.KeyID,
		KeySecret: rp.KeySecret,
		BaseURL:   rp.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return service.NewRazorpayGateway(client, pending, rp), nil
}
