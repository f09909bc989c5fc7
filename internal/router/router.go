package router

import (
	"net/http"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/controller"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/carpore/carpore-backend/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Controllers groups every HTTP handler the router mounts. Upload is nil when
// S3 is not configured.
type Controllers struct {
	Auth         *controller.AuthController
	Catalog      *controller.CatalogController
	Cart         *controller.CartController
	Checkout     *controller.CheckoutController
	Order        *controller.OrderController
	User         *controller.UserController
	Address      *controller.AddressController
	Wishlist     *controller.WishlistController
	Notification *controller.NotificationController
	Upload       *controller.UploadController
	WebSocket    *controller.WebSocketController
}

type Router struct {
	controllers      Controllers
	authMiddleware   *middleware.AuthMiddleware
	idempotencyStore middleware.IdempotencyStore
	httpMetrics      *metrics.HTTPMetrics
	gatherer         prometheus.Gatherer
	config           *config.Config
}

// NewRouter wires routes. idempotencyStore and gatherer may be nil.
func NewRouter(
	controllers Controllers,
	authMiddleware *middleware.AuthMiddleware,
	idempotencyStore middleware.IdempotencyStore,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		controllers:      controllers,
		authMiddleware:   authMiddleware,
		idempotencyStore: idempotencyStore,
		httpMetrics:      httpMetrics,
		gatherer:         gatherer,
		config:           cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))
	router.Use(r.httpMetrics.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"message":      "CarPore API is running",
			"payment_mode": paymentMode(r.config),
			"time":         time.Now().UTC(),
		})
	})
	if r.gatherer != nil {
		router.GET("/metrics", metrics.Handler(r.gatherer))
	}

	ctrl := r.controllers
	auth := r.authMiddleware

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", ctrl.Auth.Register)
			authGroup.POST("/login", ctrl.Auth.Login)
			authGroup.POST("/refresh", ctrl.Auth.RefreshToken)
			authGroup.POST("/logout", auth.Authenticate(), ctrl.Auth.Logout)
			authGroup.GET("/me", auth.Authenticate(), ctrl.Auth.GetMe)
		}

		catalog := v1.Group("")
		{
			catalog.GET("/products", ctrl.Catalog.GetItems)
			catalog.GET("/products/featured", ctrl.Catalog.GetFeaturedItems)
			catalog.GET("/products/:id", ctrl.Catalog.GetItem)
			catalog.GET("/categories", ctrl.Catalog.GetCategories)
			catalog.GET("/categories/:id", ctrl.Catalog.GetCategory)
		}

		// guests and signed-in users share the cart and checkout routes
		cart := v1.Group("/cart")
		cart.Use(auth.OptionalAuthenticate(), middleware.CartSession())
		{
			cart.GET("", ctrl.Cart.GetCart)
			cart.GET("/quote", ctrl.Cart.GetQuote)
			cart.POST("/items", ctrl.Cart.AddToCart)
			cart.PUT("/items/:item_id", ctrl.Cart.UpdateCartItem)
			cart.DELETE("/items/:item_id", ctrl.Cart.RemoveCartItem)
			cart.DELETE("", ctrl.Cart.ClearCart)
			cart.POST("/merge", auth.Authenticate(), ctrl.Cart.MergeGuestCart)
		}

		checkout := v1.Group("/checkout")
		checkout.Use(auth.OptionalAuthenticate(), middleware.CartSession())
		{
			checkout.GET("/config", ctrl.Checkout.GetConfig)
			checkout.POST("",
				middleware.Idempotency(r.idempotencyStore, r.config.Checkout.IdempotencyTTL, false),
				ctrl.Checkout.StartCheckout,
			)
			checkout.GET("/:attempt_id", ctrl.Checkout.GetAttempt)
			checkout.POST("/:attempt_id/payment", ctrl.Checkout.SubmitPayment)
			checkout.POST("/:attempt_id/cancel", ctrl.Checkout.CancelAttempt)
		}

		orders := v1.Group("/orders")
		orders.Use(auth.Authenticate())
		{
			orders.GET("", ctrl.Order.GetOrders)
			orders.GET("/:id", ctrl.Order.GetOrderByID)
			orders.GET("/number/:order_number", ctrl.Order.GetOrderByNumber)
			orders.POST("/:id/cancel", ctrl.Order.CancelOrder)
		}

		users := v1.Group("/users/me")
		users.Use(auth.Authenticate())
		{
			users.GET("", ctrl.User.GetProfile)
			users.PUT("", ctrl.User.UpdateProfile)
			users.DELETE("", ctrl.User.Deactivate)
			users.GET("/stats", ctrl.User.GetStats)
			users.GET("/preferences", ctrl.User.GetPreferences)
			users.PUT("/preferences", ctrl.User.UpdatePreferences)
		}

		addresses := v1.Group("/addresses")
		addresses.Use(auth.Authenticate())
		{
			addresses.GET("", ctrl.Address.GetAddresses)
			addresses.GET("/default", ctrl.Address.GetDefaultAddress)
			addresses.POST("", ctrl.Address.CreateAddress)
			addresses.PUT("/:id", ctrl.Address.UpdateAddress)
			addresses.DELETE("/:id", ctrl.Address.DeleteAddress)
			addresses.PUT("/:id/default", ctrl.Address.SetDefaultAddress)
		}

		wishlist := v1.Group("/wishlist")
		wishlist.Use(auth.Authenticate())
		{
			wishlist.GET("", ctrl.Wishlist.GetWishlist)
			wishlist.POST("", ctrl.Wishlist.AddToWishlist)
			wishlist.GET("/:item_id", ctrl.Wishlist.CheckWishlist)
			wishlist.DELETE("/:item_id", ctrl.Wishlist.RemoveFromWishlist)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(auth.Authenticate())
		{
			notifications.GET("", ctrl.Notification.GetNotifications)
			notifications.GET("/unread-count", ctrl.Notification.GetUnreadCount)
			notifications.PUT("/read-all", ctrl.Notification.MarkAllAsRead)
			notifications.PUT("/:id/read", ctrl.Notification.MarkAsRead)
			notifications.DELETE("/:id", ctrl.Notification.DeleteNotification)
		}

		ws := v1.Group("/ws")
		ws.Use(auth.Authenticate())
		{
			ws.GET("", ctrl.WebSocket.Connect)
			ws.GET("/presence", ctrl.WebSocket.Presence)
		}

		admin := v1.Group("/admin")
		admin.Use(auth.Authenticate(), auth.RequireRole(model.RoleAdmin))
		{
			admin.POST("/catalog/import", ctrl.Catalog.ImportCatalog)
			admin.GET("/catalog/export", ctrl.Catalog.ExportCatalog)
			admin.POST("/users/:id/reactivate", ctrl.User.Reactivate)
			if ctrl.Upload != nil {
				admin.POST("/uploads/presigned-url", ctrl.Upload.GeneratePresignedURL)
			}
		}
	}

	return router
}

func paymentMode(cfg *config.Config) string {
	if cfg.Payment.DemoMode {
		return "demo"
	}
	return "razorpay"
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Cart-Session, Idempotency-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Cart-Session, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
