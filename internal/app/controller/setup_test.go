package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	cedarID   = "wood-infused-cedar"   // 319.00
	camphorID = "camphor-pure-camphor" // 249.00

	testUserHeader = "X-Test-User"
)

type testStack struct {
	db       *gorm.DB
	router   *gin.Engine
	cart     service.CartService
	orders   service.OrderService
	auth     service.AuthService
	checkout service.CheckoutService
	tracker  *service.AttemptTracker
	pending  *service.PendingPayments
}

type stackOptions struct {
	requireLogin bool
	autoConfirm  bool
}

// withTestUser stands in for the auth middleware; X-Test-User carries the user id
func withTestUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(testUserHeader); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err == nil {
				c.Set(middleware.UserIDKey, uint(id))
				c.Set(middleware.UserRoleKey, model.RoleCustomer)
			}
		}
		c.Next()
	}
}

func setupStack(t *testing.T, opts stackOptions) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	require.NoError(t, db.SeedCatalog(testDB, db.DefaultCatalog(), false))

	checkoutCfg := config.CheckoutConfig{
		OrderNumberPrefix:     "CP",
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFee:           decimal.NewFromInt(50),
		TaxRate:               decimal.Zero,
		DefaultCountry:        "India",
		MaxLineQuantity:       10,
	}

	catalog := service.NewCatalogService(repository.NewCatalogRepository(testDB), func(key string) string {
		return "https://cdn.example.com/" + key
	})
	cartService := service.NewCartService(repository.NewMemoryCartRepository(time.Hour), catalog, checkoutCfg.MaxLineQuantity)
	orderRepo := repository.NewOrderRepository(testDB)
	notifications := service.NewNotificationService(
		repository.NewNotificationRepository(testDB),
		repository.NewPreferencesRepository(testDB),
		nil,
	)
	orderService := service.NewOrderService(orderRepo, notifications)
	authService := service.NewAuthService(repository.NewUserRepository(testDB), nil, "test-secret", time.Hour, 24*time.Hour)

	pending := service.NewPendingPayments()
	var confirmer service.Confirmer = service.CallbackConfirmer{Pending: pending}
	if opts.autoConfirm {
		confirmer = service.AutoConfirmer{Accept: true}
	}
	gateway := service.NewDemoGateway(confirmer, pending, 0, "CarPore", "#2f5d50")

	tracker := service.NewAttemptTracker()
	checkoutService := service.NewCheckoutService(
		cartService,
		service.NewOrderBuilder(checkoutCfg, "INR"),
		orderService,
		gateway,
		notifications,
		service.CheckoutOptions{RequireLogin: opts.requireLogin},
		tracker,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	checkoutCtrl := NewCheckoutController(ctx, checkoutService, tracker, pending, CheckoutControllerOptions{
		RequireLogin: opts.requireLogin,
		WaitTimeout:  5 * time.Second,
	})
	cartCtrl := NewCartController(cartService, checkoutService)
	orderCtrl := NewOrderController(orderService)
	authCtrl := NewAuthController(authService, cartService)
	catalogCtrl := NewCatalogController(catalog)

	router := gin.New()
	api := router.Group("/api/v1", withTestUser(), middleware.CartSession())
	{
		api.POST("/auth/register", authCtrl.Register)
		api.POST("/auth/login", authCtrl.Login)

		api.GET("/products", catalogCtrl.GetItems)
		api.GET("/products/featured", catalogCtrl.GetFeaturedItems)
		api.GET("/products/:id", catalogCtrl.GetItem)

		api.GET("/cart", cartCtrl.GetCart)
		api.GET("/cart/quote", cartCtrl.GetQuote)
		api.POST("/cart/items", cartCtrl.AddToCart)
		api.PUT("/cart/items/:item_id", cartCtrl.UpdateCartItem)
		api.DELETE("/cart/items/:item_id", cartCtrl.RemoveCartItem)
		api.DELETE("/cart", cartCtrl.ClearCart)
		api.POST("/cart/merge", cartCtrl.MergeGuestCart)

		api.GET("/checkout/config", checkoutCtrl.GetConfig)
		api.POST("/checkout", middleware.Idempotency(nil, 0, false), checkoutCtrl.StartCheckout)
		api.GET("/checkout/:attempt_id", checkoutCtrl.GetAttempt)
		api.POST("/checkout/:attempt_id/payment", checkoutCtrl.SubmitPayment)
		api.POST("/checkout/:attempt_id/cancel", checkoutCtrl.CancelAttempt)

		api.GET("/orders", orderCtrl.GetOrders)
		api.GET("/orders/:id", orderCtrl.GetOrderByID)
		api.GET("/orders/number/:order_number", orderCtrl.GetOrderByNumber)
		api.POST("/orders/:id/cancel", orderCtrl.CancelOrder)
	}

	return &testStack{
		db:       testDB,
		router:   router,
		cart:     cartService,
		orders:   orderService,
		auth:     authService,
		checkout: checkoutService,
		tracker:  tracker,
		pending:  pending,
	}
}

// requestOpts identify the caller: a guest cart session, a user id, or both
type requestOpts struct {
	guest  string
	userID uint
	header map[string]string
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}, opts requestOpts) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if opts.guest != "" {
		req.Header.Set(middleware.CartSessionHeader, opts.guest)
	}
	if opts.userID != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(opts.userID), 10))
	}
	for k, v := range opts.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decode(t, w)["data"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return data
}

func newGuest() requestOpts {
	return requestOpts{guest: uuid.NewString()}
}

func createUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Asha",
		LastName:     "Rao",
		Phone:        "9876543210",
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func checkoutBody() gin.H {
	return gin.H{
		"customer": gin.H{
			"first_name": "Asha",
			"last_name":  "Rao",
			"email":      "asha@example.com",
			"phone":      "9876543210",
		},
		"shipping_address": gin.H{
			"street":  "12 MG Road",
			"city":    "Bengaluru",
			"state":   "Karnataka",
			"pincode": "560001",
		},
	}
}
