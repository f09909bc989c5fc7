package controller

import (
	"net/http"
	"strings"
	"testing"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addToCart(t *testing.T, s *testStack, who requestOpts, itemID string, qty int) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"item_id": itemID, "quantity": qty}, who)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCheckoutController_GetConfig(t *testing.T) {
	s := setupStack(t, stackOptions{requireLogin: true})

	w := s.do(t, http.MethodGet, "/api/v1/checkout/config", nil, newGuest())
	require.Equal(t, http.StatusOK, w.Code)

	data := dataOf(t, w)
	assert.Equal(t, "demo", data["payment_mode"])
	assert.Equal(t, true, data["require_login"])
}

func TestCheckoutController_DemoPaymentCompletesOrder(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 2)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	attempt := dataOf(t, w)
	assert.Equal(t, "awaiting_payment", attempt["state"])
	assert.NotEmpty(t, attempt["order_number"])
	intent, ok := attempt["payment_intent"].(map[string]interface{})
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(intent["id"].(string), "order_demo_"))
	assert.Equal(t, "638.00", intent["amount"])
	assert.Equal(t, float64(63800), intent["amount_minor"])

	attemptID := attempt["id"].(string)
	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/payment", gin.H{"status": "success"}, guest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	final := dataOf(t, w)
	assert.Equal(t, "completed", final["state"])
	assert.Equal(t, true, final["finished"])
	assert.True(t, strings.HasPrefix(final["payment_id"].(string), "pay_demo_"))

	var order model.Order
	require.NoError(t, s.db.Preload("Items").First(&order, uint(final["order_id"].(float64))).Error)
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, model.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "638.00", order.Total.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	w = s.do(t, http.MethodGet, "/api/v1/cart", nil, guest)
	assert.Equal(t, float64(0), dataOf(t, w)["count"])
}

func TestCheckoutController_AutoConfirmCompletesInOneRequest(t *testing.T) {
	s := setupStack(t, stackOptions{autoConfirm: true})
	guest := newGuest()
	addToCart(t, s, guest, camphorID, 1)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Order placed successfully", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["state"])

	totals := data["totals"].(map[string]interface{})
	assert.Equal(t, "249.00", totals["subtotal"])
	assert.Equal(t, "50.00", totals["shipping"])
	assert.Equal(t, "299.00", totals["total"])
}

func TestCheckoutController_EmptyCart(t *testing.T) {
	s := setupStack(t, stackOptions{})

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), newGuest())
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "CART_EMPTY", body["error"])

	var count int64
	s.db.Model(&model.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestCheckoutController_InvalidDetails(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)

	body := checkoutBody()
	body["shipping_address"] = gin.H{"street": "12 MG Road", "city": "Bengaluru", "state": "Karnataka", "pincode": "5600"}

	w := s.do(t, http.MethodPost, "/api/v1/checkout", body, guest)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "VALIDATION_INVALID_INPUT", resp["error"])
	fields := resp["fields"].(map[string]interface{})
	assert.Contains(t, fields, "pincode")
}

func TestCheckoutController_LoginRequired(t *testing.T) {
	s := setupStack(t, stackOptions{requireLogin: true})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	assert.Equal(t, "CHECKOUT_LOGIN_REQUIRED", decode(t, w)["error"])

	user := createUser(t, s.db, "asha@example.com")
	member := requestOpts{userID: user.ID}
	addToCart(t, s, member, cedarID, 1)

	w = s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), member)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var order model.Order
	require.NoError(t, s.db.Where("order_number = ?", dataOf(t, w)["order_number"]).First(&order).Error)
	assert.Equal(t, user.ID, order.UserID)
}

func TestCheckoutController_DismissedPaymentKeepsOrderAndRetries(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	first := dataOf(t, w)
	attemptID := first["id"].(string)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/cancel", nil, guest)
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "PAYMENT_CANCELLED", resp["error"])
	assert.Equal(t, "Payment cancelled by user", resp["message"])

	// the order stays pending and the cart is untouched
	var order model.Order
	require.NoError(t, s.db.Where("order_number = ?", first["order_number"]).First(&order).Error)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	w = s.do(t, http.MethodGet, "/api/v1/cart", nil, guest)
	assert.Equal(t, float64(1), dataOf(t, w)["count"])

	retry := checkoutBody()
	retry["attempt_id"] = attemptID
	w = s.do(t, http.MethodPost, "/api/v1/checkout", retry, guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	second := dataOf(t, w)
	assert.Equal(t, first["order_number"], second["order_number"])

	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/payment", gin.H{"status": "success"}, guest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var count int64
	s.db.Model(&model.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCheckoutController_FailedPayment(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	attemptID := dataOf(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/payment", gin.H{"status": "dismissed"}, guest)
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	assert.Equal(t, "PAYMENT_CANCELLED", decode(t, w)["error"])

	// a finished attempt no longer accepts payment outcomes
	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/payment", gin.H{"status": "success"}, guest)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CHECKOUT_NOT_AWAITING_PAYMENT", decode(t, w)["error"])
}

func TestCheckoutController_AttemptsAreScopedToSession(t *testing.T) {
	s := setupStack(t, stackOptions{})
	owner := newGuest()
	addToCart(t, s, owner, cedarID, 1)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), owner)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	attemptID := dataOf(t, w)["id"].(string)

	stranger := newGuest()
	w = s.do(t, http.MethodGet, "/api/v1/checkout/"+attemptID, nil, stranger)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/payment", gin.H{"status": "success"}, stranger)
	assert.Equal(t, http.StatusNotFound, w.Code)

	hijack := checkoutBody()
	hijack["attempt_id"] = attemptID
	w = s.do(t, http.MethodPost, "/api/v1/checkout", hijack, stranger)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/checkout/"+attemptID, nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "awaiting_payment", dataOf(t, w)["state"])
}

func TestCheckoutController_DuplicateStartWhileRunning(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)

	attemptID := uuid.NewString()
	body := checkoutBody()
	body["attempt_id"] = attemptID

	w := s.do(t, http.MethodPost, "/api/v1/checkout", body, guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/checkout", body, guest)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CHECKOUT_DUPLICATE_REQUEST", decode(t, w)["error"])
}

func TestCheckoutController_IdempotencyKeyNamesAttempt(t *testing.T) {
	s := setupStack(t, stackOptions{})
	guest := newGuest()
	addToCart(t, s, guest, cedarID, 1)
	guest.header = map[string]string{middleware.IdempotencyKeyHeader: "checkout-42"}

	w := s.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody(), guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	first := dataOf(t, w)
	assert.Equal(t, ScopedIdempotencyKey("guest:"+guest.guest, "checkout-42"), first["id"])

	w = s.do(t, http.MethodPost, "/api/v1/checkout/"+first["id"].(string)+"/cancel", nil, guest)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// a new key with the same attempt id still reuses the order
	retry := checkoutBody()
	retry["attempt_id"] = first["id"]
	guest.header = map[string]string{middleware.IdempotencyKeyHeader: "checkout-43"}
	w = s.do(t, http.MethodPost, "/api/v1/checkout", retry, guest)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, first["order_number"], dataOf(t, w)["order_number"])
}

func TestCheckoutController_InvalidAttemptID(t *testing.T) {
	s := setupStack(t, stackOptions{})
	body := checkoutBody()
	body["attempt_id"] = "not-a-uuid"

	w := s.do(t, http.MethodPost, "/api/v1/checkout", body, newGuest())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScopedIdempotencyKey(t *testing.T) {
	a := ScopedIdempotencyKey(middleware.UserCartSession(1), "key-1")
	assert.Equal(t, a, ScopedIdempotencyKey(middleware.UserCartSession(1), "key-1"))
	assert.NotEqual(t, a, ScopedIdempotencyKey(middleware.UserCartSession(2), "key-1"))
	assert.NotEqual(t, a, ScopedIdempotencyKey(middleware.UserCartSession(1), "key-2"))
	assert.LessOrEqual(t, len(a), 64)
}

func TestCheckoutFailure(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		fields  map[string]string
		status  int
		code    string
		message string
	}{
		{"empty cart", "validation", map[string]string{"cart": "must contain at least one item"}, http.StatusBadRequest, "CART_EMPTY", ""},
		{"invalid input", "validation", map[string]string{"email": "is invalid"}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT", ""},
		{"auth", "auth", nil, http.StatusUnauthorized, "CHECKOUT_LOGIN_REQUIRED", ""},
		{"persistence", "persistence", nil, http.StatusServiceUnavailable, "ORDER_PERSISTENCE_FAILED", ""},
		{"gateway", "gateway", nil, http.StatusPaymentRequired, "PAYMENT_FAILED", ""},
		{"reconciliation", "reconciliation", nil, http.StatusConflict, "PAYMENT_CAPTURED_CONFIRMATION_PENDING", "contact support"},
		{"internal", "internal", nil, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := service.CheckoutAttempt{ErrorKind: tt.kind, Fields: tt.fields, Error: "contact support"}
			status, code, message := checkoutFailure(attempt)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			if tt.message != "" {
				assert.Equal(t, tt.message, message)
			}
		})
	}

	status, code, _ := checkoutFailure(service.CheckoutAttempt{ErrorKind: "gateway", Unverified: true})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "PAYMENT_SIGNATURE_INVALID", code)
}
