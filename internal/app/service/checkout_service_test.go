package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingObserver keeps every snapshot it is shown
type recordingObserver struct {
	mu        sync.Mutex
	snapshots []CheckoutAttempt
}

func (r *recordingObserver) OnStateChange(a CheckoutAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, a)
}

func (r *recordingObserver) states() []CheckoutState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CheckoutState, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		out = append(out, s.State)
	}
	return out
}

// scriptedGateway returns canned results
type scriptedGateway struct {
	intentErr error
	openErr   error
	intents   int
	opened    int
}

func (g *scriptedGateway) Mode() string { return "scripted" }

func (g *scriptedGateway) CreateIntent(_ context.Context, amount model.Money, currency, receipt string) (*PaymentIntent, error) {
	g.intents++
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	return &PaymentIntent{ID: "order_scripted", Amount: amount, AmountMinor: amount.MinorUnits(), Currency: currency, Receipt: receipt}, nil
}

func (g *scriptedGateway) Open(_ context.Context, intent *PaymentIntent, _ PaymentContact) (*PaymentResult, error) {
	g.opened++
	if g.openErr != nil {
		return nil, g.openErr
	}
	return &PaymentResult{Provider: "scripted", PaymentID: "pay_scripted", GatewayOrderID: intent.ID, Signature: "sig"}, nil
}

// unconfirmableOrders fails every payment write
type unconfirmableOrders struct {
	OrderService
}

func (unconfirmableOrders) UpdateOrderPayment(_ context.Context, orderID uint, _ model.PaymentUpdate) (*model.Order, error) {
	return nil, &PersistenceError{Op: "update_payment", Err: errors.New("database is read-only")}
}

// recoveringOrders fails payment writes until failing is cleared
type recoveringOrders struct {
	OrderService
	failing bool
}

func (o *recoveringOrders) UpdateOrderPayment(ctx context.Context, orderID uint, update model.PaymentUpdate) (*model.Order, error) {
	if o.failing {
		return nil, &PersistenceError{Op: "update_payment", Err: errors.New("database is read-only")}
	}
	return o.OrderService.UpdateOrderPayment(ctx, orderID, update)
}

type checkoutFixture struct {
	db       *gorm.DB
	cart     CartService
	orders   OrderService
	user     *model.User
	observer *recordingObserver
	tracker  *AttemptTracker
	session  string
}

func setupCheckoutFixture(t *testing.T) *checkoutFixture {
	testDB := setupCatalogDB(t)
	notifications := NewNotificationService(
		repository.NewNotificationRepository(testDB),
		repository.NewPreferencesRepository(testDB),
		nil,
	)
	f := &checkoutFixture{
		db:       testDB,
		cart:     NewCartService(repository.NewMemoryCartRepository(time.Hour), newTestCatalog(testDB), 0),
		orders:   NewOrderService(repository.NewOrderRepository(testDB), notifications),
		user:     createTestUser(t, testDB, "asha@example.com"),
		observer: &recordingObserver{},
		tracker:  NewAttemptTracker(),
	}
	f.session = "user:1"
	_, err := f.cart.AddItem(context.Background(), f.session, cedarID, 1)
	require.NoError(t, err)
	return f
}

func (f *checkoutFixture) service(gateway PaymentGateway, orders OrderService, opts CheckoutOptions) CheckoutService {
	if orders == nil {
		orders = f.orders
	}
	notifications := NewNotificationService(
		repository.NewNotificationRepository(f.db),
		repository.NewPreferencesRepository(f.db),
		nil,
	)
	return NewCheckoutService(f.cart, newTestBuilder(), orders, gateway, notifications, opts, f.observer, f.tracker)
}

func (f *checkoutFixture) request(key string) CheckoutRequest {
	return CheckoutRequest{
		AttemptID:      key,
		Session:        f.session,
		UserID:         f.user.ID,
		Customer:       validCustomer(),
		Address:        validAddress(),
		IdempotencyKey: key,
	}
}

func (f *checkoutFixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func (f *checkoutFixture) cartCount(t *testing.T) int {
	t.Helper()
	cart, err := f.cart.GetCart(context.Background(), f.session)
	require.NoError(t, err)
	return cart.Count()
}

func (f *checkoutFixture) notificationsOfType(t *testing.T, kind model.NotificationType) int {
	t.Helper()
	var notes []model.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", f.user.ID, kind).Find(&notes).Error)
	return len(notes)
}

func TestCheckout_DemoPaymentCompletes(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := NewDemoGateway(AutoConfirmer{Accept: true}, nil, 0, "CarPore", "#FBBF24")
	svc := f.service(gateway, nil, CheckoutOptions{RequireLogin: true})

	result, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	require.NoError(t, err)

	assert.Equal(t, []CheckoutState{
		StateCollectingDetails,
		StateValidating,
		StatePricing,
		StateCreatingOrder,
		StateCreatingPaymentIntent,
		StateAwaitingPayment,
		StateReconciling,
		StateCompleted,
	}, f.observer.states())

	order := result.Order
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, model.PaymentStatusPaid, order.PaymentStatus)
	assert.Regexp(t, `^pay_demo_\d+$`, order.PaymentID)
	assert.Equal(t, "369.00", order.Total.String())
	assert.Equal(t, "50.00", order.Shipping.String())

	assert.True(t, result.Attempt.Finished)
	assert.Equal(t, StateCompleted, result.Attempt.State)
	assert.Equal(t, order.OrderNumber, result.Attempt.OrderNumber)
	require.NotNil(t, result.Attempt.Checkout)
	assert.Equal(t, int64(36900), result.Attempt.Checkout.Amount)
	assert.Equal(t, "Asha Rao", result.Attempt.Checkout.Prefill.Name)

	assert.Equal(t, 0, f.cartCount(t))
	assert.Equal(t, 1, f.notificationsOfType(t, model.NotificationTypeOrderConfirmed))

	tracked, err := f.tracker.Get("attempt-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, tracked.State)
}

func TestCheckout_LoginRequired(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{}
	svc := f.service(gateway, nil, CheckoutOptions{RequireLogin: true})

	req := f.request("guest-1")
	req.UserID = 0
	_, err := svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrLoginRequired)

	states := f.observer.states()
	assert.Equal(t, StateCollectingDetails, states[len(states)-1])
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 0, gateway.intents)

	tracked, err := f.tracker.Get("guest-1")
	require.NoError(t, err)
	assert.Equal(t, "auth", tracked.ErrorKind)
}

func TestCheckout_GuestAllowedWhenLoginOptional(t *testing.T) {
	f := setupCheckoutFixture(t)
	svc := f.service(&scriptedGateway{}, nil, CheckoutOptions{})

	req := f.request("guest-1")
	req.UserID = 0
	result, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint(0), result.Order.UserID)
	assert.Equal(t, "pay_scripted", result.Order.PaymentID)
}

func TestCheckout_ValidationReturnsToDetails(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{}
	svc := f.service(gateway, nil, CheckoutOptions{RequireLogin: true})

	req := f.request("attempt-1")
	req.Address.Pincode = "5600"
	req.Customer.Email = "nope"
	_, err := svc.Checkout(context.Background(), req)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "pincode")
	assert.Contains(t, validationErr.Fields, "email")

	assert.Equal(t, []CheckoutState{StateCollectingDetails, StateValidating, StateCollectingDetails}, f.observer.states())
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 1, f.cartCount(t))
	assert.Equal(t, 0, gateway.intents)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := setupCheckoutFixture(t)
	require.NoError(t, f.cart.ClearCart(context.Background(), f.session))
	svc := f.service(&scriptedGateway{}, nil, CheckoutOptions{})

	_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "cart")
	assert.Equal(t, int64(0), f.orderCount(t))
}

func TestCheckout_IntentFailureLeavesPendingOrder(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{intentErr: errors.New("razorpay unavailable")}
	svc := f.service(gateway, nil, CheckoutOptions{})

	_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, "create_intent", gatewayErr.Op)

	states := f.observer.states()
	assert.Equal(t, StateFailed, states[len(states)-1])
	assert.Equal(t, 0, gateway.opened)

	orders, err := f.orders.GetUserOrders(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, model.OrderStatusPending, orders[0].Status)
	assert.Equal(t, 1, f.cartCount(t))
}

func TestCheckout_DismissedPayment(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{openErr: PaymentOutcome{Dismissed: true}.Err()}
	svc := f.service(gateway, nil, CheckoutOptions{})

	_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.True(t, gatewayErr.Cancelled())

	tracked, err := f.tracker.Get("attempt-1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, tracked.State)
	assert.Equal(t, "gateway", tracked.ErrorKind)
	assert.True(t, tracked.Cancelled)

	orders, err := f.orders.GetUserOrders(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, model.PaymentStatusPending, orders[0].PaymentStatus)
	assert.Empty(t, orders[0].PaymentID)
	assert.Equal(t, 1, f.cartCount(t))
}

func TestCheckout_ReconciliationFailure(t *testing.T) {
	f := setupCheckoutFixture(t)
	svc := f.service(&scriptedGateway{}, unconfirmableOrders{f.orders}, CheckoutOptions{})

	_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "pay_scripted", recErr.PaymentID)
	assert.NotEmpty(t, recErr.OrderNumber)
	assert.Contains(t, recErr.SupportMessage(), "pay_scripted")
	assert.Contains(t, recErr.SupportMessage(), recErr.OrderNumber)
	assert.Equal(t, "reconciliation", ErrorKind(err))

	tracked, err := f.tracker.Get("attempt-1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, tracked.State)
	assert.Equal(t, "reconciliation", tracked.ErrorKind)
	assert.Equal(t, "pay_scripted", tracked.PaymentID)

	assert.Equal(t, 1, f.cartCount(t), "cart is kept until the order is confirmed")
	assert.Equal(t, 1, f.notificationsOfType(t, model.NotificationTypePaymentNeedsReview))
}

func TestCheckout_RetryAfterReconciliationFailureDoesNotChargeAgain(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{}
	orders := &recoveringOrders{OrderService: f.orders, failing: true}
	svc := f.service(gateway, orders, CheckoutOptions{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, f.request("attempt-1"))
	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)

	orders.failing = false
	result, err := svc.Checkout(ctx, f.request("attempt-1"))
	require.NoError(t, err)

	assert.Equal(t, 1, gateway.intents)
	assert.Equal(t, 1, gateway.opened, "payment UI must not open again")
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Equal(t, recErr.OrderNumber, result.Order.OrderNumber)
	assert.Equal(t, "pay_scripted", result.Order.PaymentID)
	assert.Equal(t, model.PaymentStatusPaid, result.Order.PaymentStatus)
	assert.Equal(t, 0, f.cartCount(t))

	states := f.observer.states()
	tail := states[len(states)-2:]
	assert.Equal(t, []CheckoutState{StateReconciling, StateCompleted}, tail)
	assert.NotContains(t, states[len(states)-6:], StateAwaitingPayment)
}

func TestCheckout_RetryWithSameKeyReusesOrder(t *testing.T) {
	f := setupCheckoutFixture(t)
	gateway := &scriptedGateway{openErr: PaymentOutcome{Dismissed: true}.Err()}
	svc := f.service(gateway, nil, CheckoutOptions{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, f.request("attempt-1"))
	require.Error(t, err)

	gateway.openErr = nil
	req := f.request("attempt-1b")
	req.IdempotencyKey = "attempt-1"
	result, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.orderCount(t))

	// a replay after payment returns the paid order without charging again
	_, err = f.cart.AddItem(ctx, f.session, teakID, 1)
	require.NoError(t, err)
	replay := f.request("attempt-1c")
	replay.IdempotencyKey = "attempt-1"
	again, err := svc.Checkout(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, again.Order.ID)
	assert.Equal(t, 2, gateway.intents)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Equal(t, 1, f.cartCount(t), "a replay leaves the new cart alone")
	assert.Equal(t, 1, f.notificationsOfType(t, model.NotificationTypeOrderConfirmed))
}

func TestCheckout_PaymentTimeout(t *testing.T) {
	f := setupCheckoutFixture(t)
	pending := NewPendingPayments()
	gateway := NewDemoGateway(CallbackConfirmer{Pending: pending}, pending, 0, "CarPore", "#FBBF24")
	svc := f.service(gateway, nil, CheckoutOptions{PaymentTimeout: 20 * time.Millisecond})

	_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
	assert.ErrorIs(t, err, ErrPaymentTimeout)
	assert.Equal(t, "gateway", ErrorKind(err))
	assert.Equal(t, 0, pending.Len())
}

func TestCheckout_AsyncCallbackFlow(t *testing.T) {
	f := setupCheckoutFixture(t)
	pending := NewPendingPayments()
	gateway := NewDemoGateway(CallbackConfirmer{Pending: pending}, pending, 0, "CarPore", "#FBBF24")
	svc := f.service(gateway, nil, CheckoutOptions{})

	require.NoError(t, f.tracker.Begin("attempt-1", f.user.ID, f.session))
	assert.ErrorIs(t, f.tracker.Begin("attempt-1", f.user.ID, f.session), ErrAttemptInProgress)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(context.Background(), f.request("attempt-1"))
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, err := f.tracker.WaitFor(ctx, "attempt-1", AwaitingInput)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingPayment, snapshot.State)
	require.NotNil(t, snapshot.Intent)

	require.NoError(t, pending.Resolve(snapshot.Intent.ID, PaymentOutcome{PaymentID: "ignored"}))

	final, err := f.tracker.WaitFor(ctx, "attempt-1", Done)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, final.State)
	assert.NoError(t, <-done)
}

func TestCheckout_Quote(t *testing.T) {
	f := setupCheckoutFixture(t)
	svc := f.service(&scriptedGateway{}, nil, CheckoutOptions{})

	_, err := f.cart.AddItem(context.Background(), f.session, cedarID, 1)
	require.NoError(t, err)

	cart, totals, err := svc.Quote(context.Background(), f.session)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Count())
	assert.Equal(t, "638.00", totals.Subtotal.String())
	assert.Equal(t, "0.00", totals.Shipping.String())
	assert.Equal(t, "638.00", totals.Total.String())
}
