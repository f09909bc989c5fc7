package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/payment/razorpay"
	"github.com/google/uuid"
)

type CheckoutState string

const (
	StateCollectingDetails     CheckoutState = "collecting_details"
	StateValidating            CheckoutState = "validating"
	StatePricing               CheckoutState = "pricing"
	StateCreatingOrder         CheckoutState = "creating_order"
	StateCreatingPaymentIntent CheckoutState = "creating_payment_intent"
	StateAwaitingPayment       CheckoutState = "awaiting_payment"
	StateReconciling           CheckoutState = "reconciling"
	StateCompleted             CheckoutState = "completed"
	StateFailed                CheckoutState = "failed"
)

var (
	ErrLoginRequired = errors.New("sign in to place an order")
	// ErrAttemptClosed is returned when the idempotency key belongs to an order that was cancelled
	ErrAttemptClosed = errors.New("checkout attempt already closed")
)

// CheckoutRequest is what the shopper submits from the checkout form
type CheckoutRequest struct {
	AttemptID      string
	Session        string // cart session
	UserID         uint   // 0 for guest checkout
	Customer       model.CustomerInfo
	Address        model.PostalAddress
	IdempotencyKey string
}

// CheckoutAttempt is a snapshot of one run of the checkout machine
type CheckoutAttempt struct {
	ID          string                    `json:"id"`
	UserID      uint                      `json:"-"`
	Session     string                    `json:"-"`
	State       CheckoutState             `json:"state"`
	Finished    bool                      `json:"finished"`
	Totals      *Totals                   `json:"totals,omitempty"`
	OrderID     uint                      `json:"order_id,omitempty"`
	OrderNumber string                    `json:"order_number,omitempty"`
	Intent      *PaymentIntent            `json:"payment_intent,omitempty"`
	Checkout    *razorpay.CheckoutOptions `json:"checkout_options,omitempty"`
	PaymentID   string                    `json:"payment_id,omitempty"`
	ErrorKind   string                    `json:"error_kind,omitempty"`
	Cancelled   bool                      `json:"cancelled,omitempty"` // the shopper dismissed the payment UI
	Unverified  bool                      `json:"unverified,omitempty"` // the gateway signature did not match
	Error       string                    `json:"error,omitempty"`
	Fields      map[string]string         `json:"fields,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// CheckoutResult is returned when the machine reaches completed
type CheckoutResult struct {
	Attempt CheckoutAttempt `json:"attempt"`
	Order   *model.Order    `json:"order"`
}

// CheckoutObserver is told about every state transition. Calls are
// synchronous and must not block.
type CheckoutObserver interface {
	OnStateChange(attempt CheckoutAttempt)
}

// ObserverFunc adapts a function to CheckoutObserver
type ObserverFunc func(attempt CheckoutAttempt)

func (f ObserverFunc) OnStateChange(attempt CheckoutAttempt) {
	f(attempt)
}

type CheckoutService interface {
	// Checkout runs one attempt to completion. Every failure is one of
	// *ValidationError, *PersistenceError, *GatewayError or *ReconciliationError,
	// or ErrLoginRequired.
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	// Quote prices the session cart without starting an attempt
	Quote(ctx context.Context, session string) (*model.Cart, Totals, error)
	Mode() string
}

type CheckoutOptions struct {
	RequireLogin   bool
	PaymentTimeout time.Duration
}

type checkoutService struct {
	cart          CartService
	builder       *OrderBuilder
	orders        OrderService
	gateway       PaymentGateway
	notifications NotificationService
	observers     []CheckoutObserver
	opts          CheckoutOptions
	now           func() time.Time

	// payments collected for orders that could not be confirmed yet, by order id
	capturedMu sync.Mutex
	captured   map[uint]*PaymentResult
}

// NewCheckoutService wires the machine. notifications may be nil.
func NewCheckoutService(
	cart CartService,
	builder *OrderBuilder,
	orders OrderService,
	gateway PaymentGateway,
	notifications NotificationService,
	opts CheckoutOptions,
	observers ...CheckoutObserver,
) CheckoutService {
	return &checkoutService{
		cart:          cart,
		builder:       builder,
		orders:        orders,
		gateway:       gateway,
		notifications: notifications,
		observers:     observers,
		opts:          opts,
		now:           time.Now,
		captured:      make(map[uint]*PaymentResult),
	}
}

func (s *checkoutService) Mode() string {
	return s.gateway.Mode()
}

func (s *checkoutService) Quote(ctx context.Context, session string) (*model.Cart, Totals, error) {
	cart, err := s.cart.GetCart(ctx, session)
	if err != nil {
		return nil, Totals{}, err
	}
	return cart, s.builder.Price(cart.Lines()), nil
}

// run carries one attempt through the machine
type run struct {
	svc     *checkoutService
	attempt CheckoutAttempt
}

func (r *run) transition(state CheckoutState) {
	r.attempt.State = state
	r.attempt.UpdatedAt = r.svc.now().UTC()

	logger.Debug("Checkout state changed", map[string]interface{}{
		"attempt_id":   r.attempt.ID,
		"state":        state,
		"order_number": r.attempt.OrderNumber,
	})
	for _, o := range r.svc.observers {
		o.OnStateChange(r.attempt)
	}
}

// fail records err and ends the attempt in state
func (r *run) fail(state CheckoutState, err error) error {
	r.attempt.Finished = true
	r.attempt.ErrorKind = ErrorKind(err)
	r.attempt.Error = err.Error()

	var validationErr *ValidationError
	var reconciliationErr *ReconciliationError
	var gatewayErr *GatewayError
	switch {
	case errors.As(err, &validationErr):
		r.attempt.Fields = validationErr.Fields
	case errors.As(err, &gatewayErr):
		r.attempt.Cancelled = gatewayErr.Cancelled()
		r.attempt.Unverified = errors.Is(err, ErrPaymentSignature)
	case errors.As(err, &reconciliationErr):
		r.attempt.Error = reconciliationErr.SupportMessage()
	case errors.Is(err, ErrLoginRequired):
		r.attempt.ErrorKind = "auth"
	}

	fields := map[string]interface{}{
		"attempt_id":   r.attempt.ID,
		"state":        state,
		"error_kind":   r.attempt.ErrorKind,
		"order_number": r.attempt.OrderNumber,
	}
	if r.attempt.ErrorKind == "reconciliation" {
		logger.Error("Checkout payment captured but order not confirmed", err, fields)
	} else {
		fields["error"] = err.Error()
		logger.Warn("Checkout attempt failed", fields)
	}

	r.transition(state)
	return err
}

func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.AttemptID == "" {
		req.AttemptID = uuid.NewString()
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = req.AttemptID
	}

	now := s.now().UTC()
	r := &run{svc: s, attempt: CheckoutAttempt{
		ID:        req.AttemptID,
		UserID:    req.UserID,
		Session:   req.Session,
		StartedAt: now,
	}}
	r.transition(StateCollectingDetails)

	if s.opts.RequireLogin && req.UserID == 0 {
		return nil, r.fail(StateCollectingDetails, ErrLoginRequired)
	}

	r.transition(StateValidating)
	if err := s.builder.Validate(req.Customer, req.Address); err != nil {
		return nil, r.fail(StateCollectingDetails, err)
	}

	r.transition(StatePricing)
	cart, err := s.cart.GetCart(ctx, req.Session)
	if err != nil {
		return nil, r.fail(StateFailed, &PersistenceError{Op: "load_cart", Err: err})
	}
	if cart.IsEmpty() {
		return nil, r.fail(StateCollectingDetails, NewValidationError(map[string]string{"cart": "must contain at least one item"}))
	}
	totals := s.builder.Price(cart.Lines())
	r.attempt.Totals = &totals

	r.transition(StateCreatingOrder)
	draft, err := s.builder.Build(cart, req.Customer, req.Address, req.UserID, req.IdempotencyKey)
	if err != nil {
		return nil, r.fail(StateCollectingDetails, err)
	}
	order, err := s.orders.CreateOrder(ctx, draft)
	if err != nil {
		return nil, r.fail(StateFailed, err)
	}
	r.attempt.OrderID = order.ID
	r.attempt.OrderNumber = order.OrderNumber

	switch {
	case order.PaymentStatus == model.PaymentStatusPaid:
		// a retry of an attempt that already paid
		r.attempt.PaymentID = order.PaymentID
		return s.complete(ctx, r, order, false)
	case order.Status == model.OrderStatusCancelled:
		return nil, r.fail(StateFailed, &PersistenceError{Op: "create", Err: ErrAttemptClosed})
	}

	if result := s.capturedPayment(order.ID); result != nil {
		// the shopper already paid; only the confirmation is retried
		logger.Info("Retrying confirmation of a captured payment", map[string]interface{}{
			"attempt_id":   r.attempt.ID,
			"order_number": order.OrderNumber,
			"payment_id":   result.PaymentID,
		})
		r.attempt.PaymentID = result.PaymentID
		return s.reconcile(ctx, r, order, result)
	}

	r.transition(StateCreatingPaymentIntent)
	intent, err := s.gateway.CreateIntent(ctx, order.Total, order.Currency, order.OrderNumber)
	if err != nil {
		// the pending order is left for the stale order sweeper
		return nil, r.fail(StateFailed, asGatewayError("create_intent", err))
	}
	contact := PaymentContact{
		Name:  order.Customer.FullName(),
		Email: order.Customer.Email,
		Phone: order.Customer.Phone,
	}
	options := intent.CheckoutOptions(contact)
	r.attempt.Intent = intent
	r.attempt.Checkout = &options

	r.transition(StateAwaitingPayment)
	payCtx := ctx
	if s.opts.PaymentTimeout > 0 {
		var cancel context.CancelFunc
		payCtx, cancel = context.WithTimeout(ctx, s.opts.PaymentTimeout)
		defer cancel()
	}
	result, err := s.gateway.Open(payCtx, intent, contact)
	if err != nil {
		return nil, r.fail(StateFailed, asGatewayError("open", err))
	}
	r.attempt.PaymentID = result.PaymentID
	s.rememberCaptured(order.ID, result)

	return s.reconcile(ctx, r, order, result)
}

// reconcile records a collected payment on the order
func (s *checkoutService) reconcile(ctx context.Context, r *run, order *model.Order, result *PaymentResult) (*CheckoutResult, error) {
	r.transition(StateReconciling)
	// money has moved; finish the write even if the caller went away
	confirmed, err := s.orders.UpdateOrderPayment(context.WithoutCancel(ctx), order.ID, model.PaymentUpdate{
		Provider:       result.Provider,
		PaymentID:      result.PaymentID,
		GatewayOrderID: result.GatewayOrderID,
		Signature:      result.Signature,
	})
	if err != nil {
		recErr := &ReconciliationError{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			PaymentID:   result.PaymentID,
			Err:         err,
		}
		if s.notifications != nil {
			_ = s.notifications.NotifyPaymentNeedsReview(order, result.PaymentID)
		}
		return nil, r.fail(StateFailed, recErr)
	}
	s.forgetCaptured(order.ID)

	return s.complete(ctx, r, confirmed, true)
}

func (s *checkoutService) capturedPayment(orderID uint) *PaymentResult {
	s.capturedMu.Lock()
	defer s.capturedMu.Unlock()
	return s.captured[orderID]
}

func (s *checkoutService) rememberCaptured(orderID uint, result *PaymentResult) {
	s.capturedMu.Lock()
	defer s.capturedMu.Unlock()
	s.captured[orderID] = result
}

func (s *checkoutService) forgetCaptured(orderID uint) {
	s.capturedMu.Lock()
	defer s.capturedMu.Unlock()
	delete(s.captured, orderID)
}

// complete ends the attempt. fresh is false when replaying an attempt whose
// order was already paid; the cart and notifications were handled then.
func (s *checkoutService) complete(ctx context.Context, r *run, order *model.Order, fresh bool) (*CheckoutResult, error) {
	if fresh {
		s.finishPaidOrder(ctx, r, order)
	}

	r.attempt.Finished = true
	r.transition(StateCompleted)

	logger.Info("Checkout completed", map[string]interface{}{
		"attempt_id":   r.attempt.ID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"payment_id":   order.PaymentID,
		"total":        order.Total.String(),
		"replay":       !fresh,
	})
	return &CheckoutResult{Attempt: r.attempt, Order: order}, nil
}

func (s *checkoutService) finishPaidOrder(ctx context.Context, r *run, order *model.Order) {
	if err := s.cart.ClearCart(context.WithoutCancel(ctx), r.attempt.Session); err != nil {
		logger.Warn("Failed to clear cart after checkout", map[string]interface{}{
			"attempt_id": r.attempt.ID,
			"error":      err.Error(),
		})
	}
	if s.notifications != nil {
		if err := s.notifications.NotifyOrderConfirmed(order); err != nil {
			logger.Warn("Failed to create order confirmation notification", map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}
}

func asGatewayError(op string, err error) error {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}
