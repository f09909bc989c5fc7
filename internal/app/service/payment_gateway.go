package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/payment/razorpay"
)

const (
	PaymentModeRazorpay = "razorpay"
	PaymentModeDemo     = "demo"
)

var (
	ErrInvalidPaymentAmount    = errors.New("payment amount must be positive")
	ErrNoPendingPayment        = errors.New("no payment is awaiting this gateway order")
	ErrPaymentAlreadyResolved  = errors.New("payment outcome already delivered")
	ErrDuplicatePendingPayment = errors.New("gateway order id is already awaiting payment")
)

// PaymentIntent is a gateway-side handle for collecting one amount
type PaymentIntent struct {
	ID          string      `json:"id"` // gateway order id
	Provider    string      `json:"provider"`
	Amount      model.Money `json:"amount"`
	AmountMinor int64       `json:"amount_minor"`
	Currency    string      `json:"currency"`
	Receipt     string      `json:"receipt"`
	KeyID       string      `json:"key_id,omitempty"`
	StoreName   string      `json:"store_name"`
	ThemeColor  string      `json:"theme_color"`
}

// CheckoutOptions renders the widget options the browser opens the hosted UI with
func (i *PaymentIntent) CheckoutOptions(contact PaymentContact) razorpay.CheckoutOptions {
	return razorpay.CheckoutOptions{
		Key:         i.KeyID,
		Amount:      i.AmountMinor,
		Currency:    i.Currency,
		Name:        i.StoreName,
		Description: "Order " + i.Receipt,
		OrderID:     i.ID,
		Prefill: razorpay.Prefill{
			Name:    contact.Name,
			Email:   contact.Email,
			Contact: contact.Phone,
		},
		Theme: razorpay.Theme{Color: i.ThemeColor},
	}
}

// PaymentContact prefills the hosted payment UI
type PaymentContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PaymentResult identifies a completed payment
type PaymentResult struct {
	Provider       string `json:"provider"`
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"-"`
}

// PaymentGateway creates payment intents and collects payment through a
// hosted UI. Open blocks until the shopper pays, dismisses the UI or ctx ends;
// failures are *GatewayError.
type PaymentGateway interface {
	Mode() string
	CreateIntent(ctx context.Context, amount model.Money, currency, receipt string) (*PaymentIntent, error)
	Open(ctx context.Context, intent *PaymentIntent, contact PaymentContact) (*PaymentResult, error)
}

// PaymentOutcome is what the hosted UI reports back. It is a success payload
// unless Dismissed or Failed is set.
type PaymentOutcome struct {
	PaymentID string
	OrderID   string
	Signature string
	Dismissed bool
	Failed    bool
	Reason    string
}

func (o PaymentOutcome) Succeeded() bool {
	return !o.Dismissed && !o.Failed
}

// Err converts an unsuccessful outcome into a *GatewayError
func (o PaymentOutcome) Err() error {
	switch {
	case o.Dismissed:
		if o.Reason == "" || o.Reason == ErrPaymentCancelled.Error() {
			return &GatewayError{Op: "open", Err: ErrPaymentCancelled}
		}
		return &GatewayError{Op: "open", Err: fmt.Errorf("%w: %s", ErrPaymentCancelled, o.Reason)}
	case o.Failed:
		if o.Reason == "" {
			return &GatewayError{Op: "open", Err: ErrPaymentFailed}
		}
		return &GatewayError{Op: "open", Err: fmt.Errorf("%w: %s", ErrPaymentFailed, o.Reason)}
	default:
		return nil
	}
}

// PendingPayments bridges the hosted UI callback endpoint to the goroutine
// blocked in PaymentGateway.Open. Slots are keyed by gateway order id and
// hold one outcome, so a callback that arrives before Open starts waiting is
// not lost.
type PendingPayments struct {
	mu    sync.Mutex
	slots map[string]chan PaymentOutcome
}

func NewPendingPayments() *PendingPayments {
	return &PendingPayments{slots: make(map[string]chan PaymentOutcome)}
}

// Expect opens a slot for the gateway order id. An id that is already
// awaiting payment is refused.
func (p *PendingPayments) Expect(gatewayOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.slots[gatewayOrderID]; ok {
		return ErrDuplicatePendingPayment
	}
	p.slots[gatewayOrderID] = make(chan PaymentOutcome, 1)
	return nil
}

// Resolve delivers the outcome for an expected gateway order id
func (p *PendingPayments) Resolve(gatewayOrderID string, outcome PaymentOutcome) error {
	p.mu.Lock()
	slot, ok := p.slots[gatewayOrderID]
	p.mu.Unlock()
	if !ok {
		return ErrNoPendingPayment
	}

	select {
	case slot <- outcome:
		logger.Debug("Payment outcome delivered", map[string]interface{}{
			"gateway_order_id": gatewayOrderID,
			"succeeded":        outcome.Succeeded(),
		})
		return nil
	default:
		return ErrPaymentAlreadyResolved
	}
}

// Wait blocks for the outcome of a gateway order id, opening the slot when
// CreateIntent did not
func (p *PendingPayments) Wait(ctx context.Context, gatewayOrderID string) (PaymentOutcome, error) {
	p.mu.Lock()
	slot, ok := p.slots[gatewayOrderID]
	if !ok {
		slot = make(chan PaymentOutcome, 1)
		p.slots[gatewayOrderID] = slot
	}
	p.mu.Unlock()

	select {
	case outcome := <-slot:
		return outcome, nil
	case <-ctx.Done():
		return PaymentOutcome{}, ctx.Err()
	}
}

// Release drops the slot once Open returns
func (p *PendingPayments) Release(gatewayOrderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.slots, gatewayOrderID)
}

// Len reports how many payments are awaiting an outcome
func (p *PendingPayments) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// waitError maps a ctx error from Wait to the gateway failure it represents
func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Op: "open", Err: ErrPaymentTimeout}
	}
	return &GatewayError{Op: "open", Err: fmt.Errorf("%w: %v", ErrPaymentCancelled, err)}
}
