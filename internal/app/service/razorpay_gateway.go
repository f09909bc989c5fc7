package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/payment/razorpay"
)

// RazorpayAPI is the part of the Razorpay client the gateway calls
type RazorpayAPI interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	VerifySignature(resp razorpay.CheckoutResponse) error
}

type razorpayGateway struct {
	api        RazorpayAPI
	pending    *PendingPayments
	storeName  string
	themeColor string
}

func NewRazorpayGateway(api RazorpayAPI, pending *PendingPayments, cfg config.RazorpayConfig) PaymentGateway {
	return &razorpayGateway{
		api:        api,
		pending:    pending,
		storeName:  cfg.StoreName,
		themeColor: cfg.ThemeColor,
	}
}

func (g *razorpayGateway) Mode() string {
	return PaymentModeRazorpay
}

func (g *razorpayGateway) CreateIntent(ctx context.Context, amount model.Money, currency, receipt string) (*PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, &GatewayError{Op: "create_intent", Err: ErrInvalidPaymentAmount}
	}

	order, err := g.api.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount.MinorUnits(),
		Currency: currency,
		Receipt:  receipt,
		Notes:    map[string]string{"order_number": receipt},
	})
	if err != nil {
		logger.Error("Failed to create razorpay order", err, map[string]interface{}{
			"receipt": receipt,
			"amount":  amount.String(),
		})
		return nil, &GatewayError{Op: "create_intent", Err: err}
	}

	if err := g.pending.Expect(order.ID); err != nil {
		return nil, &GatewayError{Op: "create_intent", Err: err}
	}
	logger.Info("Razorpay order created", map[string]interface{}{
		"gateway_order_id": order.ID,
		"receipt":          receipt,
		"amount_minor":     order.Amount,
	})

	return &PaymentIntent{
		ID:          order.ID,
		Provider:    PaymentModeRazorpay,
		Amount:      amount,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		Receipt:     receipt,
		KeyID:       g.api.KeyID(),
		StoreName:   g.storeName,
		ThemeColor:  g.themeColor,
	}, nil
}

// Open waits for the widget callback, then verifies the signature and the
// payment itself before reporting success
func (g *razorpayGateway) Open(ctx context.Context, intent *PaymentIntent, contact PaymentContact) (*PaymentResult, error) {
	defer g.pending.Release(intent.ID)

	outcome, err := g.pending.Wait(ctx, intent.ID)
	if err != nil {
		return nil, waitError(err)
	}
	if !outcome.Succeeded() {
		return nil, outcome.Err()
	}

	if outcome.OrderID != "" && outcome.OrderID != intent.ID {
		return nil, &GatewayError{Op: "verify", Err: fmt.Errorf("%w: order id mismatch", ErrPaymentSignature)}
	}
	if err := g.api.VerifySignature(razorpay.CheckoutResponse{
		PaymentID: outcome.PaymentID,
		OrderID:   intent.ID,
		Signature: outcome.Signature,
	}); err != nil {
		logger.Warn("Razorpay signature rejected", map[string]interface{}{
			"gateway_order_id": intent.ID,
			"payment_id":       outcome.PaymentID,
		})
		return nil, &GatewayError{Op: "verify", Err: errors.Join(ErrPaymentSignature, err)}
	}

	payment, err := g.api.FetchPayment(ctx, outcome.PaymentID)
	switch {
	case err != nil:
		// the signature already proves the payment; the lookup only adds amount checks
		logger.Warn("Could not fetch razorpay payment, trusting verified signature", map[string]interface{}{
			"payment_id": outcome.PaymentID,
			"error":      err.Error(),
		})
	case payment.Status == razorpay.PaymentStatusFailed:
		return nil, &GatewayError{Op: "verify", Err: fmt.Errorf("%w: %s", ErrPaymentFailed, payment.ErrorDescription)}
	case payment.Amount != intent.AmountMinor:
		return nil, &GatewayError{Op: "verify", Err: fmt.Errorf("%w: paid %d, expected %d", ErrPaymentFailed, payment.Amount, intent.AmountMinor)}
	}

	return &PaymentResult{
		Provider:       PaymentModeRazorpay,
		PaymentID:      outcome.PaymentID,
		GatewayOrderID: intent.ID,
		Signature:      outcome.Signature,
	}, nil
}
