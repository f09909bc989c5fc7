package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
)

// Confirmer asks the shopper to accept a simulated payment
type Confirmer interface {
	Confirm(ctx context.Context, intent *PaymentIntent) (bool, error)
}

// AutoConfirmer answers every prompt the same way
type AutoConfirmer struct {
	Accept bool
}

func (a AutoConfirmer) Confirm(context.Context, *PaymentIntent) (bool, error) {
	return a.Accept, nil
}

// CallbackConfirmer waits for the storefront to post the shopper's answer
// to the payment callback endpoint
type CallbackConfirmer struct {
	Pending *PendingPayments
}

func (c CallbackConfirmer) Confirm(ctx context.Context, intent *PaymentIntent) (bool, error) {
	outcome, err := c.Pending.Wait(ctx, intent.ID)
	if err != nil {
		return false, err
	}
	return outcome.Succeeded(), nil
}

// PromptConfirmer asks on a terminal, as cmd/demo does
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) Confirm(ctx context.Context, intent *PaymentIntent) (bool, error) {
	fmt.Fprintf(p.Out, "DEMO MODE\n\nSimulating payment for ₹%s\n\nProceed with demo payment? [y/N] ", intent.Amount.String())

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case a := <-answer:
		return a == "y" || a == "yes", nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type demoGateway struct {
	confirmer Confirmer
	pending   *PendingPayments
	delay     time.Duration
	storeName string
	color     string
	now       func() time.Time
	seq       atomic.Uint64
}

// NewDemoGateway simulates payments locally. Intents are order_demo_<ms>_<seq>;
// an accepted prompt completes after delay with pay_demo_<ms>.
func NewDemoGateway(confirmer Confirmer, pending *PendingPayments, delay time.Duration, storeName, themeColor string) PaymentGateway {
	return &demoGateway{
		confirmer: confirmer,
		pending:   pending,
		delay:     delay,
		storeName: storeName,
		color:     themeColor,
		now:       time.Now,
	}
}

func (g *demoGateway) Mode() string {
	return PaymentModeDemo
}

func (g *demoGateway) CreateIntent(_ context.Context, amount model.Money, currency, receipt string) (*PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, &GatewayError{Op: "create_intent", Err: ErrInvalidPaymentAmount}
	}

	id := fmt.Sprintf("order_demo_%d_%d", g.now().UnixMilli(), g.seq.Add(1))
	if g.pending != nil {
		if err := g.pending.Expect(id); err != nil {
			return nil, &GatewayError{Op: "create_intent", Err: err}
		}
	}
	logger.Info("Demo payment intent created", map[string]interface{}{
		"gateway_order_id": id,
		"receipt":          receipt,
		"amount":           amount.String(),
	})

	return &PaymentIntent{
		ID:          id,
		Provider:    PaymentModeDemo,
		Amount:      amount,
		AmountMinor: amount.MinorUnits(),
		Currency:    currency,
		Receipt:     receipt,
		StoreName:   g.storeName,
		ThemeColor:  g.color,
	}, nil
}

// Open asks the confirmer first; the simulated processing delay only starts
// after the shopper accepts
func (g *demoGateway) Open(ctx context.Context, intent *PaymentIntent, _ PaymentContact) (*PaymentResult, error) {
	if g.pending != nil {
		defer g.pending.Release(intent.ID)
	}

	accepted, err := g.confirmer.Confirm(ctx, intent)
	if err != nil {
		return nil, waitError(err)
	}
	if !accepted {
		logger.Info("Demo payment declined", map[string]interface{}{
			"gateway_order_id": intent.ID,
		})
		return nil, &GatewayError{Op: "open", Err: ErrPaymentCancelled}
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, waitError(ctx.Err())
		}
	}

	ms := g.now().UnixMilli()
	return &PaymentResult{
		Provider:       PaymentModeDemo,
		PaymentID:      fmt.Sprintf("pay_demo_%d", ms),
		GatewayOrderID: intent.ID,
		Signature:      fmt.Sprintf("demo_signature_%d", ms),
	}, nil
}
