package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/payment/razorpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingPayments(t *testing.T) {
	t.Run("Outcome delivered before Wait is kept", func(t *testing.T) {
		p := NewPendingPayments()
		require.NoError(t, p.Expect("order_1"))
		require.NoError(t, p.Resolve("order_1", PaymentOutcome{PaymentID: "pay_1"}))

		outcome, err := p.Wait(context.Background(), "order_1")
		require.NoError(t, err)
		assert.Equal(t, "pay_1", outcome.PaymentID)
		assert.True(t, outcome.Succeeded())
	})

	t.Run("Second outcome is rejected", func(t *testing.T) {
		p := NewPendingPayments()
		require.NoError(t, p.Expect("order_1"))
		require.NoError(t, p.Resolve("order_1", PaymentOutcome{PaymentID: "pay_1"}))
		assert.ErrorIs(t, p.Resolve("order_1", PaymentOutcome{Dismissed: true}), ErrPaymentAlreadyResolved)
	})

	t.Run("Gateway order id cannot be expected twice", func(t *testing.T) {
		p := NewPendingPayments()
		require.NoError(t, p.Expect("order_1"))
		assert.ErrorIs(t, p.Expect("order_1"), ErrDuplicatePendingPayment)
		assert.Equal(t, 1, p.Len())
	})

	t.Run("Unknown gateway order", func(t *testing.T) {
		p := NewPendingPayments()
		assert.ErrorIs(t, p.Resolve("order_x", PaymentOutcome{}), ErrNoPendingPayment)
	})

	t.Run("Wait honours ctx and Release drops the slot", func(t *testing.T) {
		p := NewPendingPayments()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := p.Wait(ctx, "order_1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, p.Len())
		p.Release("order_1")
		assert.Equal(t, 0, p.Len())
	})
}

func TestPaymentOutcome_Err(t *testing.T) {
	assert.NoError(t, PaymentOutcome{PaymentID: "pay_1"}.Err())

	err := PaymentOutcome{Dismissed: true}.Err()
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.True(t, gatewayErr.Cancelled())
	assert.Contains(t, err.Error(), "Payment cancelled by user")

	err = PaymentOutcome{Failed: true, Reason: "card declined"}.Err()
	require.ErrorAs(t, err, &gatewayErr)
	assert.False(t, gatewayErr.Cancelled())
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "card declined")
}

func TestWaitError(t *testing.T) {
	assert.ErrorIs(t, waitError(context.DeadlineExceeded), ErrPaymentTimeout)
	assert.ErrorIs(t, waitError(context.Canceled), ErrPaymentCancelled)
}

func newTestDemoGateway(confirmer Confirmer, pending *PendingPayments, delay time.Duration) *demoGateway {
	g := NewDemoGateway(confirmer, pending, delay, "CarPore", "#FBBF24").(*demoGateway)
	g.now = func() time.Time { return time.UnixMilli(1710000000123) }
	return g
}

func TestDemoGateway(t *testing.T) {
	ctx := context.Background()
	amount := model.NewMoneyFromFloat(369)

	t.Run("Intent ids and amounts", func(t *testing.T) {
		g := newTestDemoGateway(AutoConfirmer{Accept: true}, nil, 0)
		intent, err := g.CreateIntent(ctx, amount, "INR", "CP-2026-000123")
		require.NoError(t, err)
		assert.Equal(t, "order_demo_1710000000123_1", intent.ID)
		assert.Equal(t, int64(36900), intent.AmountMinor)
		assert.Equal(t, PaymentModeDemo, intent.Provider)

		opts := intent.CheckoutOptions(PaymentContact{Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210"})
		assert.Equal(t, "CarPore", opts.Name)
		assert.Equal(t, "#FBBF24", opts.Theme.Color)
		assert.Equal(t, "Asha Rao", opts.Prefill.Name)
	})

	t.Run("Non-positive amount", func(t *testing.T) {
		g := newTestDemoGateway(AutoConfirmer{Accept: true}, nil, 0)
		_, err := g.CreateIntent(ctx, model.ZeroMoney(), "INR", "r")
		assert.ErrorIs(t, err, ErrInvalidPaymentAmount)
		assert.Equal(t, "gateway", ErrorKind(err))
	})

	t.Run("Accepted payment", func(t *testing.T) {
		g := newTestDemoGateway(AutoConfirmer{Accept: true}, nil, time.Millisecond)
		intent, err := g.CreateIntent(ctx, amount, "INR", "r")
		require.NoError(t, err)

		result, err := g.Open(ctx, intent, PaymentContact{})
		require.NoError(t, err)
		assert.Equal(t, "pay_demo_1710000000123", result.PaymentID)
		assert.Equal(t, "demo_signature_1710000000123", result.Signature)
		assert.Equal(t, intent.ID, result.GatewayOrderID)
	})

	t.Run("Declined payment", func(t *testing.T) {
		g := newTestDemoGateway(AutoConfirmer{Accept: false}, nil, time.Hour)
		intent, err := g.CreateIntent(ctx, amount, "INR", "r")
		require.NoError(t, err)

		start := time.Now()
		_, err = g.Open(ctx, intent, PaymentContact{})
		assert.ErrorIs(t, err, ErrPaymentCancelled)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Delay respects ctx", func(t *testing.T) {
		g := newTestDemoGateway(AutoConfirmer{Accept: true}, nil, time.Hour)
		intent, err := g.CreateIntent(ctx, amount, "INR", "r")
		require.NoError(t, err)

		timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = g.Open(timeoutCtx, intent, PaymentContact{})
		assert.ErrorIs(t, err, ErrPaymentTimeout)
	})

	t.Run("Callback confirmer", func(t *testing.T) {
		pending := NewPendingPayments()
		g := newTestDemoGateway(CallbackConfirmer{Pending: pending}, pending, 0)
		intent, err := g.CreateIntent(ctx, amount, "INR", "r")
		require.NoError(t, err)

		require.NoError(t, pending.Resolve(intent.ID, PaymentOutcome{Dismissed: true}))
		_, err = g.Open(ctx, intent, PaymentContact{})
		assert.ErrorIs(t, err, ErrPaymentCancelled)
		assert.Equal(t, 0, pending.Len())
	})

	t.Run("Intents created in the same millisecond stay apart", func(t *testing.T) {
		pending := NewPendingPayments()
		g := newTestDemoGateway(CallbackConfirmer{Pending: pending}, pending, 0)

		first, err := g.CreateIntent(ctx, amount, "INR", "CP-2026-000001")
		require.NoError(t, err)
		second, err := g.CreateIntent(ctx, amount, "INR", "CP-2026-000002")
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)
		assert.True(t, strings.HasPrefix(second.ID, "order_demo_1710000000123_"))
		assert.Equal(t, 2, pending.Len())

		type opened struct {
			result *PaymentResult
			err    error
		}
		firstDone := make(chan opened, 1)
		secondDone := make(chan opened, 1)
		go func() {
			r, err := g.Open(ctx, first, PaymentContact{})
			firstDone <- opened{r, err}
		}()
		go func() {
			r, err := g.Open(ctx, second, PaymentContact{})
			secondDone <- opened{r, err}
		}()

		require.NoError(t, pending.Resolve(second.ID, PaymentOutcome{Dismissed: true}))
		select {
		case got := <-secondDone:
			assert.ErrorIs(t, got.err, ErrPaymentCancelled)
		case <-time.After(time.Second):
			t.Fatal("second payment was not resolved")
		}

		require.NoError(t, pending.Resolve(first.ID, PaymentOutcome{}))
		select {
		case got := <-firstDone:
			require.NoError(t, got.err)
			assert.Equal(t, first.ID, got.result.GatewayOrderID)
		case <-time.After(time.Second):
			t.Fatal("first payment was not resolved")
		}
		assert.Equal(t, 0, pending.Len())
	})

	t.Run("Prompt confirmer", func(t *testing.T) {
		var out bytes.Buffer
		accepted, err := PromptConfirmer{In: strings.NewReader("y\n"), Out: &out}.Confirm(ctx, &PaymentIntent{Amount: amount})
		require.NoError(t, err)
		assert.True(t, accepted)
		assert.Contains(t, out.String(), "DEMO MODE")
		assert.Contains(t, out.String(), "369.00")

		accepted, err = PromptConfirmer{In: strings.NewReader("\n"), Out: &out}.Confirm(ctx, &PaymentIntent{Amount: amount})
		require.NoError(t, err)
		assert.False(t, accepted)
	})
}

type fakeRazorpayAPI struct {
	secret     string
	createErr  error
	payment    *razorpay.Payment
	fetchErr   error
	lastCreate razorpay.CreateOrderRequest
}

func (f *fakeRazorpayAPI) KeyID() string { return "rzp_test_key" }

func (f *fakeRazorpayAPI) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &razorpay.Order{ID: "order_Rz1", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (f *fakeRazorpayAPI) FetchPayment(_ context.Context, paymentID string) (*razorpay.Payment, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.payment, nil
}

func (f *fakeRazorpayAPI) VerifySignature(resp razorpay.CheckoutResponse) error {
	return razorpay.VerifyPaymentSignature(resp.OrderID, resp.PaymentID, resp.Signature, f.secret)
}

func TestRazorpayGateway(t *testing.T) {
	ctx := context.Background()
	amount := model.NewMoneyFromFloat(369)
	cfg := config.RazorpayConfig{StoreName: "CarPore", ThemeColor: "#FBBF24"}

	open := func(t *testing.T, api *fakeRazorpayAPI, outcome func(intent *PaymentIntent) PaymentOutcome) (*PaymentResult, error) {
		t.Helper()
		pending := NewPendingPayments()
		g := NewRazorpayGateway(api, pending, cfg)
		intent, err := g.CreateIntent(ctx, amount, "INR", "CP-2026-000123")
		require.NoError(t, err)
		assert.Equal(t, int64(36900), api.lastCreate.Amount)
		assert.Equal(t, "rzp_test_key", intent.KeyID)

		require.NoError(t, pending.Resolve(intent.ID, outcome(intent)))
		return g.Open(ctx, intent, PaymentContact{})
	}
	signed := func(intent *PaymentIntent) PaymentOutcome {
		return PaymentOutcome{
			PaymentID: "pay_Rz1",
			OrderID:   intent.ID,
			Signature: razorpay.Sign(intent.ID, "pay_Rz1", "secret"),
		}
	}

	t.Run("Verified captured payment", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret", payment: &razorpay.Payment{ID: "pay_Rz1", Amount: 36900, Status: razorpay.PaymentStatusCaptured}}
		result, err := open(t, api, signed)
		require.NoError(t, err)
		assert.Equal(t, "pay_Rz1", result.PaymentID)
		assert.Equal(t, "order_Rz1", result.GatewayOrderID)
		assert.Equal(t, PaymentModeRazorpay, result.Provider)
	})

	t.Run("Fetch failure falls back to the verified signature", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret", fetchErr: razorpay.ErrNetworkError}
		_, err := open(t, api, signed)
		assert.NoError(t, err)
	})

	t.Run("Forged signature", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret"}
		_, err := open(t, api, func(intent *PaymentIntent) PaymentOutcome {
			return PaymentOutcome{PaymentID: "pay_Rz1", OrderID: intent.ID, Signature: "deadbeef"}
		})
		assert.ErrorIs(t, err, ErrPaymentSignature)
		assert.Equal(t, "gateway", ErrorKind(err))
	})

	t.Run("Order id mismatch", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret"}
		_, err := open(t, api, func(intent *PaymentIntent) PaymentOutcome {
			out := signed(intent)
			out.OrderID = "order_other"
			return out
		})
		assert.ErrorIs(t, err, ErrPaymentSignature)
	})

	t.Run("Amount mismatch", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret", payment: &razorpay.Payment{ID: "pay_Rz1", Amount: 100, Status: razorpay.PaymentStatusCaptured}}
		_, err := open(t, api, signed)
		assert.ErrorIs(t, err, ErrPaymentFailed)
	})

	t.Run("Dismissed widget", func(t *testing.T) {
		api := &fakeRazorpayAPI{secret: "secret"}
		_, err := open(t, api, func(*PaymentIntent) PaymentOutcome {
			return PaymentOutcome{Dismissed: true}
		})
		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr)
		assert.True(t, gatewayErr.Cancelled())
	})

	t.Run("Create order failure", func(t *testing.T) {
		api := &fakeRazorpayAPI{createErr: errors.New("upstream down")}
		g := NewRazorpayGateway(api, NewPendingPayments(), cfg)
		_, err := g.CreateIntent(ctx, amount, "INR", "r")
		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr)
		assert.Equal(t, "create_intent", gatewayErr.Op)
	})
}
