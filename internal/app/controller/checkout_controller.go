package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// idempotencyNamespace scopes client keys to the cart session that sent them
var idempotencyNamespace = uuid.MustParse("5b0e7c4a-3f1d-4a57-9a1e-6f0c2d8b9e41")

type CheckoutControllerOptions struct {
	RequireLogin bool
	// WaitTimeout bounds how long a request waits for the attempt to move
	WaitTimeout time.Duration
	// AttemptTTL bounds a background attempt, including the payment UI
	AttemptTTL time.Duration
}

type CheckoutController struct {
	ctx      context.Context
	checkout service.CheckoutService
	tracker  *service.AttemptTracker
	pending  *service.PendingPayments
	opts     CheckoutControllerOptions
}

// NewCheckoutController runs attempts in the background under ctx, which
// should end when the server shuts down. tracker must be registered as an
// observer of checkout.
func NewCheckoutController(
	ctx context.Context,
	checkout service.CheckoutService,
	tracker *service.AttemptTracker,
	pending *service.PendingPayments,
	opts CheckoutControllerOptions,
) *CheckoutController {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.AttemptTTL <= 0 {
		opts.AttemptTTL = 2 * time.Hour
	}
	return &CheckoutController{
		ctx:      ctx,
		checkout: checkout,
		tracker:  tracker,
		pending:  pending,
		opts:     opts,
	}
}

type StartCheckoutRequest struct {
	// AttemptID retries an earlier attempt; the same pending order is reused
	AttemptID       string              `json:"attempt_id" binding:"omitempty,uuid"`
	Customer        model.CustomerInfo  `json:"customer"`
	ShippingAddress model.PostalAddress `json:"shipping_address"`
}

// PaymentCallbackRequest is what the hosted payment UI hands the storefront
type PaymentCallbackRequest struct {
	Status            string `json:"status" binding:"omitempty,oneof=success dismissed failed"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	Reason            string `json:"reason" binding:"max=255"`
}

func (r PaymentCallbackRequest) outcome() service.PaymentOutcome {
	return service.PaymentOutcome{
		PaymentID: r.RazorpayPaymentID,
		OrderID:   r.RazorpayOrderID,
		Signature: r.RazorpaySignature,
		Dismissed: r.Status == "dismissed",
		Failed:    r.Status == "failed",
		Reason:    r.Reason,
	}
}

// ScopedIdempotencyKey derives a stable UUID from the cart session and a
// client supplied key
func ScopedIdempotencyKey(session, key string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(session+"|"+key)).String()
}

// GetConfig tells the storefront how checkout behaves
// GET /api/v1/checkout/config
func (ctrl *CheckoutController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"payment_mode":  ctrl.checkout.Mode(),
			"require_login": ctrl.opts.RequireLogin,
		},
	})
}

// StartCheckout places the order and opens payment. It answers once the
// attempt is awaiting payment or has ended.
// POST /api/v1/checkout
func (ctrl *CheckoutController) StartCheckout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	session, ok := middleware.GetCartSession(c)
	if !ok {
		apperrors.BadRequest(c, apperrors.CartSessionMissing, "Cart session is missing")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid checkout request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	// One attempt id means one order. Without an explicit id the
	// Idempotency-Key header names the attempt.
	attemptID := req.AttemptID
	switch {
	case attemptID != "":
		if existing, err := ctrl.tracker.Get(attemptID); err == nil && existing.Session != session {
			apperrors.NotFound(c, apperrors.CheckoutAttemptNotFound, "Checkout attempt not found")
			return
		}
	default:
		if k, ok := middleware.GetIdempotencyKey(c); ok {
			attemptID = ScopedIdempotencyKey(session, k)
		} else {
			attemptID = uuid.NewString()
		}
	}

	if err := ctrl.tracker.Begin(attemptID, userID, session); err != nil {
		log.Warn("Checkout attempt already running", map[string]interface{}{
			"attempt_id": attemptID,
		})
		apperrors.Conflict(c, apperrors.CheckoutDuplicateRequest, "This checkout is already in progress")
		return
	}

	log.Info("Checkout started", map[string]interface{}{
		"attempt_id": attemptID,
		"user_id":    userID,
		"retry":      req.AttemptID != "",
	})
	go ctrl.run(service.CheckoutRequest{
		AttemptID:      attemptID,
		Session:        session,
		UserID:         userID,
		Customer:       req.Customer,
		Address:        req.ShippingAddress,
		IdempotencyKey: ScopedIdempotencyKey(session, attemptID),
	}, log)

	attempt, ok := ctrl.wait(c, attemptID, service.AwaitingInput)
	if !ok {
		return
	}
	ctrl.respondWithAttempt(c, attempt, http.StatusCreated)
}

// GetAttempt returns the latest snapshot of an attempt
// GET /api/v1/checkout/:attempt_id
func (ctrl *CheckoutController) GetAttempt(c *gin.Context) {
	attempt, ok := ctrl.ownedAttempt(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": attempt,
	})
}

// SubmitPayment delivers the hosted UI outcome and waits for the order to
// be confirmed
// POST /api/v1/checkout/:attempt_id/payment
func (ctrl *CheckoutController) SubmitPayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}
	attempt, ok := ctrl.ownedAttempt(c)
	if !ok {
		return
	}

	log.Info("Payment outcome received", map[string]interface{}{
		"attempt_id": attempt.ID,
		"status":     req.Status,
		"payment_id": req.RazorpayPaymentID,
	})
	ctrl.resolve(c, attempt, req.outcome())
}

// CancelAttempt dismisses the payment UI. The order stays pending.
// POST /api/v1/checkout/:attempt_id/cancel
func (ctrl *CheckoutController) CancelAttempt(c *gin.Context) {
	attempt, ok := ctrl.ownedAttempt(c)
	if !ok {
		return
	}
	ctrl.resolve(c, attempt, service.PaymentOutcome{
		Dismissed: true,
		Reason:    service.ErrPaymentCancelled.Error(),
	})
}

func (ctrl *CheckoutController) resolve(c *gin.Context, attempt service.CheckoutAttempt, outcome service.PaymentOutcome) {
	log := middleware.GetLoggerFromContext(c)

	if attempt.State != service.StateAwaitingPayment || attempt.Intent == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   apperrors.CheckoutNotAwaitingPayment,
			"message": "This checkout is not waiting for payment",
			"data":    attempt,
		})
		return
	}

	if err := ctrl.pending.Resolve(attempt.Intent.ID, outcome); err != nil {
		log.Warn("Payment outcome rejected", map[string]interface{}{
			"attempt_id":       attempt.ID,
			"gateway_order_id": attempt.Intent.ID,
			"error":            err.Error(),
		})
		code := apperrors.CheckoutNotAwaitingPayment
		if errors.Is(err, service.ErrPaymentAlreadyResolved) {
			code = apperrors.CheckoutDuplicateRequest
		}
		apperrors.Conflict(c, code, "Payment for this checkout was already submitted")
		return
	}

	final, ok := ctrl.wait(c, attempt.ID, service.Done)
	if !ok {
		return
	}
	ctrl.respondWithAttempt(c, final, http.StatusOK)
}

// run drives one attempt; the tracker receives every snapshot
func (ctrl *CheckoutController) run(req service.CheckoutRequest, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(ctrl.ctx, ctrl.opts.AttemptTTL)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Checkout attempt panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"attempt_id": req.AttemptID,
			})
			if attempt, err := ctrl.tracker.Get(req.AttemptID); err == nil {
				attempt.State = service.StateFailed
				attempt.Finished = true
				attempt.ErrorKind = "internal"
				attempt.Error = "internal error"
				attempt.UpdatedAt = time.Now().UTC()
				ctrl.tracker.OnStateChange(attempt)
			}
		}
	}()

	if _, err := ctrl.checkout.Checkout(ctx, req); err != nil {
		log.Debug("Checkout attempt ended without an order", map[string]interface{}{
			"attempt_id": req.AttemptID,
			"error_kind": service.ErrorKind(err),
		})
	}
}

// wait blocks until ready or the wait timeout, then returns the latest snapshot
func (ctrl *CheckoutController) wait(c *gin.Context, attemptID string, ready func(service.CheckoutAttempt) bool) (service.CheckoutAttempt, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctrl.opts.WaitTimeout)
	defer cancel()

	attempt, err := ctrl.tracker.WaitFor(ctx, attemptID, ready)
	switch {
	case err == nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return attempt, true
	case errors.Is(err, service.ErrAttemptNotFound):
		apperrors.NotFound(c, apperrors.CheckoutAttemptNotFound, "Checkout attempt not found")
	default:
		middleware.GetLoggerFromContext(c).Error("Failed to wait for checkout attempt", err, map[string]interface{}{
			"attempt_id": attemptID,
		})
		apperrors.InternalError(c, "")
	}
	return service.CheckoutAttempt{}, false
}

func (ctrl *CheckoutController) ownedAttempt(c *gin.Context) (service.CheckoutAttempt, bool) {
	session, _ := middleware.GetCartSession(c)
	attempt, err := ctrl.tracker.Get(c.Param("attempt_id"))
	if err != nil || attempt.Session != session {
		apperrors.NotFound(c, apperrors.CheckoutAttemptNotFound, "Checkout attempt not found")
		return service.CheckoutAttempt{}, false
	}
	return attempt, true
}

// respondWithAttempt maps a snapshot to a response. Attempts still running
// answer 202 so the storefront keeps polling.
func (ctrl *CheckoutController) respondWithAttempt(c *gin.Context, attempt service.CheckoutAttempt, completedStatus int) {
	switch {
	case !attempt.Finished:
		message := "Checkout in progress"
		if attempt.State == service.StateAwaitingPayment {
			message = "Complete payment to place your order"
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": message,
			"data":    attempt,
		})
	case attempt.State == service.StateCompleted:
		c.JSON(completedStatus, gin.H{
			"message": "Order placed successfully",
			"data":    attempt,
		})
	default:
		status, code, message := checkoutFailure(attempt)
		c.JSON(status, gin.H{
			"error":   code,
			"message": message,
			"fields":  attempt.Fields,
			"data":    attempt,
		})
	}
}

func checkoutFailure(attempt service.CheckoutAttempt) (int, string, string) {
	switch attempt.ErrorKind {
	case "validation":
		if _, ok := attempt.Fields["cart"]; ok {
			return http.StatusBadRequest, apperrors.CartEmpty, "Your cart is empty"
		}
		return http.StatusBadRequest, apperrors.ValidationInvalidInput, "Some details are missing or invalid"
	case "auth":
		return http.StatusUnauthorized, apperrors.CheckoutLoginRequired, "Please sign in to place an order"
	case "persistence":
		return http.StatusServiceUnavailable, apperrors.OrderPersistenceFailed, "We could not save your order. Nothing was charged, please try again"
	case "gateway":
		if attempt.Cancelled {
			return http.StatusPaymentRequired, apperrors.PaymentCancelled, service.ErrPaymentCancelled.Error()
		}
		if attempt.Unverified {
			return http.StatusPaymentRequired, apperrors.PaymentSignatureInvalid, "We could not verify this payment. Your order is saved and you can try again"
		}
		return http.StatusPaymentRequired, apperrors.PaymentFailed, "Payment could not be completed. Your order is saved and you can try again"
	case "reconciliation":
		return http.StatusConflict, apperrors.PaymentCapturedNotConfirmed, attempt.Error
	default:
		return http.StatusInternalServerError, apperrors.InternalServerError, "Something went wrong. Please try again shortly"
	}
}
