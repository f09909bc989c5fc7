package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists the rejected fields by their JSON names
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// PersistenceError means the order store failed. Nothing was charged and
// the request can be retried as is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var (
	// ErrPaymentCancelled is wrapped when the shopper dismisses the payment UI
	ErrPaymentCancelled = errors.New("Payment cancelled by user")
	// ErrPaymentFailed is wrapped when the gateway declines or errors
	ErrPaymentFailed = errors.New("payment failed")
	// ErrPaymentTimeout is wrapped when no outcome arrives in time
	ErrPaymentTimeout = errors.New("payment timed out")
	// ErrPaymentSignature is wrapped when a success payload does not verify
	ErrPaymentSignature = errors.New("payment signature verification failed")
)

// GatewayError is a payment-side failure. The order, if one was created,
// stays pending and unpaid.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the shopper dismissed the payment
func (e *GatewayError) Cancelled() bool {
	return errors.Is(e.Err, ErrPaymentCancelled)
}

// ReconciliationError means money was captured but the order could not be
// marked paid. It carries what support needs to reconcile by hand.
type ReconciliationError struct {
	OrderID     uint
	OrderNumber string
	PaymentID   string
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s captured but order %s not confirmed: %v", e.PaymentID, e.OrderNumber, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// SupportMessage is the copy shown to the shopper
func (e *ReconciliationError) SupportMessage() string {
	return fmt.Sprintf(
		"Your payment %s was received but we could not confirm order %s. Please contact support with these references.",
		e.PaymentID, e.OrderNumber,
	)
}

// ErrorKind names the checkout error family for logs, metrics and API payloads
func ErrorKind(err error) string {
	var (
		validationErr     *ValidationError
		persistenceErr    *PersistenceError
		gatewayErr        *GatewayError
		reconciliationErr *ReconciliationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &reconciliationErr):
		// checked first: it wraps the store failure
		return "reconciliation"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &persistenceErr):
		return "persistence"
	case errors.As(err, &gatewayErr):
		return "gateway"
	default:
		return "internal"
	}
}
