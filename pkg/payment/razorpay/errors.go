package razorpay

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when key id, key secret or base URL are missing
	ErrInvalidConfig = errors.New("invalid razorpay configuration")

	// ErrInvalidRequest is returned when Razorpay rejects the request parameters
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnauthorized is returned when the key pair is rejected
	ErrUnauthorized = errors.New("unauthorized: invalid API key")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")

	// ErrInvalidSignature is returned when a payment callback signature does not match
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrUpstream is returned for 5xx and unexpected responses
	ErrUpstream = errors.New("razorpay upstream error")
)

// APIError is the error body Razorpay returns on non-2xx responses
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
	Step        string `json:"step,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Field       string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}
