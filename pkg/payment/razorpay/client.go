package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carpore/carpore-backend/pkg/logger"
)

// Client represents a Razorpay API client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Razorpay client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// KeyID is the public key handed to the checkout widget
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// VerifySignature checks a checkout response with this client's key secret
func (c *Client) VerifySignature(resp CheckoutResponse) error {
	return VerifyPaymentSignature(resp.OrderID, resp.PaymentID, resp.Signature, c.config.KeySecret)
}

// CreateOrder registers a payment intent for the amount in minor units
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}
	return &order, nil
}

// FetchPayment looks up a payment by id
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, fmt.Errorf("failed to fetch razorpay payment: %w", err)
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.KeyID, c.config.KeySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("Razorpay request", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Code == "" {
			return fmt.Errorf("%w: unexpected status code %d", ErrUpstream, resp.StatusCode)
		}
		apiErr := envelope.Error
		apiErr.StatusCode = resp.StatusCode

		logger.Warn("Razorpay API error", map[string]interface{}{
			"status": resp.StatusCode,
			"code":   apiErr.Code,
			"path":   path,
		})

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrUnauthorized, &apiErr)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrUpstream, &apiErr)
		default:
			return fmt.Errorf("%w: %w", ErrInvalidRequest, &apiErr)
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
