package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "record not found",
			err:      fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound),
			context:  "order",
			wantCode: ResourceNotFound,
			wantMsg:  "Order not found",
		},
		{
			name:     "record not found without context",
			err:      gorm.ErrRecordNotFound,
			wantCode: ResourceNotFound,
			wantMsg:  "The requested resource was not found",
		},
		{
			name:     "postgres unique violation",
			err:      fmt.Errorf(`ERROR: duplicate key value violates unique constraint "idx_orders_number"`),
			context:  "order",
			wantCode: ResourceAlreadyExists,
			wantMsg:  "This order already exists",
		},
		{
			name:     "sqlite unique violation",
			err:      fmt.Errorf("UNIQUE constraint failed: users.email"),
			wantCode: ResourceAlreadyExists,
			wantMsg:  "This record already exists",
		},
		{
			name:     "foreign key",
			err:      gorm.ErrForeignKeyViolated,
			context:  "address",
			wantCode: ResourceConflict,
		},
		{
			name:     "not null",
			err:      fmt.Errorf(`null value in column "email" violates not-null constraint`),
			wantCode: ValidationRequired,
		},
		{
			name:     "network",
			err:      fmt.Errorf("dial tcp 10.0.0.1:5432: connect: connection refused"),
			wantCode: InternalExternalAPI,
		},
		{
			name:     "unknown",
			err:      fmt.Errorf("pq: something odd"),
			wantCode: InternalDatabaseError,
		},
		{
			name:     "nil",
			err:      nil,
			wantCode: InternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, tt.context)
			assert.Equal(t, tt.wantCode, info.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, info.Message)
			}
			assert.NotContains(t, info.Message, "pq:")
		})
	}
}

type signupForm struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=10"`
	Untagged  string `validate:"required"`
}

func TestFieldErrors(t *testing.T) {
	v := validator.New()
	v.RegisterTagNameFunc(JSONTagName)

	err := v.Struct(signupForm{Email: "not-an-email", Quantity: 11})
	require.Error(t, err)

	fields := FieldErrors(err)
	assert.Equal(t, map[string]string{
		"email":      "must be a valid email address",
		"first_name": "is required",
		"quantity":   "must be at most 10",
		"untagged":   "is required",
	}, fields)

	assert.Nil(t, FieldErrors(fmt.Errorf("plain")))
}

func TestFieldMessage(t *testing.T) {
	assert.Equal(t, "must be a 6-digit postal code", FieldMessage("pincode", ""))
	assert.Equal(t, "must be one of: upi card", FieldMessage("oneof", "upi card"))
	assert.Equal(t, "must be greater than 0", FieldMessage("gt", "0"))
	assert.Equal(t, "is invalid", FieldMessage("uuid4", ""))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "shipping_address", toSnake("ShippingAddress"))
	assert.Equal(t, "pincode", toSnake("Pincode"))
}

func TestParseAndRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found overrides fallback", gorm.ErrRecordNotFound, http.StatusNotFound, ResourceNotFound},
		{"conflict", gorm.ErrDuplicatedKey, http.StatusConflict, ResourceAlreadyExists},
		{"upstream", fmt.Errorf("i/o timeout"), http.StatusServiceUnavailable, InternalExternalAPI},
		{"fallback kept", fmt.Errorf("boom"), http.StatusInternalServerError, InternalDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			ParseAndRespond(c, http.StatusInternalServerError, tt.err, "order")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}
}

func TestRespondWithBindError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithBindError(c, fmt.Errorf("unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ValidationInvalidFormat, body.Error)
}
