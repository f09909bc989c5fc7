package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyKeyCtx    = "idempotency_key"
	idempotencyLockTTL   = 2 * time.Minute
	maxIdempotencyKeyLen = 64
)

// IdempotencyStore is the Redis subset used to remember responses
type IdempotencyStore interface {
	IdempotencyKey(scope, key string) string
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response when a request is retried with the
// same Idempotency-Key. Reusing a key with a different body is rejected.
// Without a header the request passes through unless required is set.
// A nil store disables replay but still exposes the key to handlers.
func Idempotency(store IdempotencyStore, ttl time.Duration, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" {
			if required {
				apperrors.BadRequest(c, apperrors.ValidationRequired, "Idempotency-Key header is required")
				c.Abort()
				return
			}
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Idempotency-Key must be at most 64 characters")
			c.Abort()
			return
		}
		c.Set(idempotencyKeyCtx, key)

		if store == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Could not read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		requestHash := hashBody(body)
		recordKey := store.IdempotencyKey(idempotencyScope(c), key)

		stored, err := store.Get(ctx, recordKey)
		if err != nil {
			log.Error("Idempotency lookup failed", err)
			c.Next()
			return
		}
		if stored != "" {
			var record idempotencyRecord
			if err := json.Unmarshal([]byte(stored), &record); err != nil {
				log.Error("Failed to decode idempotency record", err)
				apperrors.InternalError(c, "")
				c.Abort()
				return
			}
			if record.RequestHash != requestHash {
				apperrors.Conflict(c, apperrors.CheckoutDuplicateRequest, "Idempotency-Key was already used with a different request")
				c.Abort()
				return
			}
			log.Info("Replaying idempotent response", map[string]interface{}{
				"status": record.Status,
			})
			writeStoredResponse(c, &record)
			c.Abort()
			return
		}

		lockKey := recordKey + ":lock"
		acquired, err := store.SetNX(ctx, lockKey, requestHash, idempotencyLockTTL)
		if err != nil {
			log.Error("Idempotency lock failed", err)
			c.Next()
			return
		}
		if !acquired {
			apperrors.Conflict(c, apperrors.CheckoutDuplicateRequest, "This request is already being processed")
			c.Abort()
			return
		}
		defer func() {
			if err := store.Del(context.Background(), lockKey); err != nil {
				log.Error("Failed to release idempotency lock", err)
			}
		}()

		capture := &responseCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		// 5xx responses are not remembered so the client can retry
		if capture.Status() >= http.StatusInternalServerError {
			return
		}
		record := idempotencyRecord{
			Status:      capture.Status(),
			Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			ContentType: capture.Header().Get("Content-Type"),
			RequestHash: requestHash,
		}
		payload, err := json.Marshal(record)
		if err != nil {
			log.Error("Failed to encode idempotency record", err)
			return
		}
		if err := store.Set(context.Background(), recordKey, string(payload), ttl); err != nil {
			log.Error("Failed to persist idempotency record", err)
		}
	}
}

// GetIdempotencyKey returns the client-supplied key, if any
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetString(idempotencyKeyCtx)
	return key, key != ""
}

func idempotencyScope(c *gin.Context) string {
	owner := "anonymous"
	if userID, ok := GetUserID(c); ok {
		owner = UserCartSession(userID)
	} else if session, ok := GuestCartSession(c); ok {
		owner = session
	}
	return strings.Join([]string{owner, c.Request.Method, c.FullPath()}, "|")
}

func writeStoredResponse(c *gin.Context, record *idempotencyRecord) {
	if record.ContentType != "" {
		c.Header("Content-Type", record.ContentType)
	}
	c.Header("Idempotent-Replayed", "true")
	decoded, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		decoded = nil
	}
	c.Status(record.Status)
	_, _ = c.Writer.Write(decoded)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseCapture) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
