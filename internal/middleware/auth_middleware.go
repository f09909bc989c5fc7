package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

// Context keys for user information
const (
	UserIDKey         = "user_id"
	UserEmailKey      = "user_email"
	UserRoleKey       = "user_role"
	TokenIDKey        = "token_id"
	TokenExpiresAtKey = "token_expires_at"
)

// RevocationChecker reports whether a token id was revoked by logout
type RevocationChecker interface {
	IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

type AuthMiddleware struct {
	jwtSecret string
	revoked   RevocationChecker
}

// NewAuthMiddleware builds the middleware; revoked may be nil when Redis is disabled
func NewAuthMiddleware(jwtSecret string, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		revoked:   revoked,
	}
}

var errMalformedHeader = errors.New("malformed authorization header")

// bearerToken reads "Authorization: Bearer <token>" or the token query
// parameter used by websocket clients
func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token"), nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

// BearerToken returns the raw access token of the request, if any
func BearerToken(c *gin.Context) string {
	token, err := bearerToken(c)
	if err != nil {
		return ""
	}
	return token
}

func (m *AuthMiddleware) verify(c *gin.Context, token string) (*util.Claims, error) {
	claims, err := util.ValidateTokenOfType(token, m.jwtSecret, util.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsTokenBlacklisted(c.Request.Context(), claims.ID)
		if err != nil {
			// fail open while Redis is unavailable
			GetLoggerFromContext(c).Error("Token revocation check failed", err)
		} else if revoked {
			return nil, errTokenRevoked
		}
	}
	return claims, nil
}

var errTokenRevoked = errors.New("token revoked")

func setClaims(c *gin.Context, claims *util.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, model.UserRole(claims.Role))
	c.Set(TokenIDKey, claims.ID)
	if claims.ExpiresAt != nil {
		c.Set(TokenExpiresAtKey, claims.ExpiresAt.Time)
	}
}

// Authenticate requires a valid access token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, err := bearerToken(c)
		if err != nil {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}
		if token == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, "Authorization header is required")
			c.Abort()
			return
		}

		claims, err := m.verify(c, token)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			switch {
			case errors.Is(err, util.ErrExpiredToken):
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Your session has expired. Please sign in again")
			case errors.Is(err, errTokenRevoked):
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenRevoked, "You have been signed out")
			default:
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authentication token")
			}
			c.Abort()
			return
		}

		setClaims(c, claims)
		log.Debug("User authenticated", map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		})
		c.Next()
	}
}

// OptionalAuthenticate sets user info when a valid token is present and
// otherwise continues as a guest
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, err := bearerToken(c)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := m.verify(c, token)
		if err != nil {
			log.Debug("Token validation failed - continuing as guest", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// RequireRole checks if user has one of the roles
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, ok := GetUserRole(c)
		if !ok {
			apperrors.Forbidden(c, "")
			c.Abort()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		userID, _ := GetUserID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		if len(roles) == 1 && roles[0] == model.RoleAdmin {
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzAdminOnly, "Only administrators can do this")
		} else {
			apperrors.Forbidden(c, "")
		}
		c.Abort()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func GetUserEmail(c *gin.Context) (string, bool) {
	v, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	v, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	role, ok := v.(model.UserRole)
	return role, ok
}

// GetTokenID returns the jti and remaining lifetime of the current token
func GetTokenID(c *gin.Context) (string, time.Duration, bool) {
	id := c.GetString(TokenIDKey)
	if id == "" {
		return "", 0, false
	}
	var ttl time.Duration
	if exp, ok := c.Get(TokenExpiresAtKey); ok {
		if t, ok := exp.(time.Time); ok {
			ttl = time.Until(t)
		}
	}
	return id, ttl, true
}
