package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/carpore/carpore-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService service.AuthService
	cartService service.CartService
}

// NewAuthController merges the guest cart into the account on sign-in when
// cartService is set
func NewAuthController(authService service.AuthService, cartService service.CartService) *AuthController {
	return &AuthController{
		authService: authService,
		cartService: cartService,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Phone     string `json:"phone" binding:"max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func userBody(user *model.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"display_name": user.DisplayName,
		"phone":        user.Phone,
		"role":         user.Role,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "An account with this email already exists")
		case errors.Is(err, service.ErrInvalidEmail):
			apperrors.RespondWithValidationError(c, map[string]string{"email": "must be a valid email address"})
		case errors.Is(err, util.ErrPasswordTooShort):
			apperrors.BadRequest(c, apperrors.AuthWeakPassword, err.Error())
		default:
			log.Error("Registration failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "user")
		}
		return
	}

	cartCount := ctrl.mergeGuestCart(c, user.ID)
	log.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message":    "User registered successfully",
		"user":       userBody(user),
		"tokens":     tokens,
		"cart_count": cartCount,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Email or password is incorrect")
		case errors.Is(err, service.ErrAccountDeactivated):
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthAccountDeactivated, "This account has been deactivated")
		default:
			log.Error("Login failed", err)
			apperrors.InternalError(c, "")
		}
		return
	}

	cartCount := ctrl.mergeGuestCart(c, user.ID)
	log.Info("Login successful", map[string]interface{}{
		"user_id": user.ID,
	})
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user":       userBody(user),
		"tokens":     tokens,
		"cart_count": cartCount,
	})
}

// mergeGuestCart folds the X-Cart-Session cart into the account. Failures
// are logged; sign-in still succeeds.
func (ctrl *AuthController) mergeGuestCart(c *gin.Context, userID uint) int {
	if ctrl.cartService == nil {
		return 0
	}
	from, _ := middleware.GuestCartSession(c)
	cart, err := ctrl.cartService.MergeCarts(context.WithoutCancel(c.Request.Context()), from, middleware.UserCartSession(userID))
	if err != nil {
		middleware.GetLoggerFromContext(c).Warn("Failed to merge guest cart on sign-in", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return 0
	}
	return cart.Count()
}

// GetMe returns current user information
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	user, err := ctrl.authService.GetMe(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to fetch user", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": userBody(user),
	})
}

// Logout revokes the current access token
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if err := ctrl.authService.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		if errors.Is(err, util.ErrInvalidToken) || errors.Is(err, util.ErrExpiredToken) || errors.Is(err, util.ErrWrongTokenType) {
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authentication token")
			return
		}
		log.Error("Logout failed", err)
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// RefreshToken rotates a refresh token
// POST /api/v1/auth/refresh
func (ctrl *AuthController) RefreshToken(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	tokens, err := ctrl.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrExpiredToken):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Your session has expired. Please sign in again")
		case errors.Is(err, service.ErrTokenRevoked):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenRevoked, "This refresh token was already used")
		case errors.Is(err, service.ErrAccountDeactivated):
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthAccountDeactivated, "This account has been deactivated")
		case errors.Is(err, util.ErrInvalidToken), errors.Is(err, util.ErrWrongTokenType), errors.Is(err, service.ErrUserNotFound):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid refresh token")
		default:
			log.Error("Token refresh failed", err)
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed successfully",
		"tokens":  tokens,
	})
}
