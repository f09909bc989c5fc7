package controller

import (
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type UserController struct {
	userService service.UserService
	authService service.AuthService
}

func NewUserController(userService service.UserService, authService service.AuthService) *UserController {
	return &UserController{
		userService: userService,
		authService: authService,
	}
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=30"`
}

type UpdatePreferencesRequest struct {
	Newsletter   bool   `json:"newsletter"`
	OrderUpdates bool   `json:"order_updates"`
	Promotions   bool   `json:"promotions"`
	Currency     string `json:"currency" binding:"omitempty,len=3"`
	Language     string `json:"language" binding:"omitempty,max=10"`
}

func (ctrl *UserController) respondUserError(c *gin.Context, err error, message string) {
	var validationErr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
	case errors.As(err, &validationErr):
		apperrors.RespondWithValidationError(c, validationErr.Fields)
	default:
		middleware.GetLoggerFromContext(c).Error(message, err)
		apperrors.InternalError(c, message)
	}
}

// GetProfile returns the signed-in user's profile
// GET /api/v1/users/me
func (ctrl *UserController) GetProfile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	user, err := ctrl.userService.GetProfile(userID)
	if err != nil {
		ctrl.respondUserError(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": user,
	})
}

// UpdateProfile changes only the fields present in the body
// PUT /api/v1/users/me
func (ctrl *UserController) UpdateProfile(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	user, err := ctrl.userService.UpdateProfile(userID, service.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
	})
	if err != nil {
		ctrl.respondUserError(c, err, "Failed to update profile")
		return
	}

	log.Info("Profile updated", map[string]interface{}{
		"user_id": userID,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"data":    user,
	})
}

// GetStats returns order and wishlist counts with lifetime spend
// GET /api/v1/users/me/stats
func (ctrl *UserController) GetStats(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	stats, err := ctrl.userService.GetStats(c.Request.Context(), userID)
	if err != nil {
		ctrl.respondUserError(c, err, "Failed to fetch account stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// GetPreferences returns saved settings or the defaults
// GET /api/v1/users/me/preferences
func (ctrl *UserController) GetPreferences(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	prefs, err := ctrl.userService.GetPreferences(userID)
	if err != nil {
		ctrl.respondUserError(c, err, "Failed to fetch preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": prefs,
	})
}

// UpdatePreferences replaces all settings
// PUT /api/v1/users/me/preferences
func (ctrl *UserController) UpdatePreferences(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	prefs, err := ctrl.userService.UpdatePreferences(userID, model.UserPreferences{
		Newsletter:   req.Newsletter,
		OrderUpdates: req.OrderUpdates,
		Promotions:   req.Promotions,
		Currency:     req.Currency,
		Language:     req.Language,
	})
	if err != nil {
		ctrl.respondUserError(c, err, "Failed to update preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Preferences saved",
		"data":    prefs,
	})
}

// Deactivate closes the account and signs the current session out
// DELETE /api/v1/users/me
func (ctrl *UserController) Deactivate(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.userService.Deactivate(userID); err != nil {
		ctrl.respondUserError(c, err, "Failed to deactivate account")
		return
	}
	if ctrl.authService != nil {
		if err := ctrl.authService.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
			log.Warn("Failed to revoke token of deactivated account", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}

	log.Info("Account deactivated", map[string]interface{}{
		"user_id": userID,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Account deactivated",
	})
}

// Reactivate restores a deactivated account
// POST /api/v1/admin/users/:id/reactivate
func (ctrl *UserController) Reactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.userService.Reactivate(id); err != nil {
		ctrl.respondUserError(c, err, "Failed to reactivate account")
		return
	}

	middleware.GetLoggerFromContext(c).Info("Account reactivated", map[string]interface{}{
		"user_id": id,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Account reactivated",
	})
}
