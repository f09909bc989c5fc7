package controller

import (
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AddressController struct {
	addressService service.AddressService
}

func NewAddressController(addressService service.AddressService) *AddressController {
	return &AddressController{
		addressService: addressService,
	}
}

func (ctrl *AddressController) respondAddressError(c *gin.Context, err error, message string) {
	var validationErr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrAddressNotFound):
		apperrors.NotFound(c, apperrors.AddressNotFound, "Address not found")
	case errors.As(err, &validationErr):
		apperrors.RespondWithValidationError(c, validationErr.Fields)
	default:
		middleware.GetLoggerFromContext(c).Error(message, err)
		apperrors.InternalError(c, message)
	}
}

// GetAddresses lists the address book, default first
// GET /api/v1/addresses
func (ctrl *AddressController) GetAddresses(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	addresses, err := ctrl.addressService.GetUserAddresses(userID)
	if err != nil {
		ctrl.respondAddressError(c, err, "Failed to fetch addresses")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  addresses,
		"count": len(addresses),
	})
}

// GetDefaultAddress prefills the checkout form
// GET /api/v1/addresses/default
func (ctrl *AddressController) GetDefaultAddress(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	address, err := ctrl.addressService.GetDefaultAddress(userID)
	if err != nil {
		ctrl.respondAddressError(c, err, "Failed to fetch default address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": address,
	})
}

// CreateAddress adds an entry; the first one becomes the default
// POST /api/v1/addresses
func (ctrl *AddressController) CreateAddress(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	address, err := ctrl.addressService.CreateAddress(userID, req)
	if err != nil {
		ctrl.respondAddressError(c, err, "Failed to create address")
		return
	}

	log.Info("Address created", map[string]interface{}{
		"user_id":    userID,
		"address_id": address.ID,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "Address saved",
		"data":    address,
	})
}

// UpdateAddress replaces an entry
// PUT /api/v1/addresses/:id
func (ctrl *AddressController) UpdateAddress(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	address, err := ctrl.addressService.UpdateAddress(userID, id, req)
	if err != nil {
		ctrl.respondAddressError(c, err, "Failed to update address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Address updated",
		"data":    address,
	})
}

// DeleteAddress removes an entry
// DELETE /api/v1/addresses/:id
func (ctrl *AddressController) DeleteAddress(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.addressService.DeleteAddress(userID, id); err != nil {
		ctrl.respondAddressError(c, err, "Failed to delete address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Address deleted",
	})
}

// SetDefaultAddress marks an entry as the default
// PUT /api/v1/addresses/:id/default
func (ctrl *AddressController) SetDefaultAddress(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.addressService.SetDefaultAddress(userID, id); err != nil {
		ctrl.respondAddressError(c, err, "Failed to set default address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Default address updated",
	})
}
