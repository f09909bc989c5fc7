package controller

import (
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type WishlistController struct {
	wishlistService service.WishlistService
}

func NewWishlistController(wishlistService service.WishlistService) *WishlistController {
	return &WishlistController{
		wishlistService: wishlistService,
	}
}

type AddToWishlistRequest struct {
	ItemID string `json:"item_id" binding:"required,max=130"`
}

// GetWishlist returns saved items, newest first
// GET /api/v1/wishlist
func (ctrl *WishlistController) GetWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	items, err := ctrl.wishlistService.GetUserWishlist(userID)
	if err != nil {
		log.Error("Failed to fetch wishlist", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to fetch wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"count": len(items),
	})
}

// AddToWishlist saves a catalog item; saving twice is a no-op
// POST /api/v1/wishlist
func (ctrl *WishlistController) AddToWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	item, err := ctrl.wishlistService.AddToWishlist(c.Request.Context(), userID, req.ItemID)
	if err != nil {
		if errors.Is(err, service.ErrCatalogItemNotFound) {
			apperrors.NotFound(c, apperrors.CatalogItemNotFound, "Product not found")
			return
		}
		log.Error("Failed to add to wishlist", err, map[string]interface{}{
			"user_id": userID,
			"item_id": req.ItemID,
		})
		apperrors.InternalError(c, "Failed to add to wishlist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Added to wishlist",
		"data":    item,
	})
}

// RemoveFromWishlist deletes a saved item
// DELETE /api/v1/wishlist/:item_id
func (ctrl *WishlistController) RemoveFromWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	itemID := c.Param("item_id")
	if err := ctrl.wishlistService.RemoveFromWishlist(userID, itemID); err != nil {
		if errors.Is(err, service.ErrWishlistItemNotFound) {
			apperrors.NotFound(c, apperrors.WishlistItemNotFound, "Item is not in your wishlist")
			return
		}
		log.Error("Failed to remove from wishlist", err, map[string]interface{}{
			"user_id": userID,
			"item_id": itemID,
		})
		apperrors.InternalError(c, "Failed to remove from wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Removed from wishlist",
	})
}

// CheckWishlist reports whether an item is saved
// GET /api/v1/wishlist/:item_id
func (ctrl *WishlistController) CheckWishlist(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	saved, err := ctrl.wishlistService.Contains(userID, c.Param("item_id"))
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to check wishlist", err)
		apperrors.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"saved": saved},
	})
}
