package service

import (
	"context"
	"errors"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
)

var ErrWishlistItemNotFound = errors.New("wishlist item not found")

type WishlistService interface {
	GetUserWishlist(userID uint) ([]model.WishlistItem, error)
	AddToWishlist(ctx context.Context, userID uint, itemID string) (*model.WishlistItem, error)
	RemoveFromWishlist(userID uint, itemID string) error
	Contains(userID uint, itemID string) (bool, error)
}

type wishlistService struct {
	wishlistRepo repository.WishlistRepository
	catalog      CatalogService
}

func NewWishlistService(wishlistRepo repository.WishlistRepository, catalog CatalogService) WishlistService {
	return &wishlistService{
		wishlistRepo: wishlistRepo,
		catalog:      catalog,
	}
}

func (s *wishlistService) GetUserWishlist(userID uint) ([]model.WishlistItem, error) {
	items, err := s.wishlistRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user wishlist", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return items, nil
}

// AddToWishlist saves a catalog item; adding it twice keeps one entry
func (s *wishlistService) AddToWishlist(ctx context.Context, userID uint, itemID string) (*model.WishlistItem, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	entry := &model.WishlistItem{
		UserID: userID,
		ItemID: item.ID,
		Name:   item.Name,
		Price:  item.Price,
		Image:  item.Image,
	}
	if err := s.wishlistRepo.Add(entry); err != nil {
		logger.Error("Failed to add wishlist item", err, map[string]interface{}{
			"user_id": userID,
			"item_id": itemID,
		})
		return nil, err
	}

	logger.Info("Item added to wishlist", map[string]interface{}{
		"user_id": userID,
		"item_id": itemID,
	})
	return entry, nil
}

func (s *wishlistService) RemoveFromWishlist(userID uint, itemID string) error {
	removed, err := s.wishlistRepo.Remove(userID, itemID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrWishlistItemNotFound
	}
	return nil
}

func (s *wishlistService) Contains(userID uint, itemID string) (bool, error) {
	return s.wishlistRepo.Exists(userID, itemID)
}
