package repository

import (
	"github.com/carpore/carpore-backend/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WishlistRepository interface {
	FindByUserID(userID uint) ([]model.WishlistItem, error)
	// Add is a no-op when the item is already saved
	Add(item *model.WishlistItem) error
	Remove(userID uint, itemID string) (bool, error)
	Exists(userID uint, itemID string) (bool, error)
	CountByUser(userID uint) (int64, error)
}

type wishlistRepository struct {
	db *gorm.DB
}

func NewWishlistRepository(db *gorm.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) FindByUserID(userID uint) ([]model.WishlistItem, error) {
	var items []model.WishlistItem
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&items).Error
	return items, err
}

func (r *wishlistRepository) Add(item *model.WishlistItem) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(item).Error
}

func (r *wishlistRepository) Remove(userID uint, itemID string) (bool, error) {
	res := r.db.Where("user_id = ? AND item_id = ?", userID, itemID).Delete(&model.WishlistItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *wishlistRepository) Exists(userID uint, itemID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.WishlistItem{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Count(&count).Error
	return count > 0, err
}

func (r *wishlistRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.WishlistItem{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
