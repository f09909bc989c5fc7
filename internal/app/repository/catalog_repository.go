package repository

import (
	"context"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
)

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	FindCategory(ctx context.Context, id string) (*model.Category, error)
	FindFragrance(ctx context.Context, categoryID, fragranceID string) (*model.Fragrance, error)
	SaveFragrance(ctx context.Context, fragrance *model.Fragrance) error
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) withFragrances(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Fragrances", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	})
}

func (r *catalogRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	logger.Debug("Listing product categories")

	var categories []model.Category
	if err := r.withFragrances(ctx).Order("sort_order ASC, id ASC").Find(&categories).Error; err != nil {
		logger.Error("Failed to list product categories", err)
		return nil, err
	}

	logger.Debug("Product categories listed", map[string]interface{}{
		"count": len(categories),
	})
	return categories, nil
}

func (r *catalogRepository) FindCategory(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	if err := r.withFragrances(ctx).First(&category, "id = ?", id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find category", err, map[string]interface{}{
				"category_id": id,
			})
		}
		return nil, err
	}
	return &category, nil
}

func (r *catalogRepository) FindFragrance(ctx context.Context, categoryID, fragranceID string) (*model.Fragrance, error) {
	var fragrance model.Fragrance
	err := r.db.WithContext(ctx).
		First(&fragrance, "category_id = ? AND id = ?", categoryID, fragranceID).Error
	if err != nil {
		return nil, err
	}
	return &fragrance, nil
}

// SaveFragrance inserts or replaces a variant; used by the catalog import
func (r *catalogRepository) SaveFragrance(ctx context.Context, fragrance *model.Fragrance) error {
	if err := r.db.WithContext(ctx).Save(fragrance).Error; err != nil {
		logger.Error("Failed to save fragrance", err, map[string]interface{}{
			"category_id":  fragrance.CategoryID,
			"fragrance_id": fragrance.ID,
		})
		return err
	}
	return nil
}
