package service

import (
	"context"
	"errors"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCatalogItemNotFound = errors.New("catalog item not found")
	ErrCategoryNotFound    = errors.New("category not found")
)

// FeaturedLimit caps the storefront's featured row
const FeaturedLimit = 3

// CatalogService exposes the read-only catalog as sellable items
type CatalogService interface {
	ListItems(ctx context.Context) ([]model.CatalogItem, error)
	// ListFeatured returns the first FeaturedLimit featured items in listing order
	ListFeatured(ctx context.Context) ([]model.CatalogItem, error)
	GetItem(ctx context.Context, itemID string) (*model.CatalogItem, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	// ImportFragrances upserts variants into existing categories
	ImportFragrances(ctx context.Context, fragrances []model.Fragrance) (int, error)
}

type catalogService struct {
	repo     repository.CatalogRepository
	imageURL model.ImageURLFunc
}

// NewCatalogService builds items on every read. imageURL may be nil, in which
// case image keys are returned as is.
func NewCatalogService(repo repository.CatalogRepository, imageURL model.ImageURLFunc) CatalogService {
	return &catalogService{repo: repo, imageURL: imageURL}
}

func (s *catalogService) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.CatalogItem, 0)
	for i := range categories {
		for j := range categories[i].Fragrances {
			items = append(items, model.NewCatalogItem(&categories[i], &categories[i].Fragrances[j], s.imageURL))
		}
	}
	return items, nil
}

func (s *catalogService) ListFeatured(ctx context.Context) ([]model.CatalogItem, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	featured := make([]model.CatalogItem, 0, FeaturedLimit)
	for _, item := range items {
		if !item.Featured {
			continue
		}
		featured = append(featured, item)
		if len(featured) == FeaturedLimit {
			break
		}
	}
	return featured, nil
}

func (s *catalogService) GetItem(ctx context.Context, itemID string) (*model.CatalogItem, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			return &items[i], nil
		}
	}

	logger.Warn("Catalog item not found", map[string]interface{}{
		"item_id": itemID,
	})
	return nil, ErrCatalogItemNotFound
}

func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *catalogService) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	category, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *catalogService) ImportFragrances(ctx context.Context, fragrances []model.Fragrance) (int, error) {
	imported := 0
	for i := range fragrances {
		if _, err := s.repo.FindCategory(ctx, fragrances[i].CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("Skipping fragrance for unknown category", map[string]interface{}{
					"category_id":  fragrances[i].CategoryID,
					"fragrance_id": fragrances[i].ID,
				})
				continue
			}
			return imported, err
		}
		if err := s.repo.SaveFragrance(ctx, &fragrances[i]); err != nil {
			return imported, err
		}
		imported++
	}

	logger.Info("Fragrances imported", map[string]interface{}{
		"imported": imported,
		"skipped":  len(fragrances) - imported,
	})
	return imported, nil
}
