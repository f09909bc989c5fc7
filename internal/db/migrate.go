package db

import (
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table the storefront owns
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.UserPreferences{},
		&model.Address{},
		&model.Category{},
		&model.Fragrance{},
		&model.Order{},
		&model.OrderItem{},
		&model.WishlistItem{},
		&model.Notification{},
	}
}

// Migrate runs AutoMigrate and seeds the default catalog when empty
func Migrate() error {
	return MigrateDB(DB)
}

func MigrateDB(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := SeedCatalog(db, DefaultCatalog(), false); err != nil {
		logger.Error("Failed to seed catalog during migration", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// SeedCatalog inserts categories with their fragrances. Unless overwrite is
// set, seeding is skipped when any category already exists.
func SeedCatalog(db *gorm.DB, categories []model.Category, overwrite bool) error {
	var count int64
	if err := db.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 && !overwrite {
		logger.Info("Catalog already seeded, skipping...", map[string]interface{}{
			"existing_categories": count,
		})
		return nil
	}

	fragranceCount := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range categories {
			category := categories[i]
			fragrances := category.Fragrances
			category.Fragrances = nil

			if err := tx.Save(&category).Error; err != nil {
				logger.Error("Failed to save category", err, map[string]interface{}{
					"category_id": category.ID,
				})
				return err
			}
			for j := range fragrances {
				fragrances[j].CategoryID = category.ID
				if err := tx.Save(&fragrances[j]).Error; err != nil {
					logger.Error("Failed to save fragrance", err, map[string]interface{}{
						"category_id":  category.ID,
						"fragrance_id": fragrances[j].ID,
					})
					return err
				}
				fragranceCount++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Catalog seeded", map[string]interface{}{
		"categories": len(categories),
		"fragrances": fragranceCount,
	})
	return nil
}
