package repository

import (
	"github.com/carpore/carpore-backend/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferencesRepository interface {
	// FindByUserID returns stored preferences or the defaults when none are saved
	FindByUserID(userID uint) (*model.UserPreferences, error)
	Upsert(prefs *model.UserPreferences) error
}

type preferencesRepository struct {
	db *gorm.DB
}

func NewPreferencesRepository(db *gorm.DB) PreferencesRepository {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) FindByUserID(userID uint) (*model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := r.db.Where("user_id = ?", userID).First(&prefs).Error
	if err == gorm.ErrRecordNotFound {
		defaults := model.DefaultPreferences(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *preferencesRepository) Upsert(prefs *model.UserPreferences) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"newsletter", "order_updates", "promotions", "currency", "language", "updated_at"}),
	}).Create(prefs).Error
}
