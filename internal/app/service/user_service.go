package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
)


// ProfileUpdate carries optional profile fields; nil leaves a field unchanged
type ProfileUpdate struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	DisplayName *string `json:"display_name"`
	Phone       *string `json:"phone"`
}

type UserService interface {
	GetProfile(userID uint) (*model.User, error)
	UpdateProfile(userID uint, update ProfileUpdate) (*model.User, error)
	GetStats(ctx context.Context, userID uint) (*model.UserStats, error)
	GetPreferences(userID uint) (*model.UserPreferences, error)
	UpdatePreferences(userID uint, prefs model.UserPreferences) (*model.UserPreferences, error)
	Deactivate(userID uint) error
	Reactivate(userID uint) error
}

type userService struct {
	userRepo     repository.UserRepository
	prefsRepo    repository.PreferencesRepository
	orderRepo    repository.OrderRepository
	wishlistRepo repository.WishlistRepository
	now          func() time.Time
}

func NewUserService(
	userRepo repository.UserRepository,
	prefsRepo repository.PreferencesRepository,
	orderRepo repository.OrderRepository,
	wishlistRepo repository.WishlistRepository,
) UserService {
	return &userService{
		userRepo:     userRepo,
		prefsRepo:    prefsRepo,
		orderRepo:    orderRepo,
		wishlistRepo: wishlistRepo,
		now:          time.Now,
	}
}

func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateProfile(userID uint, update ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	updated := false
	apply := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if v != *dst {
			*dst = v
			updated = true
		}
	}
	apply(&user.FirstName, update.FirstName)
	apply(&user.LastName, update.LastName)
	apply(&user.DisplayName, update.DisplayName)
	apply(&user.Phone, update.Phone)

	if !updated {
		logger.Debug("No changes detected for user profile", map[string]interface{}{
			"user_id": userID,
		})
		return user, nil
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	logger.Info("User profile updated", map[string]interface{}{
		"user_id": userID,
	})
	return user, nil
}

func (s *userService) GetStats(ctx context.Context, userID uint) (*model.UserStats, error) {
	orders, err := s.orderRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	wishlist, err := s.wishlistRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	spent, err := s.orderRepo.SumPaidByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserStats{
		OrdersCount:   orders,
		WishlistCount: wishlist,
		TotalSpent:    spent,
	}, nil
}

func (s *userService) GetPreferences(userID uint) (*model.UserPreferences, error) {
	return s.prefsRepo.FindByUserID(userID)
}

var supportedCurrencies = map[string]bool{"INR": true}

func (s *userService) UpdatePreferences(userID uint, prefs model.UserPreferences) (*model.UserPreferences, error) {
	defaults := model.DefaultPreferences(userID)
	prefs.ID = 0
	prefs.UserID = userID
	prefs.Currency = strings.ToUpper(strings.TrimSpace(prefs.Currency))
	if prefs.Currency == "" {
		prefs.Currency = defaults.Currency
	}
	if prefs.Language = strings.TrimSpace(prefs.Language); prefs.Language == "" {
		prefs.Language = defaults.Language
	}
	if !supportedCurrencies[prefs.Currency] {
		return nil, NewValidationError(map[string]string{"currency": "is not supported"})
	}

	if err := s.prefsRepo.Upsert(&prefs); err != nil {
		logger.Error("Failed to save preferences", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return s.prefsRepo.FindByUserID(userID)
}

func (s *userService) Deactivate(userID uint) error {
	if err := s.userRepo.Deactivate(userID, s.now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	logger.Info("User account deactivated", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

func (s *userService) Reactivate(userID uint) error {
	if err := s.userRepo.Reactivate(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	logger.Info("User account reactivated", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}
