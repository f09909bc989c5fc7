package service

import (
	"errors"
	"strings"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrAddressNotFound = errors.New("address not found")

// AddressInput is the editable part of an address book entry
type AddressInput struct {
	Label     string              `json:"label"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Phone     string              `json:"phone"`
	Address   model.PostalAddress `json:"address"`
	IsDefault bool                `json:"is_default"`
}

type AddressService interface {
	GetUserAddresses(userID uint) ([]model.Address, error)
	GetDefaultAddress(userID uint) (*model.Address, error)
	CreateAddress(userID uint, input AddressInput) (*model.Address, error)
	UpdateAddress(userID, addressID uint, input AddressInput) (*model.Address, error)
	DeleteAddress(userID, addressID uint) error
	SetDefaultAddress(userID, addressID uint) error
}

type addressService struct {
	addressRepo repository.AddressRepository
	builder     *OrderBuilder
}

// NewAddressService shares the shipping address rules with checkout through builder
func NewAddressService(addressRepo repository.AddressRepository, builder *OrderBuilder) AddressService {
	return &addressService{
		addressRepo: addressRepo,
		builder:     builder,
	}
}

func (s *addressService) validate(input AddressInput) (AddressInput, error) {
	input.Label = strings.TrimSpace(input.Label)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = s.builder.normalizeAddress(input.Address)

	fields := map[string]string{}
	if err := s.builder.ValidateAddress(input.Address); err != nil {
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			return input, err
		}
		for name, msg := range validationErr.Fields {
			fields[name] = msg
		}
	}
	if input.FirstName == "" {
		fields["first_name"] = "is required"
	}
	if input.Phone == "" {
		fields["phone"] = "is required"
	}
	if len(fields) > 0 {
		return input, NewValidationError(fields)
	}
	return input, nil
}

// owned loads an address and hides other users' entries
func (s *addressService) owned(userID, addressID uint) (*model.Address, error) {
	address, err := s.addressRepo.FindByID(addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		logger.Error("Failed to fetch address", err, map[string]interface{}{
			"address_id": addressID,
		})
		return nil, err
	}
	if address.UserID != userID {
		logger.Warn("Address belongs to another user", map[string]interface{}{
			"user_id":    userID,
			"address_id": addressID,
		})
		return nil, ErrAddressNotFound
	}
	return address, nil
}

func (s *addressService) GetUserAddresses(userID uint) ([]model.Address, error) {
	addresses, err := s.addressRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user addresses", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return addresses, nil
}

func (s *addressService) GetDefaultAddress(userID uint) (*model.Address, error) {
	address, err := s.addressRepo.FindDefault(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return address, nil
}

func (s *addressService) CreateAddress(userID uint, input AddressInput) (*model.Address, error) {
	input, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.addressRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	address := &model.Address{
		UserID:        userID,
		Label:         input.Label,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Phone:         input.Phone,
		PostalAddress: input.Address,
		IsDefault:     input.IsDefault || len(existing) == 0,
	}
	if err := s.addressRepo.Create(address); err != nil {
		logger.Error("Failed to create address", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Address created", map[string]interface{}{
		"address_id": address.ID,
		"user_id":    userID,
		"is_default": address.IsDefault,
	})
	return address, nil
}

func (s *addressService) UpdateAddress(userID, addressID uint, input AddressInput) (*model.Address, error) {
	address, err := s.owned(userID, addressID)
	if err != nil {
		return nil, err
	}
	input, err = s.validate(input)
	if err != nil {
		return nil, err
	}

	address.Label = input.Label
	address.FirstName = input.FirstName
	address.LastName = input.LastName
	address.Phone = input.Phone
	address.PostalAddress = input.Address
	// a default stays default until another address takes over
	address.IsDefault = address.IsDefault || input.IsDefault

	if err := s.addressRepo.Update(address); err != nil {
		logger.Error("Failed to update address", err, map[string]interface{}{
			"address_id": addressID,
		})
		return nil, err
	}
	return address, nil
}

// DeleteAddress removes the entry; when it was the default the newest
// remaining address takes over
func (s *addressService) DeleteAddress(userID, addressID uint) error {
	address, err := s.owned(userID, addressID)
	if err != nil {
		return err
	}
	if err := s.addressRepo.Delete(address.ID); err != nil {
		logger.Error("Failed to delete address", err, map[string]interface{}{
			"address_id": addressID,
		})
		return err
	}

	if address.IsDefault {
		remaining, err := s.addressRepo.FindByUserID(userID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			if err := s.addressRepo.SetDefault(userID, remaining[0].ID); err != nil {
				return err
			}
		}
	}

	logger.Info("Address deleted", map[string]interface{}{
		"address_id": addressID,
		"user_id":    userID,
	})
	return nil
}

func (s *addressService) SetDefaultAddress(userID, addressID uint) error {
	if err := s.addressRepo.SetDefault(userID, addressID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAddressNotFound
		}
		return err
	}
	return nil
}
