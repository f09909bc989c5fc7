package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"not null" json:"-"`
	FirstName     string         `gorm:"size:100" json:"first_name"`
	LastName      string         `gorm:"size:100" json:"last_name"`
	DisplayName   string         `gorm:"size:200" json:"display_name"`
	Phone         string         `gorm:"size:30" json:"phone"`
	Role          UserRole       `gorm:"type:varchar(20);not null" json:"role"`
	IsActive      bool           `gorm:"not null" json:"is_active"`
	DeactivatedAt *time.Time     `json:"deactivated_at,omitempty"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Contact returns the checkout contact prefilled from the profile
func (u *User) Contact() CustomerInfo {
	return CustomerInfo{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

// UserPreferences stores account settings; missing rows mean defaults
type UserPreferences struct {
	ID           uint      `gorm:"primarykey" json:"-"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Newsletter   bool      `gorm:"not null" json:"newsletter"`
	OrderUpdates bool      `gorm:"not null" json:"order_updates"`
	Promotions   bool      `gorm:"not null" json:"promotions"`
	Currency     string    `gorm:"size:3;not null" json:"currency"`
	Language     string    `gorm:"size:10;not null" json:"language"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserPreferences) TableName() string {
	return "user_preferences"
}

// DefaultPreferences is what a user gets before saving any settings
func DefaultPreferences(userID uint) UserPreferences {
	return UserPreferences{
		UserID:       userID,
		Newsletter:   true,
		OrderUpdates: true,
		Promotions:   false,
		Currency:     "INR",
		Language:     "en",
	}
}

// UserStats summarises account activity for the dashboard
type UserStats struct {
	OrdersCount   int64 `json:"orders_count"`
	WishlistCount int64 `json:"wishlist_count"`
	TotalSpent    Money `json:"total_spent"`
}
