package model

import (
	"time"

	"gorm.io/gorm"
)

// Address is a saved entry in a user's address book
type Address struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UserID        uint   `gorm:"not null;index" json:"user_id"`
	Label         string `gorm:"size:50" json:"label"` // Home, Office
	FirstName     string `gorm:"size:100;not null" json:"first_name"`
	LastName      string `gorm:"size:100" json:"last_name"`
	Phone         string `gorm:"size:30;not null" json:"phone"`
	PostalAddress `gorm:"embedded"`
	IsDefault     bool           `gorm:"not null" json:"is_default"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Address) TableName() string {
	return "addresses"
}
