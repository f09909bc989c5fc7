package model

import (
	"time"
)

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_wishlist_user_item" json:"user_id"`
	ItemID    string    `gorm:"size:130;not null;uniqueIndex:idx_wishlist_user_item" json:"item_id"` // catalog item id
	Name      string    `gorm:"size:255" json:"name"`
	Price     Money     `gorm:"type:numeric(12,2);not null" json:"price"`
	Image     string    `gorm:"size:500" json:"image,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (WishlistItem) TableName() string {
	return "wishlist_items"
}
