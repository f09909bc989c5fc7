package model

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeOrderConfirmed     NotificationType = "order_confirmed"
	NotificationTypeOrderCancelled     NotificationType = "order_cancelled"
	NotificationTypePaymentNeedsReview NotificationType = "payment_needs_review"
	NotificationTypeGeneral            NotificationType = "general"
)

type Notification struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(50);not null" json:"type"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Link      string           `gorm:"size:500" json:"link,omitempty"`
	OrderID   *uint            `gorm:"index" json:"order_id,omitempty"`
	IsRead    bool             `gorm:"not null;index" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
