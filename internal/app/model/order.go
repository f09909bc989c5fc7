package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string   // order lifecycle status
type PaymentStatus string // payment collection status

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"

	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// CustomerInfo is the contact snapshot taken at checkout
type CustomerInfo struct {
	FirstName string `gorm:"size:100" json:"first_name" validate:"required"`
	LastName  string `gorm:"size:100" json:"last_name" validate:"required"`
	Email     string `gorm:"size:255" json:"email" validate:"required,email"`
	Phone     string `gorm:"size:30" json:"phone" validate:"required"`
}

func (c CustomerInfo) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// PostalAddress is shared by the address book and the order snapshot
type PostalAddress struct {
	Street    string `gorm:"size:255" json:"street" validate:"required"`
	Apartment string `gorm:"size:255" json:"apartment,omitempty"`
	City      string `gorm:"size:100" json:"city" validate:"required"`
	State     string `gorm:"size:100" json:"state" validate:"required"`
	Pincode   string `gorm:"size:6" json:"pincode" validate:"required,pincode"`
	Country   string `gorm:"size:100" json:"country"`
}

type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	OrderNumber      string         `gorm:"size:32;uniqueIndex;not null" json:"order_number"` // CP-2026-123456
	UserID           uint           `gorm:"not null;index" json:"user_id"`                    // 0 for guest checkout
	IdempotencyKey   *string        `gorm:"size:64;uniqueIndex" json:"-"`                     // one order per checkout attempt
	Customer         CustomerInfo   `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	ShippingAddress  PostalAddress  `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Subtotal         Money          `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax              Money          `gorm:"type:numeric(12,2);not null" json:"tax"`
	Shipping         Money          `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Total            Money          `gorm:"type:numeric(12,2);not null" json:"total"`
	Currency         string         `gorm:"size:3;not null" json:"currency"`
	Status           OrderStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus    PaymentStatus  `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentProvider  string         `gorm:"size:20" json:"payment_provider,omitempty"` // razorpay or demo
	PaymentID        string         `gorm:"size:64" json:"payment_id,omitempty"`       // set only after payment completes
	GatewayOrderID   string         `gorm:"size:64;index" json:"gateway_order_id,omitempty"`
	PaymentSignature string         `gorm:"size:255" json:"-"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

// ItemCount is the sum of item quantities
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

type OrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	OrderID      uint      `gorm:"not null;index" json:"order_id"`
	ProductID    string    `gorm:"size:130;not null" json:"product_id"` // catalog item id
	ProductName  string    `gorm:"size:255;not null" json:"product_name"`
	ProductImage string    `gorm:"size:500" json:"product_image,omitempty"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	Price        Money     `gorm:"type:numeric(12,2);not null" json:"price"`
	Total        Money     `gorm:"type:numeric(12,2);not null" json:"total"`
	CreatedAt    time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// PaymentUpdate carries the identifiers returned by a completed payment
type PaymentUpdate struct {
	Provider       string
	PaymentID      string
	GatewayOrderID string
	Signature      string
}
