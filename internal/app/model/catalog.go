package model

import (
	"strings"
	"time"
)

// Category is a product line such as "camphor" or "wood-infused"
type Category struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`                  // slug
	Name        string    `gorm:"size:200;not null" json:"name"`                 // display name
	Description string    `gorm:"type:text" json:"description"`                  // fallback description
	BasePrice   Money     `gorm:"type:numeric(12,2);not null" json:"base_price"` // used when a fragrance has no price
	ImageKey    string    `gorm:"size:500" json:"image_key,omitempty"`           // object storage key
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`          // listing order
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Fragrances []Fragrance `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"fragrances,omitempty"`
}

func (Category) TableName() string {
	return "product_categories"
}

// Fragrance is a scent variant embedded in a category
type Fragrance struct {
	CategoryID  string    `gorm:"primaryKey;size:64" json:"category_id"`
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       Money     `gorm:"type:numeric(12,2);not null" json:"price"`
	Rating      float64   `gorm:"not null;default:0" json:"rating"`
	ReviewCount int       `gorm:"not null;default:0" json:"review_count"`
	ImageKey    string    `gorm:"size:500" json:"image_key,omitempty"`
	Featured    bool      `gorm:"not null;default:false" json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Fragrance) TableName() string {
	return "fragrances"
}

// CatalogItem is the sellable view of a category + fragrance pair.
// It is built on every catalog read and never stored.
type CatalogItem struct {
	ID          string  `json:"id"`
	CategoryID  string  `json:"category_id"`
	FragranceID string  `json:"fragrance_id"`
	Name        string  `json:"name"`
	Price       Money   `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Scent       string  `json:"scent"`
	Image       string  `json:"image,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Featured    bool    `json:"featured"`
}

// CatalogItemID joins a category and fragrance id
func CatalogItemID(categoryID, fragranceID string) string {
	return categoryID + "-" + fragranceID
}

// ImageURLFunc turns a storage key into a public URL
type ImageURLFunc func(key string) string

// NewCatalogItem flattens a fragrance variant into a sellable item
func NewCatalogItem(category *Category, fragrance *Fragrance, imageURL ImageURLFunc) CatalogItem {
	price := fragrance.Price
	if !price.IsPositive() {
		price = category.BasePrice
	}

	description := fragrance.Description
	if strings.TrimSpace(description) == "" {
		description = category.Description
	}

	image := fragrance.ImageKey
	if image == "" {
		image = category.ImageKey
	}
	if image != "" && imageURL != nil {
		image = imageURL(image)
	}

	return CatalogItem{
		ID:          CatalogItemID(category.ID, fragrance.ID),
		CategoryID:  category.ID,
		FragranceID: fragrance.ID,
		Name:        strings.TrimSpace(category.Name + " " + fragrance.Name),
		Price:       NewMoney(price.Decimal),
		Description: description,
		Category:    category.Name,
		Scent:       fragrance.Name,
		Image:       image,
		Rating:      fragrance.Rating,
		ReviewCount: fragrance.ReviewCount,
		Featured:    fragrance.Featured,
	}
}
