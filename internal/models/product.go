package models

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Stock is the only field mutated by checkout.
type Product struct {
	BaseModel
	Title       string          `json:"title"`
	Slug        string          `gorm:"uniqueIndex" json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Categories  []string        `gorm:"type:text;serializer:json" json:"categories"`
	Images      []string        `gorm:"type:text;serializer:json" json:"images"`
	IsActive    bool            `json:"is_active"`
}

// PrimaryImage returns the first image or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
