package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart holds the pending purchase of a single user.
type Cart struct {
	BaseModel
	UserID     uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_price"`
}

// CartItem captures the product price at the time it was added.
type CartItem struct {
	BaseModel
	CartID    uuid.UUID       `gorm:"type:uuid;index" json:"cart_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int             `json:"quantity"`
}

// Recalculate sets TotalPrice from the stored line prices.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalPrice = total
}
