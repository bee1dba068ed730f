package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus values are persisted and returned verbatim.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
	OrderStatusRefunded       OrderStatus = "Refunded"
	// OrderStatusReturned is accepted but no transition produces it yet.
	OrderStatusReturned OrderStatus = "Returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
	OrderStatusReturned,
}

// ParseOrderStatus maps a case-sensitive wire value to an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, s := range orderStatuses {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", value)
}

// OrderGroup aggregates every order placed with one email address.
type OrderGroup struct {
	BaseModel
	Email  string    `gorm:"uniqueIndex" json:"email"`
	UserID uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Orders []Order   `json:"orders,omitempty"`
}

type Order struct {
	BaseModel
	OrderGroupID   uuid.UUID           `gorm:"type:uuid;index" json:"order_group_id"`
	OrderGroup     *OrderGroup         `json:"-"`
	UserID         uuid.UUID           `gorm:"type:uuid;index" json:"user_id"`
	AddressID      uuid.UUID           `gorm:"type:uuid" json:"address_id"`
	Items          []OrderItem         `json:"items,omitempty"`
	TotalPrice     decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency       string              `json:"currency"`
	PaymentMethod  PaymentMethod       `json:"payment_method"`
	Status         OrderStatus         `gorm:"index;default:Pending" json:"status"`
	PlacedAt       time.Time           `json:"placed_at"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	AdminNotes     string              `json:"admin_notes,omitempty"`
	RefundAmount   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"refund_amount"`
	RefundReason   string              `json:"refund_reason,omitempty"`
	RefundedAt     *time.Time          `json:"refunded_at,omitempty"`
	CancelReason   string              `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
}

// OrderItem is a snapshot of the catalog entry at purchase time.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Categories  []string        `gorm:"type:text;serializer:json" json:"categories"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int             `json:"quantity"`
}

// LineTotal returns price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
