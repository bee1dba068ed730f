package notify

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

// Event names the reason a message was emitted.
type Event string

const (
	EventOrderPlaced        Event = "order.placed"
	EventOrderStatusChanged Event = "order.status_changed"
)

// Message is the unit handed to the dispatcher.
type Message struct {
	Event      Event        `json:"event"`
	Order      OrderSummary `json:"order"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// OrderSummary is the order data every sender needs.
type OrderSummary struct {
	OrderID        string          `json:"order_id"`
	Email          string          `json:"email"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Currency       string          `json:"currency"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Items          []ItemSummary   `json:"items"`
}

type ItemSummary struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SummarizeOrder builds an OrderSummary from a stored order and its owner.
func SummarizeOrder(order *models.Order, email string, user *models.User) OrderSummary {
	summary := OrderSummary{
		OrderID:        order.ID.String(),
		Email:          email,
		Status:         string(order.Status),
		PaymentMethod:  string(order.PaymentMethod),
		TotalPrice:     order.TotalPrice,
		Currency:       order.Currency,
		TrackingNumber: order.TrackingNumber,
		Items:          make([]ItemSummary, 0, len(order.Items)),
	}
	if user != nil {
		summary.CustomerName = user.Name
		summary.CustomerPhone = user.Phone
	}
	for _, item := range order.Items {
		summary.Items = append(summary.Items, ItemSummary{
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return summary
}
