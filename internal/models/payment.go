package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "cod"
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// ParsePaymentMethod validates a wire value.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(value) {
	case PaymentMethodCOD, PaymentMethodRazorpay:
		return PaymentMethod(value), nil
	}
	return "", fmt.Errorf("unknown payment method %q", value)
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ParsePaymentStatus validates a wire value.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	switch PaymentStatus(value) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatus(value), nil
	}
	return "", fmt.Errorf("unknown payment status %q", value)
}

// Payment is created together with its order and never deleted.
type Payment struct {
	BaseModel
	UserID   uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	OrderID  uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	Method   PaymentMethod   `json:"method"`
	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `json:"currency"`
	Status   PaymentStatus   `gorm:"index" json:"status"`
	COD      CODDetails      `gorm:"embedded;embeddedPrefix:cod_" json:"cod"`
	Gateway  GatewayDetails  `gorm:"embedded;embeddedPrefix:gateway_" json:"gateway"`
}

// CODDetails tracks cash collection on delivery.
type CODDetails struct {
	Confirmed      bool       `json:"confirmed"`
	DeliveryStatus string     `json:"delivery_status"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// GatewayDetails keeps the online payment identifiers and the raw response for audit.
// A gateway payment reference can back at most one order.
type GatewayDetails struct {
	OrderRef    string         `gorm:"index" json:"order_ref,omitempty"`
	PaymentRef  string         `gorm:"uniqueIndex:idx_payments_gateway_payment_ref,where:gateway_payment_ref <> ''" json:"payment_ref,omitempty"`
	Signature   string         `json:"signature,omitempty"`
	RawResponse datatypes.JSON `json:"raw_response,omitempty"`
}
