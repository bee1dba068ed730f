package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// PaymentGateway is the online payment provider used before checkout.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*services.GatewayOrder, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// PaymentHandler exposes the gateway steps that precede order placement.
type PaymentHandler struct {
	db       *gorm.DB
	gateway  PaymentGateway
	currency string
}

// NewPaymentHandler constructs PaymentHandler. gateway may be nil when online
// payments are disabled.
func NewPaymentHandler(db *gorm.DB, gateway PaymentGateway, currency string) *PaymentHandler {
	return &PaymentHandler{db: db, gateway: gateway, currency: currency}
}

type createGatewayOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreateGatewayOrder registers a payment order with the gateway. Without an
// explicit amount the user's cart total is charged.
func (h *PaymentHandler) CreateGatewayOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	if h.gateway == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "online payments are not configured")
	}

	var req createGatewayOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	amount := req.Amount
	if amount.IsZero() {
		var cart models.Cart
		if err := h.db.Where("user_id = ?", userID).First(&cart).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		amount = cart.TotalPrice
	}
	if !amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	currency := req.Currency
	if currency == "" {
		currency = h.currency
	}

	receipt := fmt.Sprintf("rcpt_%s_%d", userID.String()[:8], time.Now().Unix())
	order, err := h.gateway.CreateOrder(c.UserContext(), amount, currency, receipt)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"key_id":            h.gateway.KeyID(),
			"razorpay_order_id": order.ID,
			"amount":            order.Amount,
			"currency":          order.Currency,
			"receipt":           order.Receipt,
		},
	})
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// VerifyPayment checks a gateway signature without placing an order.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	if h.gateway == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "online payments are not configured")
	}

	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing payment fields")
	}

	if !h.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment signature")
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"verified": true}})
}
