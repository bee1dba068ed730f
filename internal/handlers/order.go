package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler manages customer order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	checkout *services.CheckoutService
	orders   *services.OrderService
	log      zerolog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, checkout *services.CheckoutService, orders *services.OrderService, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{db: db, checkout: checkout, orders: orders, log: log}
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type paymentDetailsRequest struct {
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpaySignature string          `json:"razorpay_signature"`
	Status            string          `json:"status"`
	RawResponse       json.RawMessage `json:"raw_response"`
}

type createOrderRequest struct {
	AddressID      string                 `json:"address_id"`
	Items          []orderLineRequest     `json:"items"`
	TotalPrice     decimal.Decimal        `json:"total_price"`
	PaymentMethod  string                 `json:"payment_method"`
	Currency       string                 `json:"currency"`
	PaymentDetails *paymentDetailsRequest `json:"payment_details"`
}

// CreateOrder places an order for the authenticated user. When the request
// carries no items the user's stored cart is checked out and emptied.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, fromCart, err := h.buildInput(c, userID, req)
	if err != nil {
		return err
	}

	result, err := h.checkout.PlaceOrder(c.UserContext(), input)
	if err != nil {
		return err
	}

	if fromCart {
		if err := clearCart(h.db.WithContext(c.UserContext()), userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to clear cart after checkout")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order":   result.Order,
			"payment": result.Payment,
		},
	})
}

func (h *OrderHandler) buildInput(c *fiber.Ctx, userID uuid.UUID, req createOrderRequest) (services.PlaceOrderInput, bool, error) {
	input := services.PlaceOrderInput{
		UserID:     userID,
		TotalPrice: req.TotalPrice,
		Currency:   req.Currency,
	}

	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return input, false, fmt.Errorf("%w: address_id", services.ErrInvalidReference)
	}
	input.AddressID = addressID

	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return input, false, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	input.PaymentMethod = method

	if d := req.PaymentDetails; d != nil {
		gateway := &services.GatewayPayment{
			OrderRef:   d.RazorpayOrderID,
			PaymentRef: d.RazorpayPaymentID,
			Signature:  d.RazorpaySignature,
			Raw:        d.RawResponse,
		}
		if d.Status != "" {
			status, err := models.ParsePaymentStatus(d.Status)
			if err != nil {
				return input, false, fmt.Errorf("%w: %v", services.ErrValidation, err)
			}
			gateway.Status = status
		}
		input.Gateway = gateway
	}

	fromCart := len(req.Items) == 0
	if fromCart {
		var cart models.Cart
		err := h.db.WithContext(c.UserContext()).Preload("Items").
			Where("user_id = ?", userID).First(&cart).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return input, false, err
		}
		for _, item := range cart.Items {
			input.Lines = append(input.Lines, services.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return input, true, nil
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return input, false, fmt.Errorf("%w: product_id %q", services.ErrInvalidReference, item.ProductID)
		}
		input.Lines = append(input.Lines, services.CartLine{ProductID: productID, Quantity: item.Quantity})
	}
	return input, false, nil
}

// ListOrders returns orders for authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		query = query.Where("status = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order and its payment for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	var payment models.Payment
	data := fiber.Map{"order": order}
	if err := h.db.First(&payment, "order_id = ?", order.ID).Error; err == nil {
		data["payment"] = payment
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels one of the user's orders.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req cancelOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	order, err := h.orders.Cancel(c.UserContext(), userID, id, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
