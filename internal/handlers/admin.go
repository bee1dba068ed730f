package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

const lowStockThreshold = 5

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db       *gorm.DB
	orders   *services.OrderService
	payments *services.PaymentService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, orders *services.OrderService, payments *services.PaymentService) *AdminHandler {
	return &AdminHandler{db: db, orders: orders, payments: payments}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	var totalProducts int64
	if err := h.db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}

	var lowStock int64
	if err := h.db.Model(&models.Product{}).
		Where("is_active = ? AND stock <= ?", true, lowStockThreshold).
		Count(&lowStock).Error; err != nil {
		return err
	}

	// Orders by status
	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	excluded := []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusRefunded}

	totalRevenue, err := h.revenue(h.db.Where("status NOT IN ?", excluded))
	if err != nil {
		return err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayRevenue, err := h.revenue(h.db.Where("status NOT IN ? AND placed_at >= ?", excluded, startOfDay))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":        totalUsers,
			"total_orders":       totalOrders,
			"total_products":     totalProducts,
			"low_stock_products": lowStock,
			"total_revenue":      totalRevenue,
			"today_revenue":      todayRevenue,
			"orders_by_status":   ordersByStatus,
		},
	})
}

func (h *AdminHandler) revenue(query *gorm.DB) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	if err := query.Model(&models.Order{}).Pluck("total_price", &totals).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, totals...), nil
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		query = query.Where("status = ?", parsed)
	}

	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		query = query.Where("user_id = ?", id)
	}

	if v := c.Query("payment_method"); v != "" {
		query = query.Where("payment_method = ?", v)
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

type updateOrderStatusRequest struct {
	Status         string           `json:"status"`
	TrackingNumber *string          `json:"tracking_number"`
	AdminNotes     *string          `json:"admin_notes"`
	RefundAmount   *decimal.Decimal `json:"refund_amount"`
	RefundReason   string           `json:"refund_reason"`
}

// UpdateOrderStatus changes an order's status and notifies the customer.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), id, services.StatusUpdate{
		Status:         status,
		TrackingNumber: req.TrackingNumber,
		AdminNotes:     req.AdminNotes,
		RefundAmount:   req.RefundAmount,
		RefundReason:   req.RefundReason,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updatePaymentStatusRequest struct {
	Status         string `json:"status"`
	CODConfirmed   *bool  `json:"cod_confirmed"`
	DeliveryStatus string `json:"delivery_status"`
}

// UpdatePaymentStatus records a payment callback or a COD confirmation.
func (h *AdminHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updatePaymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	payment, err := h.payments.UpdateStatus(c.UserContext(), id, services.PaymentUpdate{
		Status:         status,
		CODConfirmed:   req.CODConfirmed,
		DeliveryStatus: req.DeliveryStatus,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": payment})
}

// GetOrderPayment returns the payment attached to an order.
func (h *AdminHandler) GetOrderPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	payment, err := h.payments.FindByOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": payment})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", q, q, q)
	}

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	type userStats struct {
		UserID     uuid.UUID
		TotalPrice decimal.Decimal
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var rows []userStats
	if len(ids) > 0 {
		if err := h.db.Model(&models.Order{}).
			Select("user_id, total_price").
			Where("user_id IN ? AND status NOT IN ?", ids, []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusRefunded}).
			Scan(&rows).Error; err != nil {
			return err
		}
	}

	spent := make(map[uuid.UUID]decimal.Decimal)
	for _, r := range rows {
		spent[r.UserID] = spent[r.UserID].Add(r.TotalPrice)
	}

	type userResponse struct {
		models.User
		TotalSpent decimal.Decimal `json:"total_spent"`
	}

	result := make([]userResponse, len(users))
	for i, u := range users {
		result[i] = userResponse{User: u, TotalSpent: spent[u.ID]}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       result,
		"pagination": pg.Meta(total),
	})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.Preload("Items").
		Order("placed_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders})
}
