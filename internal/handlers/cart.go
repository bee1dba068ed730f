package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

// CartHandler manages the authenticated user's cart.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	return h.mutate(c, func(*gorm.DB, *models.Cart) error { return nil })
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddItem adds a product to the cart or increases the quantity of its line.
// The price is captured from the catalog when the line is first created.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}

	return h.mutate(c, func(tx *gorm.DB, cart *models.Cart) error {
		product, err := findActiveProduct(tx, productID)
		if err != nil {
			return err
		}

		if i := lineIndex(cart, productID); i >= 0 {
			return setLineQuantity(tx, cart, i, cart.Items[i].Quantity+req.Quantity, product.Stock)
		}

		if req.Quantity > product.Stock {
			return stockExceeded(product.Stock)
		}
		item := models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Title:     product.Title,
			Image:     product.PrimaryImage(),
			Price:     product.Price,
			Quantity:  req.Quantity,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		cart.Items = append(cart.Items, item)
		return nil
	})
}

// IncrementItem raises a line quantity by one.
func (h *CartHandler) IncrementItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	return h.mutate(c, func(tx *gorm.DB, cart *models.Cart) error {
		i := lineIndex(cart, productID)
		if i < 0 {
			return fiber.NewError(fiber.StatusNotFound, "item not in cart")
		}
		product, err := findActiveProduct(tx, productID)
		if err != nil {
			return err
		}
		return setLineQuantity(tx, cart, i, cart.Items[i].Quantity+1, product.Stock)
	})
}

// DecrementItem lowers a line quantity by one and drops the line at zero.
func (h *CartHandler) DecrementItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	return h.mutate(c, func(tx *gorm.DB, cart *models.Cart) error {
		i := lineIndex(cart, productID)
		if i < 0 {
			return fiber.NewError(fiber.StatusNotFound, "item not in cart")
		}
		if cart.Items[i].Quantity <= 1 {
			return removeLine(tx, cart, i)
		}
		return setLineQuantity(tx, cart, i, cart.Items[i].Quantity-1, -1)
	})
}

// RemoveItem deletes a line from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	return h.mutate(c, func(tx *gorm.DB, cart *models.Cart) error {
		i := lineIndex(cart, productID)
		if i < 0 {
			return fiber.NewError(fiber.StatusNotFound, "item not in cart")
		}
		return removeLine(tx, cart, i)
	})
}

// ClearCart removes every line.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	return h.mutate(c, func(tx *gorm.DB, cart *models.Cart) error {
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		cart.Items = nil
		return nil
	})
}

// mutate loads the cart inside a transaction, applies fn, recomputes the
// total and responds with the resulting cart.
func (h *CartHandler) mutate(c *fiber.Ctx, fn func(tx *gorm.DB, cart *models.Cart) error) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var cart *models.Cart
	err := h.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := loadCart(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, loaded); err != nil {
			return err
		}
		loaded.Recalculate()
		if err := tx.Model(&models.Cart{}).Where("id = ?", loaded.ID).
			Update("total_price", loaded.TotalPrice).Error; err != nil {
			return err
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return err
	}

	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func loadCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: userID, TotalPrice: decimal.Zero}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// clearCart empties a user's cart after checkout.
func clearCart(tx *gorm.DB, userID uuid.UUID) error {
	var cart models.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return tx.Model(&cart).Update("total_price", decimal.Zero).Error
}

func findActiveProduct(tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := tx.First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

func lineIndex(cart *models.Cart, productID uuid.UUID) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// setLineQuantity persists a new quantity. A negative stock skips the check.
func setLineQuantity(tx *gorm.DB, cart *models.Cart, i, quantity, stock int) error {
	if stock >= 0 && quantity > stock {
		return stockExceeded(stock)
	}
	if err := tx.Model(&models.CartItem{}).Where("id = ?", cart.Items[i].ID).
		Update("quantity", quantity).Error; err != nil {
		return err
	}
	cart.Items[i].Quantity = quantity
	return nil
}

func removeLine(tx *gorm.DB, cart *models.Cart, i int) error {
	if err := tx.Delete(&models.CartItem{}, "id = ?", cart.Items[i].ID).Error; err != nil {
		return err
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	return nil
}

func stockExceeded(stock int) error {
	return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("only %d left in stock", stock))
}
