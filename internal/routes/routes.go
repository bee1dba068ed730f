package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	DB        *gorm.DB
	JWTSecret string
	TokenTTL  time.Duration
	Currency  string

	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Payments *services.PaymentService

	// Gateway and IdempotencyKeys are optional.
	Gateway         handlers.PaymentGateway
	IdempotencyKeys middleware.KeyStore
	IdempotencyTTL  time.Duration

	Log zerolog.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.DB, d.JWTSecret, d.TokenTTL)
	productHandler := handlers.NewProductHandler(d.DB)
	cartHandler := handlers.NewCartHandler(d.DB)
	orderHandler := handlers.NewOrderHandler(d.DB, d.Checkout, d.Orders, d.Log)
	paymentHandler := handlers.NewPaymentHandler(d.DB, d.Gateway, d.Currency)
	profileHandler := handlers.NewProfileHandler(d.DB)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Orders, d.Payments)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	requireAuth := middleware.AuthMiddleware(d.JWTSecret)
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())

	// Products
	productHandler.RegisterProductRoutes(api.Group("/products"), admin.Group("/products"))

	// Protected routes
	protected := api.Group("", requireAuth)

	protected.Get("/cart", cartHandler.GetCart)
	protected.Delete("/cart", cartHandler.ClearCart)
	protected.Post("/cart/items", cartHandler.AddItem)
	protected.Patch("/cart/items/:productId/increment", cartHandler.IncrementItem)
	protected.Patch("/cart/items/:productId/decrement", cartHandler.DecrementItem)
	protected.Delete("/cart/items/:productId", cartHandler.RemoveItem)

	protected.Post("/orders", middleware.Idempotency(d.IdempotencyKeys, d.IdempotencyTTL, d.Log), orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)

	protected.Post("/payments/razorpay/order", paymentHandler.CreateGatewayOrder)
	protected.Post("/payments/razorpay/verify", paymentHandler.VerifyPayment)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	// Admin routes
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/recent", adminHandler.RecentOrders)
	admin.Patch("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Get("/orders/:id/payment", adminHandler.GetOrderPayment)
	admin.Patch("/payments/:id", adminHandler.UpdatePaymentStatus)
	admin.Get("/users", adminHandler.ListAllUsers)
}
