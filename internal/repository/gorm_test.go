package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/services"
)

type seed struct {
	db      *gorm.DB
	store   *repository.GormStore
	user    models.User
	address models.UserAddress
	product models.Product
}

func setup(t *testing.T, stock int) *seed {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	s := &seed{db: db, store: repository.NewGormStore(db)}
	s.user = models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RoleCustomer}
	require.NoError(t, db.Create(&s.user).Error)
	s.address = models.UserAddress{UserID: s.user.ID, AddressLine: "1 Park Street", City: "Kolkata"}
	require.NoError(t, db.Create(&s.address).Error)
	s.product = models.Product{
		Title:      "Kurta",
		Slug:       "kurta",
		Price:      decimal.RequireFromString("499.50"),
		Stock:      stock,
		Categories: []string{"ethnic"},
		Images:     []string{"kurta.jpg"},
		IsActive:   true,
	}
	require.NoError(t, db.Create(&s.product).Error)
	return s
}

func (s *seed) checkout() *services.CheckoutService {
	return services.NewCheckoutService(s.store, nil, nil, "INR", zerolog.Nop())
}

func (s *seed) input(quantity int) services.PlaceOrderInput {
	return services.PlaceOrderInput{
		UserID:        s.user.ID,
		AddressID:     s.address.ID,
		Lines:         []services.CartLine{{ProductID: s.product.ID, Quantity: quantity}},
		PaymentMethod: models.PaymentMethodCOD,
	}
}

func (s *seed) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, s.db.First(&p, "id = ?", s.product.ID).Error)
	return p.Stock
}

func TestGormStorePlaceOrderCommitsEverything(t *testing.T) {
	s := setup(t, 5)

	res, err := s.checkout().PlaceOrder(context.Background(), s.input(2))
	require.NoError(t, err)

	assert.Equal(t, 3, s.stock(t))

	var order models.Order
	require.NoError(t, s.db.Preload("Items").Preload("OrderGroup").First(&order, "id = ?", res.Order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("999")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Kurta", order.Items[0].Title)
	assert.Equal(t, []string{"ethnic"}, order.Items[0].Categories)
	assert.True(t, order.Items[0].Price.Equal(decimal.RequireFromString("499.5")))
	require.NotNil(t, order.OrderGroup)
	assert.Equal(t, "ravi@example.com", order.OrderGroup.Email)

	var payment models.Payment
	require.NoError(t, s.db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "pending", payment.COD.DeliveryStatus)
	assert.True(t, payment.Amount.Equal(order.TotalPrice))

	var user models.User
	require.NoError(t, s.db.First(&user, "id = ?", s.user.ID).Error)
	assert.Equal(t, 1, user.OrderCount)
}

func TestGormStoreReusesOrderGroup(t *testing.T) {
	s := setup(t, 5)

	first, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)
	second, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)

	assert.Equal(t, first.Order.OrderGroupID, second.Order.OrderGroupID)

	var groups int64
	require.NoError(t, s.db.Model(&models.OrderGroup{}).Count(&groups).Error)
	assert.Equal(t, int64(1), groups)

	var group models.OrderGroup
	require.NoError(t, s.db.Preload("Orders").First(&group, "email = ?", s.user.Email).Error)
	assert.Len(t, group.Orders, 2)
}

func TestGormStoreRollsBackOnInsufficientStock(t *testing.T) {
	s := setup(t, 5)

	_, err := s.checkout().PlaceOrder(context.Background(), s.input(6))
	require.ErrorIs(t, err, services.ErrInsufficientStock)

	assert.Equal(t, 5, s.stock(t))
	for _, model := range []interface{}{&models.Order{}, &models.OrderItem{}, &models.Payment{}, &models.OrderGroup{}} {
		var count int64
		require.NoError(t, s.db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestGormStoreConcurrentCheckouts(t *testing.T) {
	s := setup(t, 5)
	svc := s.checkout()

	const buyers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), s.input(1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, services.ErrInsufficientStock):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, 0, s.stock(t))

	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(5), orders)
}

func TestGormStoreDecrementStockIsConditional(t *testing.T) {
	s := setup(t, 2)

	err := s.store.WithinTransaction(context.Background(), func(store repository.Store) error {
		return store.Products().DecrementStock(context.Background(), s.product.ID, 3)
	})
	assert.ErrorIs(t, err, repository.ErrStockConflict)
	assert.Equal(t, 2, s.stock(t))
}

func TestGormStoreStatusAndPaymentUpdates(t *testing.T) {
	s := setup(t, 5)
	res, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)

	orders := services.NewOrderService(s.store, nil, nil, zerolog.Nop())
	tracking := "TRK-9"
	_, err = orders.UpdateStatus(context.Background(), res.Order.ID, services.StatusUpdate{
		Status:         models.OrderStatusShipped,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)

	_, err = orders.Cancel(context.Background(), s.user.ID, res.Order.ID, "late")
	require.NoError(t, err)
	_, err = orders.Cancel(context.Background(), s.user.ID, res.Order.ID, "late")
	assert.ErrorIs(t, err, services.ErrAlreadyCancelled)

	var order models.Order
	require.NoError(t, s.db.First(&order, "id = ?", res.Order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, "TRK-9", order.TrackingNumber)
	assert.Equal(t, "late", order.CancelReason)
	assert.NotNil(t, order.CancelledAt)

	payments := services.NewPaymentService(s.store, zerolog.Nop())
	confirmed := true
	_, err = payments.UpdateStatus(context.Background(), res.Payment.ID, services.PaymentUpdate{
		Status:       models.PaymentStatusCompleted,
		CODConfirmed: &confirmed,
	})
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, s.db.First(&payment, "id = ?", res.Payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.True(t, payment.COD.Confirmed)
	assert.NotNil(t, payment.COD.ConfirmedAt)
}

type acceptAll struct{}

func (acceptAll) VerifySignature(_, _, _ string) bool { return true }

func TestGormStoreRejectsReplayedGatewayPayment(t *testing.T) {
	s := setup(t, 5)
	svc := services.NewCheckoutService(s.store, acceptAll{}, nil, "INR", zerolog.Nop())

	in := s.input(1)
	in.PaymentMethod = models.PaymentMethodRazorpay
	in.Gateway = &services.GatewayPayment{OrderRef: "order_7", PaymentRef: "pay_7", Signature: "sig"}

	_, err := svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(context.Background(), in)
	require.ErrorIs(t, err, services.ErrPaymentAlreadyUsed)

	assert.Equal(t, 4, s.stock(t))
	var orders, payments int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, s.db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(1), payments)
}

func TestGormStorePaymentRefIsUnique(t *testing.T) {
	s := setup(t, 5)
	first, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)
	second, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)

	ctx := context.Background()
	for _, orderID := range []uuid.UUID{first.Order.ID, second.Order.ID} {
		require.NoError(t, s.db.Where("order_id = ?", orderID).Delete(&models.Payment{}).Error)
	}

	p := &models.Payment{OrderID: first.Order.ID, Method: models.PaymentMethodRazorpay, Status: models.PaymentStatusCompleted}
	p.Gateway.PaymentRef = "pay_dup"
	require.NoError(t, s.store.Payments().Create(ctx, p))

	dup := &models.Payment{OrderID: second.Order.ID, Method: models.PaymentMethodRazorpay, Status: models.PaymentStatusCompleted}
	dup.Gateway.PaymentRef = "pay_dup"
	assert.ErrorIs(t, s.store.Payments().Create(ctx, dup), repository.ErrDuplicate)

	used, err := s.store.Payments().ExistsForGatewayPayment(ctx, "pay_dup")
	require.NoError(t, err)
	assert.True(t, used)
	used, err = s.store.Payments().ExistsForGatewayPayment(ctx, "pay_other")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestGormStoreCancelIsConditional(t *testing.T) {
	s := setup(t, 5)
	res, err := s.checkout().PlaceOrder(context.Background(), s.input(1))
	require.NoError(t, err)

	ctx := context.Background()
	loaded, err := s.store.Orders().FindByID(ctx, res.Order.ID)
	require.NoError(t, err)

	// Another request cancels the order after it was loaded.
	require.NoError(t, s.db.Model(&models.Order{}).Where("id = ?", res.Order.ID).
		Updates(map[string]any{"status": models.OrderStatusCancelled, "cancel_reason": "first"}).Error)

	now := time.Now()
	loaded.Status = models.OrderStatusCancelled
	loaded.CancelReason = "second"
	loaded.CancelledAt = &now
	assert.ErrorIs(t, s.store.Orders().Cancel(ctx, loaded), repository.ErrStatusChanged)

	var order models.Order
	require.NoError(t, s.db.First(&order, "id = ?", res.Order.ID).Error)
	assert.Equal(t, "first", order.CancelReason)
}
