package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

// GormStore implements Store and Transactor on top of gorm.
type GormStore struct {
	db       *gorm.DB
	lockRows bool
}

// NewGormStore wraps db. Row locks are only requested on Postgres.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, lockRows: db.Dialector.Name() == "postgres"}
}

// WithinTransaction implements Transactor.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(store Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, lockRows: s.lockRows})
	})
}

func (s *GormStore) Products() ProductRepository  { return gormProducts{s} }
func (s *GormStore) Addresses() AddressRepository { return gormAddresses{s} }
func (s *GormStore) Orders() OrderRepository      { return gormOrders{s} }
func (s *GormStore) Payments() PaymentRepository  { return gormPayments{s} }
func (s *GormStore) Users() UserRepository        { return gormUsers{s} }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type gormProducts struct{ s *GormStore }

func (r gormProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := r.s.db.WithContext(ctx)
	if r.s.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var product models.Product
	if err := query.First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r gormProducts) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	res := r.s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

type gormAddresses struct{ s *GormStore }

func (r gormAddresses) ExistsForUser(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.s.db.WithContext(ctx).
		Model(&models.UserAddress{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type gormOrders struct{ s *GormStore }

func (r gormOrders) Append(ctx context.Context, email string, userID uuid.UUID, order *models.Order) error {
	db := r.s.db.WithContext(ctx)

	candidate := models.OrderGroup{Email: email, UserID: userID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return err
	}

	// The insert is a no-op when the group already exists.
	var group models.OrderGroup
	if err := db.Where("email = ?", email).First(&group).Error; err != nil {
		return err
	}

	order.OrderGroupID = group.ID
	return db.Create(order).Error
}

func (r gormOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.s.db.WithContext(ctx)
	if r.s.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	if err := query.
		Preload("Items").
		Preload("OrderGroup").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r gormOrders) UpdateStatus(ctx context.Context, order *models.Order) error {
	res := r.s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Select("status", "tracking_number", "admin_notes", "refund_amount",
			"refund_reason", "refunded_at", "cancel_reason", "cancelled_at", "updated_at").
		Updates(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormOrders) Cancel(ctx context.Context, order *models.Order) error {
	res := r.s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status <> ?", order.ID, models.OrderStatusCancelled).
		Select("status", "cancel_reason", "cancelled_at", "updated_at").
		Updates(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

type gormPayments struct{ s *GormStore }

// Create relies on the dialect translating unique violations, which needs
// gorm.Config.TranslateError.
func (r gormPayments) Create(ctx context.Context, payment *models.Payment) error {
	err := r.s.db.WithContext(ctx).Create(payment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r gormPayments) ExistsForGatewayPayment(ctx context.Context, paymentRef string) (bool, error) {
	var count int64
	if err := r.s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("gateway_payment_ref = ?", paymentRef).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r gormPayments) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.s.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (r gormPayments) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.s.db.WithContext(ctx).First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (r gormPayments) Update(ctx context.Context, payment *models.Payment) error {
	return r.s.db.WithContext(ctx).Save(payment).Error
}

type gormUsers struct{ s *GormStore }

func (r gormUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r gormUsers) IncrementOrderCount(ctx context.Context, id uuid.UUID) error {
	res := r.s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("order_count", gorm.Expr("order_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
