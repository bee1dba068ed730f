// Package memory is an in-process implementation of repository.Transactor.
// Transactions are serialized and run against a copy of the data set that
// replaces the live one only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

type dataset struct {
	products  map[uuid.UUID]models.Product
	addresses map[uuid.UUID]models.UserAddress
	users     map[uuid.UUID]models.User
	groups    map[string]models.OrderGroup
	orders    map[uuid.UUID]models.Order
	payments  map[uuid.UUID]models.Payment
}

func newDataset() *dataset {
	return &dataset{
		products:  make(map[uuid.UUID]models.Product),
		addresses: make(map[uuid.UUID]models.UserAddress),
		users:     make(map[uuid.UUID]models.User),
		groups:    make(map[string]models.OrderGroup),
		orders:    make(map[uuid.UUID]models.Order),
		payments:  make(map[uuid.UUID]models.Payment),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.addresses {
		c.addresses[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.groups {
		c.groups[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	return c
}

// Store holds all records in maps.
type Store struct {
	mu   sync.Mutex
	data *dataset

	// FailPaymentCreate, when set, is returned by Payments().Create.
	FailPaymentCreate error
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newDataset()}
}

// WithinTransaction implements repository.Transactor.
func (s *Store) WithinTransaction(ctx context.Context, fn func(store repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(&txStore{data: work, failPayment: s.FailPaymentCreate}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// AddProduct seeds a product and returns it with its ID assigned.
func (s *Store) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.data.products[p.ID] = p
	return p
}

// AddUser seeds a user.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.data.users[u.ID] = u
	return u
}

// AddAddress seeds an address.
func (s *Store) AddAddress(a models.UserAddress) models.UserAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.data.addresses[a.ID] = a
	return a
}

// SetPrice changes a product price outside of any order.
func (s *Store) SetPrice(id uuid.UUID, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.data.products[id]
	p.Price = price
	s.data.products[id] = p
}

func (s *Store) Product(id uuid.UUID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[id]
	return p, ok
}

func (s *Store) User(id uuid.UUID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	return u, ok
}

// Group returns the order group for email with its orders attached.
func (s *Store) Group(email string) (models.OrderGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.data.groups[email]
	if !ok {
		return g, false
	}
	for _, o := range s.data.orders {
		if o.OrderGroupID == g.ID {
			g.Orders = append(g.Orders, o)
		}
	}
	sort.Slice(g.Orders, func(i, j int) bool { return g.Orders[i].PlacedAt.Before(g.Orders[j].PlacedAt) })
	return g, true
}

// Orders returns every stored order sorted by placement time.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.data.orders))
	for _, o := range s.data.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out
}

// Payments returns every stored payment.
func (s *Store) Payments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(s.data.payments))
	for _, p := range s.data.payments {
		out = append(out, p)
	}
	return out
}

type txStore struct {
	data        *dataset
	failPayment error
}

func (t *txStore) Products() repository.ProductRepository  { return products{t} }
func (t *txStore) Addresses() repository.AddressRepository { return addresses{t} }
func (t *txStore) Orders() repository.OrderRepository      { return orders{t} }
func (t *txStore) Payments() repository.PaymentRepository  { return payments{t} }
func (t *txStore) Users() repository.UserRepository        { return users{t} }

type products struct{ t *txStore }

func (r products) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.t.data.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r products) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	p, ok := r.t.data.products[id]
	if !ok || p.Stock < quantity {
		return repository.ErrStockConflict
	}
	p.Stock -= quantity
	r.t.data.products[id] = p
	return nil
}

type addresses struct{ t *txStore }

func (r addresses) ExistsForUser(_ context.Context, id, userID uuid.UUID) (bool, error) {
	a, ok := r.t.data.addresses[id]
	return ok && a.UserID == userID, nil
}

type orders struct{ t *txStore }

func (r orders) Append(_ context.Context, email string, userID uuid.UUID, order *models.Order) error {
	group, ok := r.t.data.groups[email]
	if !ok {
		group = models.OrderGroup{Email: email, UserID: userID}
		group.ID = uuid.New()
		group.CreatedAt = time.Now()
	}

	now := time.Now()
	order.ID = uuid.New()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.OrderGroupID = group.ID
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}

	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	stored.OrderGroup = nil
	r.t.data.orders[order.ID] = stored

	group.UpdatedAt = now
	r.t.data.groups[email] = group
	return nil
}

func (r orders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.t.data.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, g := range r.t.data.groups {
		if g.ID == o.OrderGroupID {
			group := g
			o.OrderGroup = &group
			break
		}
	}
	return &o, nil
}

func (r orders) UpdateStatus(_ context.Context, order *models.Order) error {
	stored, ok := r.t.data.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = order.Status
	stored.TrackingNumber = order.TrackingNumber
	stored.AdminNotes = order.AdminNotes
	stored.RefundAmount = order.RefundAmount
	stored.RefundReason = order.RefundReason
	stored.RefundedAt = order.RefundedAt
	stored.CancelReason = order.CancelReason
	stored.CancelledAt = order.CancelledAt
	stored.UpdatedAt = time.Now()
	r.t.data.orders[order.ID] = stored
	return nil
}

func (r orders) Cancel(ctx context.Context, order *models.Order) error {
	stored, ok := r.t.data.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status == models.OrderStatusCancelled {
		return repository.ErrStatusChanged
	}
	return r.UpdateStatus(ctx, order)
}

type payments struct{ t *txStore }

func (r payments) Create(_ context.Context, payment *models.Payment) error {
	if r.t.failPayment != nil {
		return r.t.failPayment
	}
	for _, p := range r.t.data.payments {
		if p.OrderID == payment.OrderID {
			return repository.ErrDuplicate
		}
		if ref := payment.Gateway.PaymentRef; ref != "" && p.Gateway.PaymentRef == ref {
			return repository.ErrDuplicate
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	r.t.data.payments[payment.ID] = *payment
	return nil
}

func (r payments) ExistsForGatewayPayment(_ context.Context, paymentRef string) (bool, error) {
	for _, p := range r.t.data.payments {
		if p.Gateway.PaymentRef == paymentRef {
			return true, nil
		}
	}
	return false, nil
}

func (r payments) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := r.t.data.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r payments) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, p := range r.t.data.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r payments) Update(_ context.Context, payment *models.Payment) error {
	if _, ok := r.t.data.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	payment.UpdatedAt = time.Now()
	r.t.data.payments[payment.ID] = *payment
	return nil
}

type users struct{ t *txStore }

func (r users) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.t.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r users) IncrementOrderCount(_ context.Context, id uuid.UUID) error {
	u, ok := r.t.data.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.OrderCount++
	r.t.data.users[id] = u
	return nil
}
