package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/repository"
)

// SignatureVerifier validates online payment signatures.
type SignatureVerifier interface {
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// Notifier accepts messages for background delivery without blocking.
type Notifier interface {
	Enqueue(msg notify.Message) bool
}

// CartLine is one product and quantity requested at checkout.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// GatewayPayment carries the gateway confirmation for online payments.
type GatewayPayment struct {
	OrderRef   string
	PaymentRef string
	Signature  string
	Status     models.PaymentStatus
	Raw        json.RawMessage
}

// PlaceOrderInput is everything checkout needs from the caller.
type PlaceOrderInput struct {
	UserID        uuid.UUID
	AddressID     uuid.UUID
	Lines         []CartLine
	TotalPrice    decimal.Decimal
	PaymentMethod models.PaymentMethod
	Currency      string
	Gateway       *GatewayPayment
}

// PlaceOrderResult is the committed state of a successful checkout.
type PlaceOrderResult struct {
	Order    *models.Order
	Payment  *models.Payment
	Customer *models.User
}

// CheckoutService places orders atomically.
type CheckoutService struct {
	tx       repository.Transactor
	gateway  SignatureVerifier
	notifier Notifier
	currency string
	log      zerolog.Logger
	now      func() time.Time
}

// NewCheckoutService wires the checkout dependencies. gateway may be nil when
// online payments are disabled.
func NewCheckoutService(tx repository.Transactor, gateway SignatureVerifier, notifier Notifier, currency string, log zerolog.Logger) *CheckoutService {
	if currency == "" {
		currency = "INR"
	}
	return &CheckoutService{
		tx:       tx,
		gateway:  gateway,
		notifier: notifier,
		currency: currency,
		log:      log.With().Str("component", "checkout").Logger(),
		now:      time.Now,
	}
}

// PlaceOrder validates the cart against current stock, decrements inventory,
// appends the order to the purchaser's order group, records the payment and
// bumps the user's order count in one transaction. The confirmation
// notification is queued only after commit.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var result *PlaceOrderResult
	err := s.tx.WithinTransaction(ctx, func(store repository.Store) error {
		res, err := s.placeOrder(ctx, store, in)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrPaymentAlreadyUsed) {
			s.log.Warn().
				Str("user_id", in.UserID.String()).
				Str("payment_ref", in.Gateway.PaymentRef).
				Msg("replayed gateway payment rejected")
			return nil, err
		}
		if in.PaymentMethod == models.PaymentMethodRazorpay {
			s.log.Error().Err(err).
				Str("user_id", in.UserID.String()).
				Str("payment_ref", in.Gateway.PaymentRef).
				Str("gateway_order_ref", in.Gateway.OrderRef).
				Msg("payment captured but order was not placed")
			return nil, &PaymentCapturedError{PaymentRef: in.Gateway.PaymentRef, Err: err}
		}
		return nil, err
	}

	s.log.Info().
		Str("order_id", result.Order.ID.String()).
		Str("user_id", in.UserID.String()).
		Str("total", result.Order.TotalPrice.StringFixed(2)).
		Str("payment_method", string(in.PaymentMethod)).
		Msg("order placed")

	s.notifyPlaced(result)
	return result, nil
}

func (s *CheckoutService) validate(in PlaceOrderInput) error {
	if in.UserID == uuid.Nil {
		return fmt.Errorf("%w: user", ErrInvalidReference)
	}
	if in.AddressID == uuid.Nil {
		return fmt.Errorf("%w: address", ErrInvalidReference)
	}
	if len(in.Lines) == 0 {
		return validationf("cart is empty")
	}
	for _, line := range in.Lines {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: product", ErrInvalidReference)
		}
		if line.Quantity <= 0 {
			return validationf("quantity for product %s must be positive", line.ProductID)
		}
	}
	if in.TotalPrice.IsNegative() {
		return validationf("total price must not be negative")
	}

	switch in.PaymentMethod {
	case models.PaymentMethodCOD:
		return nil
	case models.PaymentMethodRazorpay:
		g := in.Gateway
		if g == nil || g.OrderRef == "" || g.PaymentRef == "" || g.Signature == "" {
			return validationf("gateway order, payment and signature are required for online payment")
		}
		if s.gateway == nil {
			return fmt.Errorf("%w: online payments are not configured", ErrGateway)
		}
		if !s.gateway.VerifySignature(g.OrderRef, g.PaymentRef, g.Signature) {
			return fmt.Errorf("%w: payment signature mismatch", ErrGateway)
		}
		return nil
	default:
		return validationf("unsupported payment method %q", in.PaymentMethod)
	}
}

func (s *CheckoutService) placeOrder(ctx context.Context, store repository.Store, in PlaceOrderInput) (*PlaceOrderResult, error) {
	ok, err := store.Addresses().ExistsForUser(ctx, in.AddressID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("address %s", in.AddressID)
	}

	if in.PaymentMethod == models.PaymentMethodRazorpay {
		used, err := store.Payments().ExistsForGatewayPayment(ctx, in.Gateway.PaymentRef)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, in.Gateway.PaymentRef)
		}
	}

	items := make([]models.OrderItem, 0, len(in.Lines))
	computed := decimal.Zero
	for _, line := range in.Lines {
		item, err := reserveLine(ctx, store.Products(), line)
		if err != nil {
			return nil, err
		}
		computed = computed.Add(item.LineTotal())
		items = append(items, item)
	}

	total := in.TotalPrice
	if total.IsZero() {
		total = computed
	} else if !total.Round(2).Equal(computed.Round(2)) {
		return nil, validationf("total price %s does not match cart total %s", total.StringFixed(2), computed.StringFixed(2))
	}

	user, err := store.Users().FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("user %s", in.UserID)
		}
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}

	order := &models.Order{
		UserID:        in.UserID,
		AddressID:     in.AddressID,
		Items:         items,
		TotalPrice:    total,
		Currency:      currency,
		PaymentMethod: in.PaymentMethod,
		Status:        models.OrderStatusPending,
		PlacedAt:      s.now(),
	}
	if err := store.Orders().Append(ctx, user.Email, user.ID, order); err != nil {
		return nil, err
	}

	payment := buildPayment(in, order)
	if err := store.Payments().Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && in.PaymentMethod == models.PaymentMethodRazorpay {
			return nil, fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, in.Gateway.PaymentRef)
		}
		return nil, err
	}

	if err := store.Users().IncrementOrderCount(ctx, user.ID); err != nil {
		return nil, err
	}

	return &PlaceOrderResult{Order: order, Payment: payment, Customer: user}, nil
}

// reserveLine checks and decrements stock for one line and returns its snapshot.
func reserveLine(ctx context.Context, products repository.ProductRepository, line CartLine) (models.OrderItem, error) {
	product, err := products.FindByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.OrderItem{}, notFoundf("product %s", line.ProductID)
		}
		return models.OrderItem{}, err
	}

	if !product.IsActive {
		return models.OrderItem{}, notFoundf("product %s", line.ProductID)
	}

	if product.Stock < line.Quantity {
		return models.OrderItem{}, &InsufficientStockError{
			ProductID: product.ID,
			Title:     product.Title,
			Available: product.Stock,
			Requested: line.Quantity,
		}
	}

	if err := products.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
		if !errors.Is(err, repository.ErrStockConflict) {
			return models.OrderItem{}, err
		}
		// Another checkout won the row between the read and the write.
		fresh, ferr := products.FindByID(ctx, product.ID)
		if ferr != nil || fresh.Stock >= line.Quantity {
			return models.OrderItem{}, fmt.Errorf("%w: stock for %s changed concurrently", ErrTransactionAborted, product.ID)
		}
		return models.OrderItem{}, &InsufficientStockError{
			ProductID: product.ID,
			Title:     product.Title,
			Available: fresh.Stock,
			Requested: line.Quantity,
		}
	}

	return models.OrderItem{
		ProductID:   product.ID,
		Title:       product.Title,
		Slug:        product.Slug,
		Description: product.Description,
		Categories:  append([]string(nil), product.Categories...),
		Image:       product.PrimaryImage(),
		Price:       product.Price,
		Quantity:    line.Quantity,
	}, nil
}

func buildPayment(in PlaceOrderInput, order *models.Order) *models.Payment {
	payment := &models.Payment{
		UserID:   in.UserID,
		OrderID:  order.ID,
		Method:   in.PaymentMethod,
		Amount:   order.TotalPrice,
		Currency: order.Currency,
	}

	switch in.PaymentMethod {
	case models.PaymentMethodRazorpay:
		status := in.Gateway.Status
		if status == "" {
			status = models.PaymentStatusCompleted
		}
		payment.Status = status
		payment.Gateway = models.GatewayDetails{
			OrderRef:    in.Gateway.OrderRef,
			PaymentRef:  in.Gateway.PaymentRef,
			Signature:   in.Gateway.Signature,
			RawResponse: datatypes.JSON(in.Gateway.Raw),
		}
	default:
		payment.Status = models.PaymentStatusPending
		payment.COD = models.CODDetails{
			Confirmed:      false,
			DeliveryStatus: "pending",
		}
	}
	return payment
}

func (s *CheckoutService) notifyPlaced(result *PlaceOrderResult) {
	if s.notifier == nil {
		return
	}
	msg := notify.Message{
		Event: notify.EventOrderPlaced,
		Order: notify.SummarizeOrder(result.Order, result.Customer.Email, result.Customer),
	}
	if !s.notifier.Enqueue(msg) {
		s.log.Warn().Str("order_id", result.Order.ID.String()).Msg("order confirmation not queued")
	}
}

// classify maps store failures that are not part of the domain taxonomy to
// ErrTransactionAborted so callers know a retry with fresh reads is safe.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrTransactionAborted),
		errors.Is(err, ErrGateway),
		errors.Is(err, ErrPaymentAlreadyUsed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
}
