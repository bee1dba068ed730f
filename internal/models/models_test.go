package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	for _, value := range []string{"Pending", "Processing", "Shipped", "Out for Delivery", "Delivered", "Cancelled", "Refunded", "Returned"} {
		status, err := ParseOrderStatus(value)
		assert.NoError(t, err, value)
		assert.Equal(t, OrderStatus(value), status)
	}

	for _, value := range []string{"", "pending", "SHIPPED", "out for delivery", "Lost"} {
		_, err := ParseOrderStatus(value)
		assert.Error(t, err, value)
	}
}

func TestParsePaymentEnums(t *testing.T) {
	method, err := ParsePaymentMethod("razorpay")
	assert.NoError(t, err)
	assert.Equal(t, PaymentMethodRazorpay, method)
	_, err = ParsePaymentMethod("card")
	assert.Error(t, err)

	status, err := ParsePaymentStatus("completed")
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, status)
	_, err = ParsePaymentStatus("Completed")
	assert.Error(t, err)
}

func TestCartRecalculate(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Price: decimal.RequireFromString("19.99"), Quantity: 3},
		{Price: decimal.NewFromInt(5), Quantity: 1},
	}}
	cart.Recalculate()
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("64.97")))

	cart.Items = nil
	cart.Recalculate()
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestOrderItemLineTotalAndPrimaryImage(t *testing.T) {
	item := OrderItem{Price: decimal.RequireFromString("12.50"), Quantity: 4}
	assert.True(t, item.LineTotal().Equal(decimal.NewFromInt(50)))

	assert.Equal(t, "", Product{}.PrimaryImage())
	assert.Equal(t, "a.jpg", Product{Images: []string{"a.jpg", "b.jpg"}}.PrimaryImage())
}

func TestBeforeCreateKeepsExplicitID(t *testing.T) {
	fixed := uuid.New()
	b := BaseModel{ID: fixed}
	assert.NoError(t, b.BeforeCreate(nil))
	assert.Equal(t, fixed, b.ID)

	var fresh BaseModel
	assert.NoError(t, fresh.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, fresh.ID)
	assert.Equal(t, uuid.Version(7), fresh.ID.Version())
}
