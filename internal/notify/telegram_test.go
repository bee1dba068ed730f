package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/notify"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"0", "INR", "0.00 INR"},
		{"999", "INR", "999.00 INR"},
		{"1234.5", "INR", "1,234.50 INR"},
		{"1234567.891", "USD", "1,234,567.89 USD"},
		{"-1500", "INR", "-1,500.00 INR"},
		{"10", "", "10.00 INR"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, notify.FormatPrice(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func sampleOrder() notify.OrderSummary {
	return notify.OrderSummary{
		OrderID:       "0b9f",
		Email:         "meera@example.com",
		CustomerName:  "Meera <VIP>",
		Status:        "Pending",
		PaymentMethod: "cod",
		TotalPrice:    decimal.NewFromInt(2500),
		Currency:      "INR",
		Items: []notify.ItemSummary{
			{Title: "Saree", Quantity: 2, Price: decimal.NewFromInt(1250)},
		},
	}
}

func TestFormatOrderAlert(t *testing.T) {
	text := notify.FormatOrderAlert(sampleOrder())

	assert.Contains(t, text, "NEW ORDER")
	assert.Contains(t, text, "Meera &lt;VIP&gt;")
	assert.Contains(t, text, "2 x 1,250.00 INR = 2,500.00 INR")
	assert.Contains(t, text, "<b>Total:</b> 2,500.00 INR")
	assert.Contains(t, text, "Cash on delivery")
}

func TestTelegramSenderPostsNewOrders(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		sent  map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := notify.NewTelegramSender("TOKEN", "42", server.URL)

	msg := notify.Message{Event: notify.EventOrderPlaced, Order: sampleOrder()}
	require.NoError(t, sender.Send(context.Background(), msg))

	status := notify.Message{Event: notify.EventOrderStatusChanged, Order: sampleOrder()}
	require.NoError(t, sender.Send(context.Background(), status))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/botTOKEN/sendMessage"}, paths)
	assert.Equal(t, "42", sent["chat_id"])
	assert.Equal(t, "HTML", sent["parse_mode"])
	assert.True(t, strings.Contains(sent["text"], "0b9f"))
}

func TestTelegramSenderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	msg := notify.Message{Event: notify.EventOrderPlaced, Order: sampleOrder()}

	err := notify.NewTelegramSender("TOKEN", "42", server.URL).Send(context.Background(), msg)
	assert.Error(t, err)

	// Unconfigured senders are silent no-ops.
	assert.NoError(t, notify.NewTelegramSender("", "42", server.URL).Send(context.Background(), msg))
}
