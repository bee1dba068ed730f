package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSender posts new-order alerts to the admin chat.
type TelegramSender struct {
	botToken    string
	adminChatID string
	apiURL      string
	client      *http.Client
}

// NewTelegramSender creates a TelegramSender. apiURL may be empty.
func NewTelegramSender(botToken, adminChatID, apiURL string) *TelegramSender {
	if apiURL == "" {
		apiURL = defaultTelegramAPI
	}
	return &TelegramSender{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiURL:      strings.TrimRight(apiURL, "/"),
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *TelegramSender) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send implements Sender. Only new orders are forwarded to the admin chat.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if msg.Event != EventOrderPlaced {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, FormatOrderAlert(msg.Order))
}

// SendMessage sends text to the given chat.
func (s *TelegramSender) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" || chatID == "" {
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatPrice formats amount with thousand separators and the currency code.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "INR"
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var result strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return sign + result.String() + "." + frac + " " + currency
}

// FormatOrderAlert renders the admin chat message for a new order.
func FormatOrderAlert(order OrderSummary) string {
	var items strings.Builder
	for i, item := range order.Items {
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Title),
			item.Quantity,
			FormatPrice(item.Price, order.Currency),
			FormatPrice(lineTotal, order.Currency),
		))
	}

	payment := "Cash on delivery"
	if order.PaymentMethod == "razorpay" {
		payment = "Razorpay"
	}

	customer := order.CustomerName
	if customer == "" {
		customer = order.Email
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Email:</b> %s
<b>Items:</b>
%s
<b>Total:</b> %s
<b>Payment:</b> %s
<b>Status:</b> %s`,
		order.OrderID,
		html.EscapeString(customer),
		html.EscapeString(order.Email),
		items.String(),
		FormatPrice(order.TotalPrice, order.Currency),
		payment,
		order.Status,
	)

	return strings.TrimSpace(message)
}
