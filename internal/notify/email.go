package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailConfig holds SES settings.
type EmailConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// EmailSender emails customers through Amazon SES.
type EmailSender struct {
	client SESAPI
	sender string
}

// NewSESClient loads an SES client. Static credentials are used when provided,
// otherwise the default AWS credential chain applies.
func NewSESClient(ctx context.Context, cfg EmailConfig) (*ses.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return ses.NewFromConfig(awsCfg), nil
}

// NewEmailSender wraps an SES client.
func NewEmailSender(client SESAPI, sender string) *EmailSender {
	return &EmailSender{client: client, sender: sender}
}

func (s *EmailSender) Name() string { return "email" }

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if s.sender == "" {
		return fmt.Errorf("sender email address is not configured")
	}
	if msg.Order.Email == "" {
		return fmt.Errorf("recipient email address is empty")
	}

	subject, body := renderEmail(msg)

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Order.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func renderEmail(msg Message) (subject, body string) {
	order := msg.Order
	name := order.CustomerName
	if name == "" {
		name = "customer"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)

	switch msg.Event {
	case EventOrderStatusChanged:
		subject = fmt.Sprintf("Order %s is now %s", order.OrderID, order.Status)
		fmt.Fprintf(&b, "Your order %s is now %s.\n", order.OrderID, order.Status)
		if order.TrackingNumber != "" {
			fmt.Fprintf(&b, "Tracking number: %s\n", order.TrackingNumber)
		}
	default:
		subject = fmt.Sprintf("Order %s confirmation", order.OrderID)
		fmt.Fprintf(&b, "Thank you for your order! Order %s has been placed.\n\n", order.OrderID)
		for _, item := range order.Items {
			fmt.Fprintf(&b, "- %s x %d @ %s\n", item.Title, item.Quantity, FormatPrice(item.Price, order.Currency))
		}
		fmt.Fprintf(&b, "\nTotal: %s\nPayment: %s\n", FormatPrice(order.TotalPrice, order.Currency), order.PaymentMethod)
	}

	b.WriteString("\nBest regards,\nThe Storefront Team")
	return subject, b.String()
}
