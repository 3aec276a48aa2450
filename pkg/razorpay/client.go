package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpaygo "github.com/razorpay/razorpay-go"

	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
)

var (
	errKeyIDRequired  = errors.New("razorpay key id is required")
	errSecretRequired = errors.New("razorpay key secret is required")
)

// GatewayOrder is the subset of the gateway order we act on.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Status      string
	Receipt     string
}

// Client wraps the Razorpay SDK plus the key material used for
// signature verification.
type Client struct {
	api       *razorpaygo.Client
	keyID     string
	keySecret string
}

// OrderAPI is the gateway surface consumed by the checkout pipeline.
type OrderAPI interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]any) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error)
	KeyID() string
	KeySecret() string
}

// NewClient initializes the Razorpay SDK once with the configured key pair.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errSecretRequired
	}

	api := razorpaygo.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{api: api, keyID: keyID, keySecret: keySecret}, nil
}

// KeyID returns the public key identifier handed to browser checkout.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the secret used for HMAC signature verification.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// CreateOrder registers a gateway order for the given paise amount.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]any) (*GatewayOrder, error) {
	if amountPaise <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d", amountPaise)
	}
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
	}
	if receipt != "" {
		data["receipt"] = receipt
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("creating razorpay order: %w", err)
	}
	return orderFromBody(body)
}

// FetchOrder retrieves a gateway order by its identifier.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("order id is required")
	}
	body, err := c.api.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching razorpay order %s: %w", orderID, err)
	}
	return orderFromBody(body)
}

func orderFromBody(body map[string]interface{}) (*GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("gateway response missing order id")
	}

	order := &GatewayOrder{ID: id}
	order.AmountPaise = int64FromAny(body["amount"])
	if currency, ok := body["currency"].(string); ok {
		order.Currency = currency
	}
	if status, ok := body["status"].(string); ok {
		order.Status = status
	}
	if receipt, ok := body["receipt"].(string); ok {
		order.Receipt = receipt
	}
	return order, nil
}

// The SDK decodes JSON numbers as float64; paise amounts stay well inside
// the float64 integer range.
func int64FromAny(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
