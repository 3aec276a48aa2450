package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shreesanatan/pujapath-backend/pkg/config"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/types"
)

const (
	maxItems         = 50
	maxItemQuantity  = 100
	maxNameLength    = 200
	maxAddressLength = 500
)

var (
	localPhonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern    = regexp.MustCompile(`^\d{6}$`)
)

// Gate rejects orders before any money moves.
type Gate struct {
	minOrderValue decimal.Decimal
}

func NewGate(cfg config.CheckoutConfig) Gate {
	return Gate{minOrderValue: decimal.NewFromInt(int64(cfg.MinOrderValue))}
}

// Validate sanitizes the submitted cart and returns it with its subtotal.
// Every rejection is a VALIDATION_ERROR carrying enough detail to fix the
// request.
func (g Gate) Validate(req CompleteRequest) (types.OrderItems, decimal.Decimal, error) {
	if !localPhonePattern.MatchString(strings.TrimSpace(req.Phone)) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "phone must be a 10 digit mobile number starting 6-9")
	}
	if !pincodePattern.MatchString(strings.TrimSpace(req.Pincode)) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "pincode must be 6 digits")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	items, subtotal, err := SanitizeItems(req.Items)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if subtotal.LessThan(g.minOrderValue) {
		shortfall := g.minOrderValue.Sub(subtotal)
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order below minimum value").
			WithDetails(map[string]any{
				"minimum":   g.minOrderValue.String(),
				"subtotal":  subtotal.String(),
				"shortfall": shortfall.String(),
			})
	}
	return items, subtotal, nil
}

// SanitizeItems normalizes cart lines into the snapshot stored on the order
// and totals them. Quantities clamp to 1..100, names truncate at 200 chars.
func SanitizeItems(inputs []ItemInput) (types.OrderItems, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if len(inputs) > maxItems {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d items per order", maxItems))
	}

	items := make(types.OrderItems, 0, len(inputs))
	subtotal := decimal.Zero
	for i, input := range inputs {
		name := truncate(strings.TrimSpace(input.Name), maxNameLength)
		if name == "" {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d is missing a name", i+1))
		}

		price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
		if err != nil || price.IsNegative() {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %q has an invalid price", name))
		}

		quantity := clampQuantity(input.Quantity)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(quantity))))

		items = append(items, types.OrderItem{
			ID:       strings.TrimSpace(input.ID),
			Name:     name,
			Price:    price.StringFixed(2),
			Quantity: quantity,
			Image:    strings.TrimSpace(input.Image),
		})
	}
	return items, subtotal, nil
}

// SanitizeAddress trims and caps the free-form shipping address.
func SanitizeAddress(address string) string {
	return truncate(strings.TrimSpace(address), maxAddressLength)
}

// SanitizeName trims and caps the customer name.
func SanitizeName(name string) string {
	return truncate(strings.TrimSpace(name), maxNameLength)
}

func clampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	if quantity > maxItemQuantity {
		return maxItemQuantity
	}
	return quantity
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
