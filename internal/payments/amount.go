package payments

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
)

// Gateway order amounts allowed through, in rupees.
var (
	minAmountRupees = decimal.NewFromInt(1)
	maxAmountRupees = decimal.NewFromInt(10_000_000)
)

const maxReceiptLength = 40

var receiptAllowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ValidateAmount bounds-checks a rupee amount before it reaches the gateway.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(minAmountRupees) || amount.GreaterThan(maxAmountRupees) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount out of range").
			WithDetails(map[string]any{
				"min": minAmountRupees.String(),
				"max": maxAmountRupees.String(),
			})
	}
	return nil
}

// ToPaise converts a rupee amount to the integral paise the gateway expects.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// SanitizeReceipt strips everything outside [A-Za-z0-9_-] and caps the length
// at the gateway's 40 character limit.
func SanitizeReceipt(receipt string) string {
	cleaned := receiptAllowed.ReplaceAllString(strings.TrimSpace(receipt), "")
	if len(cleaned) > maxReceiptLength {
		cleaned = cleaned[:maxReceiptLength]
	}
	return cleaned
}
