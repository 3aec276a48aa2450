package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shreesanatan/pujapath-backend/pkg/razorpay"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
)

// Verifier checks gateway callbacks before an order is persisted.
type Verifier struct {
	gateway razorpay.OrderAPI
	logg    *logger.Logger
}

func NewVerifier(gateway razorpay.OrderAPI, logg *logger.Logger) (*Verifier, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	return &Verifier{gateway: gateway, logg: logg}, nil
}

// OnlinePayment is the client-completed payment handed back by browser checkout.
type OnlinePayment struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Verify authenticates the payment signature and confirms the captured amount
// matches what the server computed for the cart. Nothing is persisted here.
func (v *Verifier) Verify(ctx context.Context, payment OnlinePayment, expectedPaise int64) error {
	orderID := strings.TrimSpace(payment.OrderID)
	paymentID := strings.TrimSpace(payment.PaymentID)
	signature := strings.TrimSpace(payment.Signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment reference incomplete")
	}

	if !ValidSignature(orderID, paymentID, signature, v.gateway.KeySecret()) {
		if v.logg != nil {
			logCtx := v.logg.WithFields(ctx, map[string]any{"razorpay_order_id": orderID})
			v.logg.Warn(logCtx, "payment signature rejected")
		}
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "signature mismatch")
	}

	gatewayOrder, err := v.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch gateway order")
	}
	if gatewayOrder.AmountPaise != expectedPaise {
		if v.logg != nil {
			logCtx := v.logg.WithFields(ctx, map[string]any{
				"razorpay_order_id": orderID,
				"gateway_paise":     gatewayOrder.AmountPaise,
				"expected_paise":    expectedPaise,
			})
			v.logg.Warn(logCtx, "payment amount rejected")
		}
		return pkgerrors.New(pkgerrors.CodeAmountMismatch, "captured amount differs from order total")
	}
	return nil
}

// ValidSignature reports whether the signature is a valid HMAC-SHA256 of
// "{order_id}|{payment_id}" under the gateway key secret.
func ValidSignature(orderID, paymentID, signature, keySecret string) bool {
	mac := hmac.New(sha256.New, []byte(keySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
