package checkout

import (
	"github.com/shreesanatan/pujapath-backend/internal/orders"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
)

// ItemInput is one cart line as submitted by the client.
type ItemInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name" validate:"required"`
	Price    string `json:"price" validate:"required"`
	Quantity int    `json:"quantity" validate:"required"`
	Image    string `json:"image,omitempty"`
}

// QuoteRequest prices a cart for a destination pincode.
type QuoteRequest struct {
	Pincode string      `json:"pincode" validate:"required"`
	Items   []ItemInput `json:"items" validate:"required,dive"`
}

// QuoteResponse is the priced cart.
type QuoteResponse struct {
	Zone     enums.ShippingZone `json:"zone"`
	Subtotal string             `json:"subtotal"`
	Shipping string             `json:"shipping"`
	Total    string             `json:"total"`
}

// PaymentOrderRequest registers a gateway order ahead of browser checkout.
type PaymentOrderRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Receipt string `json:"receipt,omitempty"`
}

// PaymentOrderResponse carries what the browser SDK needs to open checkout.
type PaymentOrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// PaymentInput is the tagged payment variant: COD carries only the method,
// online carries the gateway references to verify.
type PaymentInput struct {
	Method    string `json:"method" validate:"required,oneof=cod online"`
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// CompleteRequest finalizes a checkout for the authenticated user. UserID is
// optional; when a client sends it, it must match the session identity.
type CompleteRequest struct {
	UserID          string       `json:"user_id,omitempty"`
	Payment         PaymentInput `json:"payment" validate:"required"`
	CustomerName    string       `json:"customer_name" validate:"required"`
	Phone           string       `json:"phone" validate:"required"`
	ShippingAddress string       `json:"shipping_address" validate:"required"`
	Pincode         string       `json:"pincode" validate:"required"`
	Items           []ItemInput  `json:"items" validate:"required,dive"`
}

// CompleteResponse reports the persisted order.
type CompleteResponse struct {
	Order     *orders.OrderDTO `json:"order"`
	Duplicate bool             `json:"duplicate,omitempty"`
}
