package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	"github.com/shreesanatan/pujapath-backend/pkg/types"
)

// OrderDTO is the transport shape of an order, amounts in rupees.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	ShippingAddress string              `json:"shipping_address"`
	Pincode         string              `json:"pincode"`
	ShippingZone    enums.ShippingZone  `json:"shipping_zone"`
	Items           types.OrderItems    `json:"items"`
	Subtotal        string              `json:"subtotal"`
	Shipping        string              `json:"shipping"`
	Total           string              `json:"total"`
	RazorpayOrderID *string             `json:"razorpay_order_id,omitempty"`
	PaymentID       *string             `json:"payment_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// FromModel converts a persistence row into the API shape.
func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	return &OrderDTO{
		ID:              order.ID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		Pincode:         order.Pincode,
		ShippingZone:    order.ShippingZone,
		Items:           order.Items,
		Subtotal:        rupees(order.SubtotalPaise),
		Shipping:        rupees(order.ShippingPaise),
		Total:           rupees(order.TotalPaise),
		RazorpayOrderID: order.RazorpayOrderID,
		PaymentID:       order.PaymentID,
		CreatedAt:       order.CreatedAt,
	}
}

// FromModels converts a result set, preserving order.
func FromModels(rows []models.Order) []*OrderDTO {
	out := make([]*OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

func rupees(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}
