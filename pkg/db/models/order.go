package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	"github.com/shreesanatan/pujapath-backend/pkg/types"
)

// Order is a single storefront order. Item snapshots live on the row as jsonb;
// online payments are deduplicated through the unique payment_id index.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerPhone   string              `gorm:"column:customer_phone;not null"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	Pincode         string              `gorm:"column:pincode;not null"`
	ShippingZone    enums.ShippingZone  `gorm:"column:shipping_zone;type:text;not null;default:'unknown'"`
	Items           types.OrderItems    `gorm:"column:items;type:jsonb;serializer:json;not null"`
	SubtotalPaise   int64               `gorm:"column:subtotal_paise;not null"`
	ShippingPaise   int64               `gorm:"column:shipping_paise;not null;default:0"`
	TotalPaise      int64               `gorm:"column:total_paise;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	RazorpayOrderID *string             `gorm:"column:razorpay_order_id"`
	PaymentID       *string             `gorm:"column:payment_id;uniqueIndex:uq_orders_payment_id"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending_cod'"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an ID when the database default cannot, e.g. sqlite.
func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
