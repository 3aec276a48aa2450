package enums

// ShippingZone classifies a destination pincode for delivery pricing.
type ShippingZone string

const (
	ShippingZoneLocal    ShippingZone = "local"
	ShippingZoneState    ShippingZone = "state"
	ShippingZoneNational ShippingZone = "national"
	ShippingZoneUnknown  ShippingZone = "unknown"
)

// String implements fmt.Stringer.
func (z ShippingZone) String() string {
	return string(z)
}
