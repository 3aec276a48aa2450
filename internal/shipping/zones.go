package shipping

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shreesanatan/pujapath-backend/pkg/enums"
)

// Delivery charges in rupees per zone.
var (
	chargeLocal    = decimal.NewFromInt(30)
	chargeState    = decimal.NewFromInt(50)
	chargeNational = decimal.NewFromInt(80)
)

// zonePrefixes maps pincode prefixes to zones, most specific first. The 221
// district ships from the warehouse directly; the 20x belt gets the
// within-state rate.
var zonePrefixes = []struct {
	prefix string
	zone   enums.ShippingZone
}{
	{"221", enums.ShippingZoneLocal},
	{"20", enums.ShippingZoneState},
}

// Quote is the computed delivery pricing for a destination pincode.
type Quote struct {
	Zone   enums.ShippingZone
	Charge decimal.Decimal
}

// Calculate classifies the pincode and returns the delivery charge. Pincodes
// shorter than three digits cannot be classified and quote a zero charge.
func Calculate(pincode string) Quote {
	cleaned := strings.TrimSpace(pincode)
	if len(cleaned) < 3 {
		return Quote{Zone: enums.ShippingZoneUnknown, Charge: decimal.Zero}
	}

	// Longest prefix wins: local before state.
	for _, entry := range zonePrefixes {
		if strings.HasPrefix(cleaned, entry.prefix) {
			return Quote{Zone: entry.zone, Charge: chargeFor(entry.zone)}
		}
	}
	return Quote{Zone: enums.ShippingZoneNational, Charge: chargeNational}
}

func chargeFor(zone enums.ShippingZone) decimal.Decimal {
	switch zone {
	case enums.ShippingZoneLocal:
		return chargeLocal
	case enums.ShippingZoneState:
		return chargeState
	case enums.ShippingZoneNational:
		return chargeNational
	default:
		return decimal.Zero
	}
}
