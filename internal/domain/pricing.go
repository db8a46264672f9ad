package domain

// Fixed pricing policy: flat 8% tax regardless of jurisdiction and a flat
// delivery fee regardless of distance. No alternate policy is defined upstream.
const (
	// TaxRatePercent is the flat tax rate applied to the vehicle base price.
	TaxRatePercent = 8
	// DeliveryFee is the flat delivery and setup charge.
	DeliveryFee int64 = 2500
)

// QuoteFor computes the price breakdown for a base price. Pure and
// deterministic so the same total reaches the order summary, the gateway,
// and the submitted order without drift.
//
// Tax is round-half-up of base * 8%; integer arithmetic avoids float error.
func QuoteFor(base int64) Quote {
	if base < 0 {
		base = 0
	}
	tax := (base*TaxRatePercent + 50) / 100
	return Quote{
		Base:     base,
		Tax:      tax,
		Delivery: DeliveryFee,
		Total:    base + tax + DeliveryFee,
	}
}
