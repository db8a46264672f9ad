package domain

import (
	"fmt"
	"strings"
)

// Vehicle is the client-side read-only copy of a catalog entry. The remote
// catalog owns the record; the store only caches it.
type Vehicle struct {
	ID           string
	Brand        string
	Model        string
	Price        int64
	Year         int
	Mileage      string
	FuelType     string
	Transmission string
	Engine       string
	Condition    string
	Description  string
	Images       []string
	Features     []string
}

// SortKey indicates the field used to order catalog listings.
type SortKey string

const (
	// SortBrand sorts by brand name ascending. Default, and the tie-break for every other key.
	SortBrand SortKey = "brand"
	// SortPriceAsc sorts by price, cheapest first.
	SortPriceAsc SortKey = "price-asc"
	// SortPriceDesc sorts by price, most expensive first.
	SortPriceDesc SortKey = "price-desc"
	// SortYearDesc sorts by model year, newest first.
	SortYearDesc SortKey = "year-desc"
	// SortYearAsc sorts by model year, oldest first.
	SortYearAsc SortKey = "year-asc"
)

// PriceBracket enumerates the fixed price filter ranges offered by the catalog.
type PriceBracket string

const (
	// BracketUnder50k matches prices below 50,000.
	BracketUnder50k PriceBracket = "under-50k"
	// Bracket50kTo100k matches prices in [50,000, 100,000).
	Bracket50kTo100k PriceBracket = "50k-100k"
	// Bracket100kTo150k matches prices in [100,000, 150,000).
	Bracket100kTo150k PriceBracket = "100k-150k"
	// BracketOver150k matches prices of 150,000 and above.
	BracketOver150k PriceBracket = "over-150k"
)

// Contains reports whether the bracket covers the given base price.
// An unknown or empty bracket matches everything.
func (b PriceBracket) Contains(price int64) bool {
	switch b {
	case BracketUnder50k:
		return price < 50_000
	case Bracket50kTo100k:
		return price >= 50_000 && price < 100_000
	case Bracket100kTo150k:
		return price >= 100_000 && price < 150_000
	case BracketOver150k:
		return price >= 150_000
	default:
		return true
	}
}

// CatalogQuery captures the search, filter, and sort inputs applied to the
// cached vehicle list. Derived state, recomputed per keystroke, never stored.
type CatalogQuery struct {
	Search       string
	Brand        string
	Year         int
	Transmission string
	Bracket      PriceBracket
	Sort         SortKey
}

// ServiceKind distinguishes the two order flows.
type ServiceKind string

const (
	// ServiceInspection books a physical inspection before any money moves.
	ServiceInspection ServiceKind = "inspection"
	// ServicePurchase commits to buying the vehicle.
	ServicePurchase ServiceKind = "purchase"
)

// PaymentMethod enumerates how a purchase settles.
type PaymentMethod string

const (
	// MethodCard settles through the external payment gateway.
	MethodCard PaymentMethod = "card"
	// MethodBankTransfer settles out-of-band via bank transfer.
	MethodBankTransfer PaymentMethod = "bank-transfer"
	// MethodPayOnInspection settles in person at inspection time.
	MethodPayOnInspection PaymentMethod = "pay-on-inspection"
)

// RequiresGateway reports whether the method needs the external gateway round-trip.
func (m PaymentMethod) RequiresGateway() bool {
	return m == MethodCard
}

// Valid reports whether the method is one of the supported values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodPayOnInspection:
		return true
	}
	return false
}

// Contact holds the buyer identity fields captured at checkout.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Address holds the billing address fields captured at checkout.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Quote is the computed price breakdown for a vehicle. Base, tax, delivery,
// and total are minor-unit-free currency amounts.
type Quote struct {
	Base     int64
	Tax      int64
	Delivery int64
	Total    int64
}

// OrderDraft is the funnel's central mutable entity: the in-progress order
// held only in memory for the lifetime of one traversal. The coordinator owns
// it exclusively; it is discarded on submission, cancellation, or session end.
type OrderDraft struct {
	Vehicle Vehicle
	Contact Contact
	Address Address
	Service ServiceKind
	Method  PaymentMethod
	Quote   Quote
}

// FieldError reports a single missing or malformed draft field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError aggregates the field-level problems blocking a guarded transition.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("draft validation failed: %s", strings.Join(names, ", "))
}

// Validate checks the draft against the preconditions for entering payment:
// a resolved vehicle, all required contact/address fields, and a chosen method.
func (d OrderDraft) Validate() error {
	var fields []FieldError
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, FieldError{Field: field, Reason: "required"})
		}
	}

	if strings.TrimSpace(d.Vehicle.ID) == "" {
		fields = append(fields, FieldError{Field: "vehicle", Reason: "not resolved"})
	}
	require("firstName", d.Contact.FirstName)
	require("lastName", d.Contact.LastName)
	require("email", d.Contact.Email)
	require("phone", d.Contact.Phone)
	require("address", d.Address.Street)
	require("city", d.Address.City)
	require("state", d.Address.State)
	require("zipCode", d.Address.ZipCode)
	if !d.Method.Valid() {
		fields = append(fields, FieldError{Field: "paymentMethod", Reason: "required"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// PaymentAttempt is one discrete request to the gateway. The reference is
// unique per attempt and never reused across attempts.
type PaymentAttempt struct {
	Reference string
	Email     string
	// Amount is the quote total in the gateway's minor currency unit.
	Amount   int64
	Currency string
}

// InspectionBooking carries the schedule details for an inspection request.
type InspectionBooking struct {
	VehicleID string
	FullName  string
	Email     string
	Phone     string
	Date      string
	Time      string
	Message   string
}

// Validate checks the booking has the fields the write API requires.
func (b InspectionBooking) Validate() error {
	var fields []FieldError
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, FieldError{Field: field, Reason: "required"})
		}
	}
	require("carId", b.VehicleID)
	require("fullName", b.FullName)
	require("email", b.Email)
	require("phone", b.Phone)
	require("date", b.Date)
	require("time", b.Time)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
