package format

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Amount formats a minor-unit-free currency amount with digit grouping and
// the currency symbol the storefront displays.
// Example: Amount(180700, "NGN") => "₦180,700".
func Amount(value int64, currency string) string {
	grouped := printer.Sprintf("%d", value)
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "NGN":
		return "₦" + grouped
	case "USD":
		return "$" + grouped
	default:
		return strings.ToUpper(strings.TrimSpace(currency)) + " " + grouped
	}
}
