package checkout

import "strings"

// guidanceRules maps known backend failure substrings to operator guidance.
// Order matters: the first match wins.
var guidanceRules = []struct {
	substring string
	message   string
}{
	{
		substring: "no shipping methods available",
		message:   "No shipping methods cover this order. Configure a shipping method for the store before completing the sale.",
	},
	{
		substring: "no payment methods",
		message:   "No payment methods are configured for this store. Enable at least one payment method and retry.",
	},
	{
		substring: "insufficient stock",
		message:   "One or more items exceed available stock. Reduce quantities or remove the out-of-stock items.",
	},
	{
		substring: "back-orders are disabled",
		message:   "This product is out of stock and back-orders are disabled for it. Remove the item to continue.",
	},
	{
		substring: "niftipay not configured for tenant",
		message:   "Crypto payments are not set up for this store. Add the Niftipay API key in store settings or choose another payment method.",
	},
}

// Guidance rewrites a known failure message into operator guidance.
// Unrecognized messages pass through verbatim.
func Guidance(errMessage string) string {
	lower := strings.ToLower(errMessage)
	for _, rule := range guidanceRules {
		if strings.Contains(lower, rule.substring) {
			return rule.message
		}
	}
	return errMessage
}
