package domain

import "strings"

// ProductKey is the composite map key for one (product, variation) pair.
// An empty variation id is a distinct tag, not a wildcard.
func ProductKey(productID string, variationID string) string {
	return productID + "|" + variationID
}

// SplitProductKey is the inverse of ProductKey.
func SplitProductKey(key string) (productID string, variationID string) {
	productID, variationID, _ = strings.Cut(key, "|")
	return productID, variationID
}
