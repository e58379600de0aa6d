// Package cart holds the line reconciliation routines shared by the cart,
// order-edit and register flows: merging raw insertion rows into display
// lines, bucketing by unit price, gating adds on remaining stock and
// deriving order totals.
package cart

import (
	"math"

	"tokodesk/backend/internal/domain"
)

type lineKey struct {
	productID   string
	variationID string
}

// Aggregate merges raw cart lines into one row per (product, variation)
// pair, summing quantity and subtotal. Descriptive fields and the unit
// price are carried from the first raw line of each pair, so the displayed
// unit price times quantity is not guaranteed to reproduce the subtotal
// when tiered pricing produced mixed prices; Buckets carries the accurate
// per-price breakdown for display.
func Aggregate(lines []domain.CartLine) []domain.AggregatedLine {
	order := make([]lineKey, 0, len(lines))
	byKey := make(map[lineKey]*domain.AggregatedLine, len(lines))
	rawByKey := make(map[lineKey][]domain.CartLine, len(lines))

	for _, line := range lines {
		key := lineKey{productID: line.ProductID, variationID: line.VariationID}
		agg, seen := byKey[key]
		if !seen {
			order = append(order, key)
			agg = &domain.AggregatedLine{
				ProductID:      line.ProductID,
				VariationID:    line.VariationID,
				Title:          line.Title,
				SKU:            line.SKU,
				Image:          line.Image,
				UnitPriceCents: line.UnitPriceCents,
				IsAffiliate:    line.IsAffiliate,
			}
			byKey[key] = agg
		}
		agg.Quantity += line.Quantity
		agg.SubtotalCents += line.SubtotalCents
		rawByKey[key] = append(rawByKey[key], line)
	}

	merged := make([]domain.AggregatedLine, 0, len(order))
	for _, key := range order {
		agg := byKey[key]
		agg.Buckets = Buckets(rawByKey[key])
		merged = append(merged, *agg)
	}
	return merged
}

// Buckets groups raw lines by exact unit price, summing quantity per price.
// Bucket order follows first appearance in the input.
func Buckets(lines []domain.CartLine) []domain.PriceBucket {
	order := make([]int64, 0, len(lines))
	qtyByPrice := make(map[int64]int, len(lines))
	for _, line := range lines {
		if _, seen := qtyByPrice[line.UnitPriceCents]; !seen {
			order = append(order, line.UnitPriceCents)
		}
		qtyByPrice[line.UnitPriceCents] += line.Quantity
	}

	buckets := make([]domain.PriceBucket, 0, len(order))
	for _, price := range order {
		buckets = append(buckets, domain.PriceBucket{
			UnitPriceCents: price,
			Quantity:       qtyByPrice[price],
		})
	}
	return buckets
}

// CommittedQty sums the quantity already in the cart for one
// (product, variation) pair.
func CommittedQty(lines []domain.CartLine, productID string, variationID string) int {
	total := 0
	for _, line := range lines {
		if line.ProductID == productID && line.VariationID == variationID {
			total += line.Quantity
		}
	}
	return total
}

// StockState is the add-to-cart gate result for one product in one country.
type StockState struct {
	Remaining int
	Unlimited bool
	CanAdd    bool
	Backorder bool
}

// Gate computes the purchasable remainder for a product in the given
// country, after subtracting what the cart already holds. Stock is summed
// across warehouses. A product with no stock data at all is unlimited.
// Backorder mirrors the fulfillment policy: when it is set, adds beyond
// the remainder are accepted and the shortfall ships on backorder.
func Gate(product domain.Product, country string, alreadyInCart int) StockState {
	if len(product.StockData) == 0 {
		return StockState{Remaining: 0, Unlimited: true, CanAdd: true}
	}

	stock := 0
	for _, byCountry := range product.StockData {
		stock += byCountry[country]
	}

	remaining := stock - alreadyInCart
	if remaining < 0 {
		remaining = 0
	}
	return StockState{
		Remaining: remaining,
		CanAdd:    remaining > 0 || product.AllowBackorders,
		Backorder: product.AllowBackorders,
	}
}

// UnitPrice resolves the unit price for an insertion that brings the pair's
// cumulative quantity to cumulativeQty. The highest tier whose MinQty is
// reached wins; with no matching tier the country's regular price applies.
func UnitPrice(product domain.Product, country string, cumulativeQty int) int64 {
	price := product.RegularPrice[country]
	bestMin := 0
	for _, tier := range product.PriceTiers {
		if tier.Country != "" && tier.Country != country {
			continue
		}
		if cumulativeQty >= tier.MinQty && tier.MinQty >= bestMin {
			bestMin = tier.MinQty
			price = tier.UnitPriceCents
		}
	}
	return price
}

// Subtotal sums the subtotals of non-affiliate lines. Affiliate lines are
// commission pass-throughs and never count toward the order total.
func Subtotal(lines []domain.CartLine) int64 {
	var subtotal int64
	for _, line := range lines {
		if line.IsAffiliate {
			continue
		}
		subtotal += line.SubtotalCents
	}
	return subtotal
}

// DiscountAmount applies a discount rule to a subtotal. Percentage values
// clamp to [0,100]; fixed values clamp to [0, subtotal]. A rule whose
// minimum subtotal is not reached yields zero.
func DiscountAmount(rule domain.DiscountRule, subtotalCents int64) int64 {
	if !rule.Active || subtotalCents < rule.MinSubtotalCents {
		return 0
	}

	switch rule.Type {
	case domain.DiscountTypePercentage:
		pct := rule.Value
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return int64(math.Round(float64(subtotalCents) * float64(pct) / 100))
	case domain.DiscountTypeFixed:
		amount := rule.Value
		if amount < 0 {
			amount = 0
		}
		if amount > subtotalCents {
			amount = subtotalCents
		}
		return amount
	}
	return 0
}

// ShippingCost picks the first tier whose band contains the subtotal.
// MaxOrderCents == 0 means no upper bound; no matching tier means free.
func ShippingCost(method domain.ShippingMethod, subtotalCents int64) int64 {
	for _, tier := range method.Tiers {
		if subtotalCents < tier.MinOrderCents {
			continue
		}
		if tier.MaxOrderCents != 0 && subtotalCents > tier.MaxOrderCents {
			continue
		}
		return tier.CostCents
	}
	return 0
}

// Total derives the payable total. Heavily discounted or fully comped
// orders floor at zero instead of going negative.
func Total(subtotalCents, shippingCents, discountCents, pointsCents int64) int64 {
	total := subtotalCents + shippingCents - discountCents - pointsCents
	if total < 0 {
		return 0
	}
	return total
}
