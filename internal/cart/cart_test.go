package cart

import (
	"testing"
	"time"

	"tokodesk/backend/internal/domain"
)

func line(productID, variationID string, qty int, unitCents int64) domain.CartLine {
	return domain.CartLine{
		ID:             productID + "-" + variationID,
		ProductID:      productID,
		VariationID:    variationID,
		Title:          productID,
		UnitPriceCents: unitCents,
		Quantity:       qty,
		SubtotalCents:  int64(qty) * unitCents,
		AddedAt:        time.Now().UTC(),
	}
}

func TestAggregateMergesSamePairAcrossInsertions(t *testing.T) {
	lines := []domain.CartLine{
		line("tshirt", "m", 2, 10000),
		line("mug", "", 1, 5000),
		line("tshirt", "m", 3, 10000),
	}

	merged := Aggregate(lines)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged rows, got %d", len(merged))
	}
	if merged[0].ProductID != "tshirt" || merged[0].Quantity != 5 {
		t.Fatalf("expected tshirt qty 5 first, got %s qty %d", merged[0].ProductID, merged[0].Quantity)
	}
	if merged[0].SubtotalCents != 50000 {
		t.Fatalf("expected subtotal 50000, got %d", merged[0].SubtotalCents)
	}
	if merged[1].ProductID != "mug" {
		t.Fatalf("expected mug second, got %s", merged[1].ProductID)
	}
}

func TestAggregateDistinguishesVariations(t *testing.T) {
	lines := []domain.CartLine{
		line("tshirt", "m", 1, 10000),
		line("tshirt", "l", 1, 10000),
	}

	merged := Aggregate(lines)
	if len(merged) != 2 {
		t.Fatalf("expected variations to stay separate, got %d rows", len(merged))
	}
}

func TestAggregateKeepsFirstUnitPriceAndAccurateSubtotal(t *testing.T) {
	// Two insertions of the same pair at different tier prices. The merged
	// row shows the first price but the subtotal stays the true sum.
	lines := []domain.CartLine{
		line("tshirt", "m", 4, 10000),
		line("tshirt", "m", 2, 9000),
	}

	merged := Aggregate(lines)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged row, got %d", len(merged))
	}
	row := merged[0]
	if row.UnitPriceCents != 10000 {
		t.Fatalf("expected first-line unit price 10000, got %d", row.UnitPriceCents)
	}
	if row.SubtotalCents != 58000 {
		t.Fatalf("expected subtotal 58000, got %d", row.SubtotalCents)
	}
	if int64(row.Quantity)*row.UnitPriceCents == row.SubtotalCents {
		t.Fatalf("expected displayed unit price to deliberately diverge from subtotal")
	}

	if len(row.Buckets) != 2 {
		t.Fatalf("expected 2 price buckets, got %d", len(row.Buckets))
	}
	if row.Buckets[0].UnitPriceCents != 10000 || row.Buckets[0].Quantity != 4 {
		t.Fatalf("unexpected first bucket: %+v", row.Buckets[0])
	}
	if row.Buckets[1].UnitPriceCents != 9000 || row.Buckets[1].Quantity != 2 {
		t.Fatalf("unexpected second bucket: %+v", row.Buckets[1])
	}
}

func TestGateSubtractsCartFromWarehouseSum(t *testing.T) {
	product := domain.Product{
		ID: "tshirt",
		StockData: map[string]map[string]int{
			"jakarta":  {"ID": 3},
			"surabaya": {"ID": 2},
		},
	}

	state := Gate(product, "ID", 5)
	if state.Remaining != 0 {
		t.Fatalf("expected remaining 0 with 5 in cart against 5 in stock, got %d", state.Remaining)
	}
	if state.CanAdd {
		t.Fatalf("expected add blocked without backorders")
	}

	product.AllowBackorders = true
	state = Gate(product, "ID", 5)
	if !state.CanAdd || !state.Backorder {
		t.Fatalf("expected backorder add allowed, got %+v", state)
	}
}

func TestGateFlagsBackorderWhileStockRemains(t *testing.T) {
	product := domain.Product{
		ID:              "mug",
		AllowBackorders: true,
		StockData:       map[string]map[string]int{"jakarta": {"ID": 3}},
	}

	state := Gate(product, "ID", 0)
	if !state.CanAdd || !state.Backorder {
		t.Fatalf("expected backorder terms alongside remaining stock, got %+v", state)
	}
	if state.Remaining != 3 {
		t.Fatalf("expected remaining 3, got %d", state.Remaining)
	}
}

func TestGateUnlimitedWithoutStockData(t *testing.T) {
	state := Gate(domain.Product{ID: "giftcard"}, "ID", 100)
	if !state.Unlimited || !state.CanAdd {
		t.Fatalf("expected unlimited purchasable product, got %+v", state)
	}
}

func TestGateNeverGoesNegative(t *testing.T) {
	product := domain.Product{
		ID:        "tshirt",
		StockData: map[string]map[string]int{"jakarta": {"ID": 2}},
	}
	state := Gate(product, "ID", 7)
	if state.Remaining != 0 {
		t.Fatalf("expected remaining clamped to 0, got %d", state.Remaining)
	}
}

func TestUnitPriceHighestReachedTierWins(t *testing.T) {
	product := domain.Product{
		ID:           "tshirt",
		RegularPrice: map[string]int64{"ID": 12000},
		PriceTiers: []domain.PriceTier{
			{Country: "ID", MinQty: 5, UnitPriceCents: 10000},
			{Country: "ID", MinQty: 10, UnitPriceCents: 9000},
			{Country: "SG", MinQty: 5, UnitPriceCents: 20000},
		},
	}

	if got := UnitPrice(product, "ID", 3); got != 12000 {
		t.Fatalf("qty 3 expected regular 12000, got %d", got)
	}
	if got := UnitPrice(product, "ID", 5); got != 10000 {
		t.Fatalf("qty 5 expected tier 10000, got %d", got)
	}
	if got := UnitPrice(product, "ID", 12); got != 9000 {
		t.Fatalf("qty 12 expected tier 9000, got %d", got)
	}
	if got := UnitPrice(product, "SG", 6); got != 20000 {
		t.Fatalf("SG qty 6 expected 20000, got %d", got)
	}
}

func TestSubtotalSkipsAffiliateLines(t *testing.T) {
	lines := []domain.CartLine{
		line("tshirt", "m", 2, 10000),
		line("sticker", "", 1, 3000),
	}
	lines[1].IsAffiliate = true

	if got := Subtotal(lines); got != 20000 {
		t.Fatalf("expected affiliate line excluded, got %d", got)
	}
}

func TestDiscountAmountPercentage(t *testing.T) {
	rule := domain.DiscountRule{Type: domain.DiscountTypePercentage, Value: 10, Active: true}
	if got := DiscountAmount(rule, 10000); got != 1000 {
		t.Fatalf("10%% of 10000 expected 1000, got %d", got)
	}

	rule.Value = 250
	if got := DiscountAmount(rule, 10000); got != 10000 {
		t.Fatalf("percentage above 100 should clamp to full subtotal, got %d", got)
	}
}

func TestDiscountAmountFixedClampsToSubtotal(t *testing.T) {
	rule := domain.DiscountRule{Type: domain.DiscountTypeFixed, Value: 1500, Active: true}
	if got := DiscountAmount(rule, 1000); got != 1000 {
		t.Fatalf("fixed 1500 on subtotal 1000 expected clamp to 1000, got %d", got)
	}
}

func TestDiscountAmountRespectsMinSubtotalAndActive(t *testing.T) {
	rule := domain.DiscountRule{Type: domain.DiscountTypeFixed, Value: 500, MinSubtotalCents: 5000, Active: true}
	if got := DiscountAmount(rule, 4999); got != 0 {
		t.Fatalf("below minimum expected 0, got %d", got)
	}

	rule.Active = false
	if got := DiscountAmount(rule, 10000); got != 0 {
		t.Fatalf("inactive rule expected 0, got %d", got)
	}
}

func TestShippingCostTierSelection(t *testing.T) {
	method := domain.ShippingMethod{
		ID: "ship-regular",
		Tiers: []domain.ShippingTier{
			{MinOrderCents: 0, MaxOrderCents: 250000, CostCents: 20000},
			{MinOrderCents: 250000, MaxOrderCents: 0, CostCents: 0},
		},
	}

	if got := ShippingCost(method, 100000); got != 20000 {
		t.Fatalf("expected 20000 under threshold, got %d", got)
	}
	// MaxOrderCents == 0 is an unbounded band.
	if got := ShippingCost(method, 900000); got != 0 {
		t.Fatalf("expected free shipping above threshold, got %d", got)
	}
	if got := ShippingCost(domain.ShippingMethod{}, 100000); got != 0 {
		t.Fatalf("no tiers expected 0, got %d", got)
	}
}

func TestTotalFloorsAtZero(t *testing.T) {
	if got := Total(10000, 2000, 5000, 1000); got != 6000 {
		t.Fatalf("expected 6000, got %d", got)
	}
	if got := Total(1000, 0, 5000, 0); got != 0 {
		t.Fatalf("over-discounted total should floor at 0, got %d", got)
	}
}
