package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tokodesk/backend/internal/checkout"
	"tokodesk/backend/internal/domain"
	"tokodesk/backend/internal/niftipay"
	"tokodesk/backend/internal/session"
	"tokodesk/backend/internal/store"
	"tokodesk/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), session.NewMemoryStore(), niftipay.New("", ""), "test-store", "ID")
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
}

func newCartWith(t *testing.T, svc *Service, adds ...domain.CartAddLineRequest) domain.Cart {
	t.Helper()
	ctx := cashierCtx()
	created, err := svc.CreateCart(ctx, domain.CartCreateRequest{Country: "ID"})
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	for _, add := range adds {
		if _, err := svc.AddCartLine(ctx, created.ID, add); err != nil {
			t.Fatalf("add line %s: %v", add.ProductID, err)
		}
	}
	return created
}

func TestAddCartLineTierPricingAcrossInsertions(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc)

	// The first insertion stays below the 5-unit tier; the second crosses it
	// and lands at the tier price without repricing the earlier line.
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 4}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 2})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Cart.Lines) != 2 {
		t.Fatalf("expected 2 raw lines, got %d", len(view.Cart.Lines))
	}
	if view.Cart.Lines[0].UnitPriceCents != 120000 {
		t.Fatalf("first line should keep regular price 120000, got %d", view.Cart.Lines[0].UnitPriceCents)
	}
	if view.Cart.Lines[1].UnitPriceCents != 100000 {
		t.Fatalf("second line should get tier price 100000, got %d", view.Cart.Lines[1].UnitPriceCents)
	}

	if len(view.AggregatedLines) != 1 {
		t.Fatalf("expected 1 merged row, got %d", len(view.AggregatedLines))
	}
	row := view.AggregatedLines[0]
	if row.Quantity != 6 || row.SubtotalCents != 680000 {
		t.Fatalf("expected qty 6 subtotal 680000, got qty %d subtotal %d", row.Quantity, row.SubtotalCents)
	}
	if len(row.Buckets) != 2 {
		t.Fatalf("expected 2 price buckets, got %d", len(row.Buckets))
	}
	if view.Totals.SubtotalCents != 680000 {
		t.Fatalf("expected totals subtotal 680000, got %d", view.Totals.SubtotalCents)
	}
}

func TestAddCartLineStockGate(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc)

	// 12 units of the M shirt exist across both warehouses.
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 13}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Draining the L shirt's 5 units blocks further adds; back-orders are off.
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-l", Quantity: 5}); err != nil {
		t.Fatalf("exact stock add: %v", err)
	}
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-l", Quantity: 1}); !errors.Is(err, store.ErrBackordersDisabled) {
		t.Fatalf("expected ErrBackordersDisabled, got %v", err)
	}

	// The mug is out of stock but allows back-orders.
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-mug", Quantity: 3}); err != nil {
		t.Fatalf("backorder add: %v", err)
	}

	// The gift card has no stock data at all and sells without limit.
	if _, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 100}); err != nil {
		t.Fatalf("unlimited add: %v", err)
	}
}

func TestAddCartLineBackorderBeyondRemainingStock(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	if _, err := svc.repo.UpsertProduct(ctx, domain.Product{
		ID:              "prod-poster",
		Title:           "Poster",
		SKU:             "POST-1",
		Category:        "merch",
		RegularPrice:    map[string]int64{"ID": 30000},
		StockData:       map[string]map[string]int{"jakarta": {"ID": 3}},
		AllowBackorders: true,
		Active:          true,
	}); err != nil {
		t.Fatalf("upsert poster: %v", err)
	}
	cart := newCartWith(t, svc)

	// Three units on hand, the overshoot ships on back-order. Fulfillment
	// accepts the same shortfall, so the add gate does too.
	view, err := svc.AddCartLine(ctx, cart.ID, domain.CartAddLineRequest{ProductID: "prod-poster", Quantity: 5})
	if err != nil {
		t.Fatalf("backorder add past remaining stock: %v", err)
	}
	if view.Totals.SubtotalCents != 150000 {
		t.Fatalf("expected subtotal 150000, got %d", view.Totals.SubtotalCents)
	}

	// Raising an existing line follows the same policy.
	if _, err := svc.UpdateCartLine(ctx, cart.ID, view.Cart.Lines[0].ID, domain.CartUpdateLineRequest{Quantity: 9}); err != nil {
		t.Fatalf("raise qty past remaining stock: %v", err)
	}
}

func TestCheckoutCompleteAndIdempotentReplay(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 2})

	// subtotal 240000, regular shipping 20000, 10% welcome discount 24000
	req := domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		IdempotencyKey:   "idem-test-1",
		ShippingMethodID: "ship-regular",
		DiscountRuleID:   "disc-welcome",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 236000}},
	}

	resp, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("first submission must not be flagged duplicate")
	}
	if resp.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed order, got %s", resp.Order.Status)
	}
	if resp.Order.TotalCents != 236000 || resp.Order.PaidCents != 236000 {
		t.Fatalf("expected total and paid 236000, got total %d paid %d", resp.Order.TotalCents, resp.Order.PaidCents)
	}

	product, err := svc.repo.GetProduct(ctx, "prod-tshirt", "var-tshirt-m")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	remaining := 0
	for _, byCountry := range product.StockData {
		remaining += byCountry["ID"]
	}
	if remaining != 10 {
		t.Fatalf("expected 10 units left after selling 2 of 12, got %d", remaining)
	}

	// The cart is consumed by checkout.
	if _, err := svc.GetCartView(ctx, cart.ID, "", "", 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cart deleted after checkout, got %v", err)
	}

	// Replaying the same idempotency key returns the original order.
	replay, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("replay checkout: %v", err)
	}
	if !replay.Duplicate {
		t.Fatalf("expected duplicate flag on replay")
	}
	if replay.Order.ID != resp.Order.ID {
		t.Fatalf("replay returned a different order: %s vs %s", replay.Order.ID, resp.Order.ID)
	}
}

func TestCheckoutParkThenPayAndComplete(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-l", Quantity: 1})

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionPark,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 50000}},
	})
	if err != nil {
		t.Fatalf("park checkout: %v", err)
	}
	if resp.Order.Status != domain.OrderStatusParked {
		t.Fatalf("expected parked, got %s", resp.Order.Status)
	}
	if resp.Order.TotalCents != 140000 || resp.Order.PaidCents != 50000 {
		t.Fatalf("expected total 140000 paid 50000, got total %d paid %d", resp.Order.TotalCents, resp.Order.PaidCents)
	}

	// Parked items stay reserved.
	product, err := svc.repo.GetProduct(ctx, "prod-tshirt", "var-tshirt-l")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.StockData["jakarta"]["ID"] != 4 {
		t.Fatalf("expected stock reserved at park, got %d", product.StockData["jakarta"]["ID"])
	}

	// Completing before the balance is settled fails.
	if _, err := svc.CompleteOrder(ctx, resp.Order.ID); !errors.Is(err, checkout.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	paid, err := svc.AddOrderPayments(ctx, resp.Order.ID, domain.OrderPaymentRequest{
		Payments: []domain.PaymentSplit{{MethodID: "card", AmountCents: 90000}},
	})
	if err != nil {
		t.Fatalf("add payments: %v", err)
	}
	if paid.Order.PaidCents != 140000 {
		t.Fatalf("expected paid 140000, got %d", paid.Order.PaidCents)
	}

	done, err := svc.CompleteOrder(ctx, resp.Order.ID)
	if err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if done.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Order.Status)
	}
}

func TestCheckoutRejectsOverpayment(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 999999}},
	})
	if !errors.Is(err, checkout.ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
}

func TestCheckoutNiftipaySplitGates(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	// gift card 100000 plus regular shipping 20000
	req := domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "niftipay", AmountCents: 120000}},
	}

	// A crypto split without a chosen network cannot complete.
	if _, err := svc.Checkout(ctx, req); !errors.Is(err, checkout.ErrNetworkUnselected) {
		t.Fatalf("expected ErrNetworkUnselected, got %v", err)
	}

	// With the network chosen but no provider credentials the invoice step fails.
	req.Payments = []domain.PaymentSplit{{MethodID: "niftipay", AmountCents: 120000, Network: "polygon", Asset: "usdc"}}
	if _, err := svc.Checkout(ctx, req); !errors.Is(err, niftipay.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func stockTotal(t *testing.T, svc *Service, productID string, variationID string, country string) int {
	t.Helper()
	product, err := svc.repo.GetProduct(context.Background(), productID, variationID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	total := 0
	for _, byCountry := range product.StockData {
		total += byCountry[country]
	}
	return total
}

func TestCheckoutFailedInvoiceLeavesStockUntouched(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 2})

	req := domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		IdempotencyKey:   "idem-crypto-retry",
		Payments:         []domain.PaymentSplit{{MethodID: "niftipay", AmountCents: 260000, Network: "polygon", Asset: "usdc"}},
	}

	// The provider rejects both attempts. No order exists yet, so the retry
	// cannot replay; each failed submission must leave stock untouched.
	if _, err := svc.Checkout(ctx, req); !errors.Is(err, niftipay.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.Checkout(ctx, req); !errors.Is(err, niftipay.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured on retry, got %v", err)
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 12 {
		t.Fatalf("expected stock 12 after failed submissions, got %d", got)
	}

	// Switching to cash on the same key then succeeds and reserves exactly once.
	req.Payments = []domain.PaymentSplit{{MethodID: "cash", AmountCents: 260000}}
	resp, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("cash checkout: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("expected a fresh order, not a replay")
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 10 {
		t.Fatalf("expected stock 10 after completed checkout, got %d", got)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionPark,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "barter", AmountCents: 1000}},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown payment method") {
		t.Fatalf("expected unknown payment method error, got %v", err)
	}
}

func TestEditOrderRepricesLines(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 1})

	parked, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionPark,
		ShippingMethodID: "ship-regular",
	})
	if err != nil {
		t.Fatalf("park: %v", err)
	}

	// Raising the qty to 6 crosses the tier, so the single replacement line
	// lands at the tier price.
	edited, err := svc.EditOrder(ctx, parked.Order.ID, domain.OrderEditRequest{
		Lines: []domain.OrderEditLine{{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(edited.Order.Lines) != 1 || edited.Order.Lines[0].UnitPriceCents != 100000 {
		t.Fatalf("expected single repriced line at 100000, got %+v", edited.Order.Lines)
	}
	// A 600000 subtotal clears the free-shipping threshold.
	if edited.Order.TotalCents != 600000 {
		t.Fatalf("expected total 600000, got %d", edited.Order.TotalCents)
	}
}

func TestEditOrderMovesReservedStock(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 2})

	parked, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionPark,
		ShippingMethodID: "ship-regular",
	})
	if err != nil {
		t.Fatalf("park: %v", err)
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 10 {
		t.Fatalf("expected stock 10 after park, got %d", got)
	}

	// Raising the qty reserves the four extra units.
	if _, err := svc.EditOrder(ctx, parked.Order.ID, domain.OrderEditRequest{
		Lines: []domain.OrderEditLine{{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 6}},
	}); err != nil {
		t.Fatalf("raise qty: %v", err)
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 6 {
		t.Fatalf("expected stock 6 after raising to 6, got %d", got)
	}

	// Lowering the qty returns the five units no longer held.
	if _, err := svc.EditOrder(ctx, parked.Order.ID, domain.OrderEditRequest{
		Lines: []domain.OrderEditLine{{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 1}},
	}); err != nil {
		t.Fatalf("lower qty: %v", err)
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 11 {
		t.Fatalf("expected stock 11 after lowering to 1, got %d", got)
	}

	// An edit past the warehouse total is rejected without touching stock.
	if _, err := svc.EditOrder(ctx, parked.Order.ID, domain.OrderEditRequest{
		Lines: []domain.OrderEditLine{{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 20}},
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockTotal(t, svc, "prod-tshirt", "var-tshirt-m", "ID"); got != 11 {
		t.Fatalf("expected stock 11 after rejected edit, got %d", got)
	}
}

func TestEditOrderGuardsPaidExceedingTotal(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 2})

	parked, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionPark,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 200000}},
	})
	if err != nil {
		t.Fatalf("park: %v", err)
	}

	// Shrinking the order below what has already been paid is rejected.
	_, err = svc.EditOrder(ctx, parked.Order.ID, domain.OrderEditRequest{
		Lines: []domain.OrderEditLine{{ProductID: "prod-tshirt", VariationID: "var-tshirt-m", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestEditOrderOnlyParked(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	completed, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 120000}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := svc.EditOrder(ctx, completed.Order.ID, domain.OrderEditRequest{}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected edit rejected on completed order, got %v", err)
	}
}

func TestTicketLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{Username: "agent", Role: "agent"})

	view, err := svc.CreateTicket(ctx, domain.TicketCreateRequest{
		Subject:   "Damaged mug in order",
		Requester: "budi@example.com",
		Body:      "The mug arrived cracked.",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if view.Ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("expected open status, got %s", view.Ticket.Status)
	}
	if len(view.Messages) != 1 {
		t.Fatalf("expected first message attached, got %d", len(view.Messages))
	}

	view, err = svc.AddTicketMessage(ctx, view.Ticket.ID, domain.TicketMessageRequest{Body: "Replacement on its way."})
	if err != nil {
		t.Fatalf("add message: %v", err)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(view.Messages))
	}
	if view.Messages[1].Author != "agent" {
		t.Fatalf("expected actor username as author, got %s", view.Messages[1].Author)
	}

	view, err = svc.SetTicketStatus(ctx, view.Ticket.ID, domain.TicketStatusPending)
	if err != nil {
		t.Fatalf("open -> pending: %v", err)
	}
	view, err = svc.SetTicketStatus(ctx, view.Ticket.ID, domain.TicketStatusClosed)
	if err != nil {
		t.Fatalf("pending -> closed: %v", err)
	}
	// Closed tickets may reopen but never move straight back to pending.
	if _, err := svc.SetTicketStatus(ctx, view.Ticket.ID, domain.TicketStatusPending); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected closed -> pending rejected, got %v", err)
	}
	if _, err := svc.SetTicketStatus(ctx, view.Ticket.ID, domain.TicketStatusOpen); err != nil {
		t.Fatalf("closed -> open: %v", err)
	}
}

func TestCreateDiscountRequiresAdmin(t *testing.T) {
	svc := newTestService()

	req := domain.DiscountCreateRequest{Name: "Flash Sale", Type: domain.DiscountTypePercentage, Value: 20}
	if _, err := svc.CreateDiscount(cashierCtx(), req); err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("expected admin gate, got %v", err)
	}

	rule, err := svc.CreateDiscount(adminCtx(), req)
	if err != nil {
		t.Fatalf("admin create discount: %v", err)
	}
	if !rule.Active {
		t.Fatalf("new discounts start active")
	}

	toggled, err := svc.SetDiscountActive(adminCtx(), rule.ID, false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Active {
		t.Fatalf("expected rule deactivated")
	}
}

func TestCreateDiscountValidation(t *testing.T) {
	svc := newTestService()

	cases := []domain.DiscountCreateRequest{
		{Name: "", Type: domain.DiscountTypePercentage, Value: 10},
		{Name: "Too Big", Type: domain.DiscountTypePercentage, Value: 150},
		{Name: "Zero Fixed", Type: domain.DiscountTypeFixed, Value: 0},
		{Name: "Bad Type", Type: "bogo", Value: 10},
	}
	for _, req := range cases {
		if _, err := svc.CreateDiscount(adminCtx(), req); !errors.Is(err, store.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
	}
}

func TestPosSessionRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	saved, err := svc.SavePosSession(ctx, domain.PosSession{RegisterID: "reg-1", CartID: "cart-abc"})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	if saved.Cashier != "cashier" {
		t.Fatalf("expected cashier filled from actor, got %q", saved.Cashier)
	}

	loaded, found, err := svc.LoadPosSession(ctx, "reg-1")
	if err != nil || !found {
		t.Fatalf("load session: found=%t err=%v", found, err)
	}
	if loaded.CartID != "cart-abc" {
		t.Fatalf("expected cart carried in session, got %q", loaded.CartID)
	}

	if err := svc.ClearPosSession(ctx, "reg-1"); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, found, _ := svc.LoadPosSession(ctx, "reg-1"); found {
		t.Fatalf("expected session cleared")
	}
}

func TestCheckoutDetachesCartFromRegisterSession(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	if _, err := svc.SavePosSession(ctx, domain.PosSession{RegisterID: "reg-9", CartID: cart.ID}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		RegisterID:       "reg-9",
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 120000}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	loaded, found, err := svc.LoadPosSession(ctx, "reg-9")
	if err != nil || !found {
		t.Fatalf("load session: found=%t err=%v", found, err)
	}
	if loaded.CartID != "" {
		t.Fatalf("expected cart detached after checkout, got %q", loaded.CartID)
	}
}

func TestCheckoutAuditTrail(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	cart := newCartWith(t, svc, domain.CartAddLineRequest{ProductID: "prod-giftcard", Quantity: 1})

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CartID:           cart.ID,
		Action:           domain.CheckoutActionComplete,
		ShippingMethodID: "ship-regular",
		Payments:         []domain.PaymentSplit{{MethodID: "cash", AmountCents: 120000}},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	logs, err := svc.ListAuditLogs(adminCtx(), "test-store", "", 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatalf("expected checkout to leave an audit entry")
	}
	if logs[0].Action != "checkout_complete" || logs[0].ActorUsername != "cashier" {
		t.Fatalf("unexpected audit entry: %+v", logs[0])
	}
}
