package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokodesk/backend/internal/cart"
	"tokodesk/backend/internal/checkout"
	"tokodesk/backend/internal/domain"
	"tokodesk/backend/internal/niftipay"
	"tokodesk/backend/internal/session"
	"tokodesk/backend/internal/store"
	"tokodesk/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	sessions       session.Store
	crypto         *niftipay.Client
	defaultStoreID string
	defaultCountry string
}

func New(repo store.Repository, sessions session.Store, crypto *niftipay.Client, defaultStoreID string, defaultCountry string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if defaultCountry == "" {
		defaultCountry = "ID"
	}

	return &Service{
		repo:           repo,
		sessions:       sessions,
		crypto:         crypto,
		defaultStoreID: defaultStoreID,
		defaultCountry: defaultCountry,
	}
}

func (s *Service) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(category))
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.ProductCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	return s.repo.ListShippingMethods(ctx)
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

func (s *Service) NiftipayNetworks(ctx context.Context) ([]domain.NiftipayNetwork, error) {
	return s.crypto.Networks(ctx)
}

func (s *Service) CreateCart(ctx context.Context, req domain.CartCreateRequest) (domain.Cart, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if req.Country == "" {
		req.Country = s.defaultCountry
	}

	created, err := s.repo.CreateCart(ctx, domain.Cart{
		ID:      xid.New("cart"),
		StoreID: req.StoreID,
		Country: req.Country,
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return *created, nil
}

// AddCartLine records one insertion event. The unit price is resolved from
// the product's tiers at the new cumulative quantity, so repeat adds across
// a tier boundary leave earlier raw lines at their original price.
func (s *Service) AddCartLine(ctx context.Context, cartID string, req domain.CartAddLineRequest) (domain.CartView, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.VariationID = strings.TrimSpace(req.VariationID)
	if cartID == "" || req.ProductID == "" || req.Quantity < 1 {
		return domain.CartView{}, store.ErrInvalidRequest
	}

	current, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return domain.CartView{}, err
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID, req.VariationID)
	if err != nil {
		return domain.CartView{}, err
	}
	if !product.Active {
		return domain.CartView{}, store.ErrInvalidRequest
	}

	committed := cart.CommittedQty(current.Lines, req.ProductID, req.VariationID)
	gate := cart.Gate(*product, current.Country, committed)
	if !gate.CanAdd {
		return domain.CartView{}, store.ErrBackordersDisabled
	}
	if !gate.Unlimited && !gate.Backorder && req.Quantity > gate.Remaining {
		return domain.CartView{}, store.ErrInsufficientStock
	}

	cumulative := committed + req.Quantity
	unitPrice := cart.UnitPrice(*product, current.Country, cumulative)
	if unitPrice < 1 && !product.IsAffiliate {
		return domain.CartView{}, fmt.Errorf("%w: product has no price for country %s", store.ErrInvalidRequest, current.Country)
	}

	line := domain.CartLine{
		ID:             xid.New("line"),
		ProductID:      product.ID,
		VariationID:    product.VariationID,
		Title:          product.Title,
		SKU:            product.SKU,
		Image:          product.Image,
		UnitPriceCents: unitPrice,
		Quantity:       req.Quantity,
		SubtotalCents:  int64(req.Quantity) * unitPrice,
		IsAffiliate:    product.IsAffiliate,
		AddedAt:        time.Now().UTC(),
	}

	updated, err := s.repo.AppendCartLine(ctx, cartID, line)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.buildCartView(ctx, *updated, "", "", 0)
}

func (s *Service) UpdateCartLine(ctx context.Context, cartID string, lineID string, req domain.CartUpdateLineRequest) (domain.CartView, error) {
	if cartID == "" || lineID == "" || req.Quantity < 1 {
		return domain.CartView{}, store.ErrInvalidRequest
	}

	current, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return domain.CartView{}, err
	}

	var target *domain.CartLine
	for i := range current.Lines {
		if current.Lines[i].ID == lineID {
			target = &current.Lines[i]
			break
		}
	}
	if target == nil {
		return domain.CartView{}, store.ErrNotFound
	}

	if req.Quantity > target.Quantity {
		product, err := s.repo.GetProduct(ctx, target.ProductID, target.VariationID)
		if err != nil {
			return domain.CartView{}, err
		}
		committed := cart.CommittedQty(current.Lines, target.ProductID, target.VariationID)
		gate := cart.Gate(*product, current.Country, committed)
		increase := req.Quantity - target.Quantity
		if !gate.CanAdd {
			return domain.CartView{}, store.ErrBackordersDisabled
		}
		if !gate.Unlimited && !gate.Backorder && increase > gate.Remaining {
			return domain.CartView{}, store.ErrInsufficientStock
		}
	}

	updated, err := s.repo.UpdateCartLineQty(ctx, cartID, lineID, req.Quantity)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.buildCartView(ctx, *updated, "", "", 0)
}

func (s *Service) RemoveCartLine(ctx context.Context, cartID string, lineID string) (domain.CartView, error) {
	if cartID == "" || lineID == "" {
		return domain.CartView{}, store.ErrInvalidRequest
	}
	updated, err := s.repo.DeleteCartLine(ctx, cartID, lineID)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.buildCartView(ctx, *updated, "", "", 0)
}

// GetCartView returns raw lines, merged display rows and totals. Discount,
// shipping method and points are optional preview inputs from the register.
func (s *Service) GetCartView(ctx context.Context, cartID string, discountRuleID string, shippingMethodID string, pointsCents int64) (domain.CartView, error) {
	if cartID == "" {
		return domain.CartView{}, store.ErrInvalidRequest
	}
	current, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.buildCartView(ctx, *current, discountRuleID, shippingMethodID, pointsCents)
}

func (s *Service) buildCartView(ctx context.Context, c domain.Cart, discountRuleID string, shippingMethodID string, pointsCents int64) (domain.CartView, error) {
	totals, err := s.computeTotals(ctx, c.Lines, discountRuleID, shippingMethodID, pointsCents)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.CartView{
		Cart:            c,
		AggregatedLines: cart.Aggregate(c.Lines),
		Totals:          totals,
	}, nil
}

func (s *Service) computeTotals(ctx context.Context, lines []domain.CartLine, discountRuleID string, shippingMethodID string, pointsCents int64) (domain.CartTotals, error) {
	subtotal := cart.Subtotal(lines)

	var discount int64
	discountRuleID = strings.TrimSpace(discountRuleID)
	if discountRuleID != "" {
		rule, err := s.repo.GetDiscount(ctx, discountRuleID)
		if err != nil {
			return domain.CartTotals{}, err
		}
		discount = cart.DiscountAmount(*rule, subtotal)
	}

	var shipping int64
	shippingMethodID = strings.TrimSpace(shippingMethodID)
	if shippingMethodID != "" {
		method, err := s.repo.GetShippingMethod(ctx, shippingMethodID)
		if err != nil {
			return domain.CartTotals{}, err
		}
		shipping = cart.ShippingCost(*method, subtotal)
	}

	if pointsCents < 0 {
		pointsCents = 0
	}

	return domain.CartTotals{
		SubtotalCents:       subtotal,
		ShippingCents:       shipping,
		DiscountCents:       discount,
		PointsRedeemedCents: pointsCents,
		TotalCents:          cart.Total(subtotal, shipping, discount, pointsCents),
		DiscountRuleID:      discountRuleID,
		ShippingMethodID:    shippingMethodID,
	}, nil
}

// Checkout settles a cart into an order, either completed (balance zero) or
// parked (pending payment). Stock is decremented in both cases so parked
// items stay reserved.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.OrderResponse, error) {
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if req.Action == "" {
		req.Action = domain.CheckoutActionComplete
	}
	if req.Action != domain.CheckoutActionComplete && req.Action != domain.CheckoutActionPark {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	if req.CartID == "" {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}

	if existing, err := s.repo.FindOrderByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return domain.OrderResponse{Order: *existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.OrderResponse{}, err
	}

	current, err := s.repo.GetCart(ctx, req.CartID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if len(current.Lines) == 0 {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}

	shippingMethodID, err := s.resolveShippingMethod(ctx, req.ShippingMethodID)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	totals, err := s.computeTotals(ctx, current.Lines, req.DiscountRuleID, shippingMethodID, req.PointsRedeemedCents)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	if err := s.validatePayments(ctx, totals.TotalCents, req.Payments, req.Action == domain.CheckoutActionComplete); err != nil {
		return domain.OrderResponse{}, err
	}

	// Open the crypto invoice before touching stock. A provider failure
	// must leave stock untouched so the register can retry the submission.
	invoiceID, err := s.openCryptoInvoices(ctx, req.Payments, req.IdempotencyKey)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	products, err := s.productsForLines(ctx, current.Lines)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if err := s.repo.DecrementStock(ctx, current.Country, current.Lines, products); err != nil {
		return domain.OrderResponse{}, err
	}

	status := domain.OrderStatusCompleted
	if req.Action == domain.CheckoutActionPark {
		status = domain.OrderStatusParked
	}

	order := domain.Order{
		ID:                  xid.New("order"),
		StoreID:             current.StoreID,
		RegisterID:          strings.TrimSpace(req.RegisterID),
		CartID:              current.ID,
		Country:             current.Country,
		Status:              status,
		IdempotencyKey:      req.IdempotencyKey,
		Lines:               current.Lines,
		Payments:            req.Payments,
		SubtotalCents:       totals.SubtotalCents,
		ShippingCents:       totals.ShippingCents,
		DiscountCents:       totals.DiscountCents,
		PointsRedeemedCents: totals.PointsRedeemedCents,
		TotalCents:          totals.TotalCents,
		PaidCents:           sumPayments(req.Payments),
		DiscountRuleID:      totals.DiscountRuleID,
		ShippingMethodID:    totals.ShippingMethodID,
		NiftipayInvoiceID:   invoiceID,
		CreatedAt:           time.Now().UTC(),
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		// The order never existed, so the decrement above must be undone
		// or the reserved stock leaks.
		if restockErr := s.repo.IncrementStock(ctx, current.Country, current.Lines); restockErr != nil {
			log.Printf("[service] WARN: failed to restock cart %s after rejected order: %v", current.ID, restockErr)
		}
		return domain.OrderResponse{}, err
	}

	if err := s.repo.DeleteCart(ctx, current.ID); err != nil {
		log.Printf("[service] WARN: failed to delete cart %s after checkout: %v", current.ID, err)
	}
	s.clearSessionCart(ctx, req.RegisterID, current.ID)

	s.logAudit(ctx, created.StoreID, "checkout_"+req.Action, "order", created.ID,
		fmt.Sprintf("total=%d,paid=%d,splits=%d", created.TotalCents, created.PaidCents, len(created.Payments)))

	return domain.OrderResponse{Order: *created}, nil
}

// resolveShippingMethod defaults to the first configured method. Physical
// fulfillment cannot proceed without one.
func (s *Service) resolveShippingMethod(ctx context.Context, methodID string) (string, error) {
	methodID = strings.TrimSpace(methodID)
	if methodID != "" {
		return methodID, nil
	}
	methods, err := s.repo.ListShippingMethods(ctx)
	if err != nil {
		return "", err
	}
	if len(methods) == 0 {
		return "", store.ErrNoShippingMethods
	}
	return methods[0].ID, nil
}

func (s *Service) validatePayments(ctx context.Context, totalCents int64, payments []domain.PaymentSplit, forComplete bool) error {
	methods, err := s.repo.ListPaymentMethods(ctx)
	if err != nil {
		return err
	}
	if len(methods) == 0 {
		return store.ErrNoPaymentMethods
	}
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[m.ID] = true
	}
	for _, p := range payments {
		if !allowed[strings.ToLower(strings.TrimSpace(p.MethodID))] {
			return fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidRequest, p.MethodID)
		}
	}

	return checkout.ValidateSplits(totalCents, payments, forComplete)
}

func (s *Service) openCryptoInvoices(ctx context.Context, payments []domain.PaymentSplit, reference string) (string, error) {
	invoiceID := ""
	for _, p := range payments {
		if p.MethodID != domain.PaymentMethodNiftipay {
			continue
		}
		invoice, err := s.crypto.CreateInvoice(ctx, p.Network, p.Asset, p.AmountCents, reference)
		if err != nil {
			return "", err
		}
		invoiceID = invoice.ID
	}
	return invoiceID, nil
}

func (s *Service) productsForLines(ctx context.Context, lines []domain.CartLine) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(lines))
	for _, line := range lines {
		key := domain.ProductKey(line.ProductID, line.VariationID)
		if _, seen := products[key]; seen {
			continue
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID, line.VariationID)
		if err != nil {
			return nil, err
		}
		products[key] = *product
	}
	return products, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	if orderID == "" {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

func (s *Service) ListOrders(ctx context.Context, storeID string, status string, limit int) ([]domain.Order, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListOrders(ctx, storeID, strings.ToLower(strings.TrimSpace(status)), limit)
}

// EditOrder reworks a parked order: replace lines, change discount or
// shipping, adjust points. Lines are re-priced from scratch through the
// tier table, and the recomputed total may not fall below what has already
// been paid. A parked order holds its stock, so line changes move the
// warehouse ledger by the quantity delta.
func (s *Service) EditOrder(ctx context.Context, orderID string, req domain.OrderEditRequest) (domain.OrderResponse, error) {
	if orderID == "" {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if order.Status != domain.OrderStatusParked {
		return domain.OrderResponse{}, fmt.Errorf("%w: only parked orders are editable", store.ErrInvalidRequest)
	}

	previousLines := order.Lines
	if req.Lines != nil {
		lines, err := s.repriceLines(ctx, order.Country, req.Lines)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		order.Lines = lines
	}
	if req.DiscountRuleID != nil {
		order.DiscountRuleID = strings.TrimSpace(*req.DiscountRuleID)
	}
	if req.ShippingMethodID != nil {
		order.ShippingMethodID = strings.TrimSpace(*req.ShippingMethodID)
	}
	if req.PointsRedeemedCents != nil {
		if *req.PointsRedeemedCents < 0 {
			return domain.OrderResponse{}, store.ErrInvalidRequest
		}
		order.PointsRedeemedCents = *req.PointsRedeemedCents
	}

	totals, err := s.computeTotals(ctx, order.Lines, order.DiscountRuleID, order.ShippingMethodID, order.PointsRedeemedCents)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if order.PaidCents > totals.TotalCents {
		return domain.OrderResponse{}, fmt.Errorf("%w: paid amount exceeds edited total", store.ErrInvalidRequest)
	}
	order.SubtotalCents = totals.SubtotalCents
	order.ShippingCents = totals.ShippingCents
	order.DiscountCents = totals.DiscountCents
	order.TotalCents = totals.TotalCents

	// Decrement added quantities before persisting so a shortfall rejects
	// the edit cleanly. Removed quantities are restocked only once the
	// updated order is saved.
	var added, removed []domain.CartLine
	if req.Lines != nil {
		added, removed = stockDelta(previousLines, order.Lines)
	}
	if len(added) > 0 {
		products, err := s.productsForLines(ctx, added)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		if err := s.repo.DecrementStock(ctx, order.Country, added, products); err != nil {
			return domain.OrderResponse{}, err
		}
	}

	updated, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		if len(added) > 0 {
			if restockErr := s.repo.IncrementStock(ctx, order.Country, added); restockErr != nil {
				log.Printf("[service] WARN: failed to restock order %s after rejected edit: %v", order.ID, restockErr)
			}
		}
		return domain.OrderResponse{}, err
	}
	if len(removed) > 0 {
		if err := s.repo.IncrementStock(ctx, order.Country, removed); err != nil {
			log.Printf("[service] WARN: failed to restock removed lines for order %s: %v", updated.ID, err)
		}
	}

	s.logAudit(ctx, updated.StoreID, "order_edit", "order", updated.ID,
		fmt.Sprintf("total=%d,lines=%d", updated.TotalCents, len(updated.Lines)))
	return domain.OrderResponse{Order: *updated}, nil
}

// repriceLines rebuilds order lines from edit input, walking each pair's
// cumulative quantity through the tier table so a qty that spans a tier
// boundary still lands on one line at the final tier price.
func (s *Service) repriceLines(ctx context.Context, country string, edits []domain.OrderEditLine) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(edits))
	cumulative := make(map[string]int, len(edits))
	for _, edit := range edits {
		edit.ProductID = strings.TrimSpace(edit.ProductID)
		if edit.ProductID == "" || edit.Quantity < 1 {
			return nil, store.ErrInvalidRequest
		}
		product, err := s.repo.GetProduct(ctx, edit.ProductID, strings.TrimSpace(edit.VariationID))
		if err != nil {
			return nil, err
		}

		key := domain.ProductKey(product.ID, product.VariationID)
		cumulative[key] += edit.Quantity
		unitPrice := cart.UnitPrice(*product, country, cumulative[key])
		lines = append(lines, domain.CartLine{
			ID:             xid.New("line"),
			ProductID:      product.ID,
			VariationID:    product.VariationID,
			Title:          product.Title,
			SKU:            product.SKU,
			Image:          product.Image,
			UnitPriceCents: unitPrice,
			Quantity:       edit.Quantity,
			SubtotalCents:  int64(edit.Quantity) * unitPrice,
			IsAffiliate:    product.IsAffiliate,
			AddedAt:        time.Now().UTC(),
		})
	}
	return lines, nil
}

// stockDelta diffs two line sets per (product, variation) pair and returns
// the quantities that must be taken from and returned to stock.
func stockDelta(before []domain.CartLine, after []domain.CartLine) (added []domain.CartLine, removed []domain.CartLine) {
	beforeQty := make(map[string]int, len(before))
	for _, line := range before {
		beforeQty[domain.ProductKey(line.ProductID, line.VariationID)] += line.Quantity
	}
	afterQty := make(map[string]int, len(after))
	order := make([]string, 0, len(after))
	ids := make(map[string]domain.CartLine, len(after))
	for _, line := range after {
		key := domain.ProductKey(line.ProductID, line.VariationID)
		if _, seen := afterQty[key]; !seen {
			order = append(order, key)
			ids[key] = line
		}
		afterQty[key] += line.Quantity
	}
	for _, line := range before {
		key := domain.ProductKey(line.ProductID, line.VariationID)
		if _, seen := afterQty[key]; !seen {
			afterQty[key] = 0
			order = append(order, key)
			ids[key] = line
		}
	}

	for _, key := range order {
		diff := afterQty[key] - beforeQty[key]
		line := ids[key]
		switch {
		case diff > 0:
			added = append(added, domain.CartLine{ProductID: line.ProductID, VariationID: line.VariationID, Quantity: diff})
		case diff < 0:
			removed = append(removed, domain.CartLine{ProductID: line.ProductID, VariationID: line.VariationID, Quantity: -diff})
		}
	}
	return added, removed
}

// AddOrderPayments appends splits to a parked order, holding the invariant
// that paid never exceeds total.
func (s *Service) AddOrderPayments(ctx context.Context, orderID string, req domain.OrderPaymentRequest) (domain.OrderResponse, error) {
	if orderID == "" || len(req.Payments) == 0 {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if order.Status != domain.OrderStatusParked {
		return domain.OrderResponse{}, fmt.Errorf("%w: order is not awaiting payment", store.ErrInvalidRequest)
	}

	reconciler := checkout.NewSession(order.TotalCents)
	for _, existing := range order.Payments {
		if err := reconciler.AddPayment(existing); err != nil {
			return domain.OrderResponse{}, err
		}
	}
	for _, split := range req.Payments {
		if err := reconciler.AddPayment(split); err != nil {
			return domain.OrderResponse{}, err
		}
	}

	if _, err := s.openCryptoInvoices(ctx, req.Payments, order.IdempotencyKey); err != nil {
		return domain.OrderResponse{}, err
	}

	order.Payments = reconciler.Payments
	order.PaidCents = reconciler.PaidCents()
	updated, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, updated.StoreID, "order_payment", "order", updated.ID,
		fmt.Sprintf("paid=%d,total=%d", updated.PaidCents, updated.TotalCents))
	return domain.OrderResponse{Order: *updated}, nil
}

// CompleteOrder settles a parked order once its balance is exactly zero.
func (s *Service) CompleteOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	if orderID == "" {
		return domain.OrderResponse{}, store.ErrInvalidRequest
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if order.Status != domain.OrderStatusParked {
		return domain.OrderResponse{}, fmt.Errorf("%w: order is not awaiting payment", store.ErrInvalidRequest)
	}

	reconciler := checkout.NewSession(order.TotalCents)
	for _, existing := range order.Payments {
		if err := reconciler.AddPayment(existing); err != nil {
			return domain.OrderResponse{}, err
		}
	}
	if err := reconciler.BeginComplete(); err != nil {
		return domain.OrderResponse{}, err
	}

	order.Status = domain.OrderStatusCompleted
	updated, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		reconciler.Fail()
		return domain.OrderResponse{}, err
	}
	reconciler.Confirm()

	s.logAudit(ctx, updated.StoreID, "order_complete", "order", updated.ID,
		fmt.Sprintf("total=%d", updated.TotalCents))
	return domain.OrderResponse{Order: *updated}, nil
}

func (s *Service) CreateDiscount(ctx context.Context, req domain.DiscountCreateRequest) (domain.DiscountRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.DiscountRule{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Name == "" || req.MinSubtotalCents < 0 {
		return domain.DiscountRule{}, store.ErrInvalidRequest
	}
	switch req.Type {
	case domain.DiscountTypePercentage:
		if req.Value < 1 || req.Value > 100 {
			return domain.DiscountRule{}, store.ErrInvalidRequest
		}
	case domain.DiscountTypeFixed:
		if req.Value < 1 {
			return domain.DiscountRule{}, store.ErrInvalidRequest
		}
	default:
		return domain.DiscountRule{}, store.ErrInvalidRequest
	}

	rule := domain.DiscountRule{
		ID:               xid.New("disc"),
		Name:             req.Name,
		Code:             req.Code,
		Type:             req.Type,
		Value:            req.Value,
		MinSubtotalCents: req.MinSubtotalCents,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}
	saved, err := s.repo.CreateDiscount(ctx, rule)
	if err != nil {
		return domain.DiscountRule{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "discount_create", "discount", saved.ID,
		fmt.Sprintf("type=%s,value=%d", saved.Type, saved.Value))
	return *saved, nil
}

func (s *Service) ListDiscounts(ctx context.Context) ([]domain.DiscountRule, error) {
	return s.repo.ListDiscounts(ctx)
}

func (s *Service) SetDiscountActive(ctx context.Context, ruleID string, active bool) (domain.DiscountRule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.DiscountRule{}, fmt.Errorf("admin role required")
	}

	rule, err := s.repo.SetDiscountActive(ctx, ruleID, active)
	if err != nil {
		return domain.DiscountRule{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "discount_toggle", "discount", ruleID, fmt.Sprintf("active=%t", active))
	return *rule, nil
}

func (s *Service) CreateTicket(ctx context.Context, req domain.TicketCreateRequest) (domain.TicketView, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Requester = strings.TrimSpace(req.Requester)
	req.Body = strings.TrimSpace(req.Body)
	if req.Subject == "" || req.Requester == "" {
		return domain.TicketView{}, store.ErrInvalidRequest
	}

	now := time.Now().UTC()
	ticket := domain.Ticket{
		ID:        xid.New("tik"),
		StoreID:   req.StoreID,
		Subject:   req.Subject,
		Requester: req.Requester,
		OrderID:   strings.TrimSpace(req.OrderID),
		Status:    domain.TicketStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	first := domain.TicketMessage{
		ID:        xid.New("msg"),
		Author:    req.Requester,
		Body:      req.Body,
		CreatedAt: now,
	}

	saved, err := s.repo.CreateTicket(ctx, ticket, first)
	if err != nil {
		return domain.TicketView{}, err
	}

	s.logAudit(ctx, req.StoreID, "ticket_create", "ticket", saved.ID, req.Subject)
	return s.GetTicketView(ctx, saved.ID)
}

func (s *Service) GetTicketView(ctx context.Context, ticketID string) (domain.TicketView, error) {
	if ticketID == "" {
		return domain.TicketView{}, store.ErrInvalidRequest
	}
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.TicketView{}, err
	}
	messages, err := s.repo.ListTicketMessages(ctx, ticketID)
	if err != nil {
		return domain.TicketView{}, err
	}
	return domain.TicketView{Ticket: *ticket, Messages: messages}, nil
}

func (s *Service) ListTickets(ctx context.Context, storeID string, status string, limit int) ([]domain.Ticket, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListTickets(ctx, storeID, strings.ToLower(strings.TrimSpace(status)), limit)
}

func (s *Service) AddTicketMessage(ctx context.Context, ticketID string, req domain.TicketMessageRequest) (domain.TicketView, error) {
	req.Body = strings.TrimSpace(req.Body)
	if ticketID == "" || req.Body == "" {
		return domain.TicketView{}, store.ErrInvalidRequest
	}

	author := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		author = actor.Username
	}

	_, err := s.repo.AppendTicketMessage(ctx, domain.TicketMessage{
		ID:        xid.New("msg"),
		TicketID:  ticketID,
		Author:    author,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.TicketView{}, err
	}
	return s.GetTicketView(ctx, ticketID)
}

// ticketTransitions lists the allowed status moves. Closed tickets may be
// reopened but never jump straight to pending.
var ticketTransitions = map[string][]string{
	domain.TicketStatusOpen:    {domain.TicketStatusPending, domain.TicketStatusClosed},
	domain.TicketStatusPending: {domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusClosed:  {domain.TicketStatusOpen},
}

func (s *Service) SetTicketStatus(ctx context.Context, ticketID string, status string) (domain.TicketView, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if ticketID == "" || status == "" {
		return domain.TicketView{}, store.ErrInvalidRequest
	}

	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.TicketView{}, err
	}

	allowed := false
	for _, next := range ticketTransitions[ticket.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.TicketView{}, fmt.Errorf("%w: cannot move ticket from %s to %s", store.ErrInvalidRequest, ticket.Status, status)
	}

	if _, err := s.repo.UpdateTicketStatus(ctx, ticketID, status, time.Now().UTC()); err != nil {
		return domain.TicketView{}, err
	}

	s.logAudit(ctx, ticket.StoreID, "ticket_status", "ticket", ticketID, status)
	return s.GetTicketView(ctx, ticketID)
}

func (s *Service) LoadPosSession(ctx context.Context, registerID string) (domain.PosSession, bool, error) {
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return domain.PosSession{}, false, store.ErrInvalidRequest
	}
	loaded, found, err := s.sessions.Load(ctx, registerID)
	if err != nil || !found {
		return domain.PosSession{}, false, err
	}
	return *loaded, true, nil
}

func (s *Service) SavePosSession(ctx context.Context, sess domain.PosSession) (domain.PosSession, error) {
	sess.RegisterID = strings.TrimSpace(sess.RegisterID)
	if sess.RegisterID == "" {
		return domain.PosSession{}, store.ErrInvalidRequest
	}
	if sess.StoreID == "" {
		sess.StoreID = s.defaultStoreID
	}
	if actor, ok := ActorFromContext(ctx); ok && sess.Cashier == "" {
		sess.Cashier = actor.Username
	}
	sess.SavedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.PosSession{}, err
	}
	return sess, nil
}

func (s *Service) ClearPosSession(ctx context.Context, registerID string) error {
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return store.ErrInvalidRequest
	}
	return s.sessions.Clear(ctx, registerID)
}

// clearSessionCart detaches a consumed cart from the register session so a
// reload after checkout starts clean.
func (s *Service) clearSessionCart(ctx context.Context, registerID string, cartID string) {
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return
	}
	loaded, found, err := s.sessions.Load(ctx, registerID)
	if err != nil || !found || loaded.CartID != cartID {
		return
	}
	loaded.CartID = ""
	if err := s.sessions.Save(ctx, *loaded); err != nil {
		log.Printf("[service] WARN: failed to update pos session %s: %v", registerID, err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidRequest
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func sumPayments(payments []domain.PaymentSplit) int64 {
	var sum int64
	for _, p := range payments {
		sum += p.AmountCents
	}
	return sum
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
