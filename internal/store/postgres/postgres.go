package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokodesk/backend/internal/domain"
	"tokodesk/backend/internal/store"
	"tokodesk/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	query := `
		SELECT id, variation_id, title, sku, category, image,
		       regular_price, price_tiers, stock_data,
		       allow_backorders, is_affiliate, active
		FROM products
		WHERE active = true
	`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY category, title, variation_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string, variationID string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, variation_id, title, sku, category, image,
		       regular_price, price_tiers, stock_data,
		       allow_backorders, is_affiliate, active
		FROM products
		WHERE id = $1 AND variation_id = $2
	`, productID, variationID)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Title == "" {
		return nil, store.ErrInvalidRequest
	}

	regularPrice, err := json.Marshal(product.RegularPrice)
	if err != nil {
		return nil, err
	}
	priceTiers, err := json.Marshal(product.PriceTiers)
	if err != nil {
		return nil, err
	}
	stockData, err := json.Marshal(product.StockData)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, variation_id, title, sku, category, image,
			regular_price, price_tiers, stock_data,
			allow_backorders, is_affiliate, active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
		ON CONFLICT (id, variation_id) DO UPDATE SET
			title = EXCLUDED.title,
			sku = EXCLUDED.sku,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			regular_price = EXCLUDED.regular_price,
			price_tiers = EXCLUDED.price_tiers,
			stock_data = EXCLUDED.stock_data,
			allow_backorders = EXCLUDED.allow_backorders,
			is_affiliate = EXCLUDED.is_affiliate,
			active = EXCLUDED.active,
			updated_at = now()
	`, product.ID, product.VariationID, product.Title, product.SKU, product.Category, product.Image,
		regularPrice, priceTiers, stockData,
		product.AllowBackorders, product.IsAffiliate, product.Active)
	if err != nil {
		return nil, err
	}

	saved := product
	return &saved, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.ProductCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug
		FROM product_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ProductCategory, 0, 16)
	for rows.Next() {
		var c domain.ProductCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateCart(ctx context.Context, cart domain.Cart) (*domain.Cart, error) {
	if cart.ID == "" {
		cart.ID = xid.New("cart")
	}
	now := time.Now().UTC()
	cart.CreatedAt = now
	cart.UpdatedAt = now
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}

	lines, err := json.Marshal(cart.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carts (id, store_id, country, lines, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, cart.ID, cart.StoreID, cart.Country, lines, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := cart
	return &created, nil
}

func (s *Store) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var cart domain.Cart
	var lines []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, country, lines, created_at, updated_at
		FROM carts
		WHERE id = $1
	`, cartID).Scan(&cart.ID, &cart.StoreID, &cart.Country, &lines, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(lines, &cart.Lines); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) AppendCartLine(ctx context.Context, cartID string, line domain.CartLine) (*domain.Cart, error) {
	return s.mutateCartLines(ctx, cartID, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		return append(lines, line), nil
	})
}

func (s *Store) UpdateCartLineQty(ctx context.Context, cartID string, lineID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, store.ErrInvalidRequest
	}
	return s.mutateCartLines(ctx, cartID, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		for i := range lines {
			if lines[i].ID != lineID {
				continue
			}
			lines[i].Quantity = qty
			lines[i].SubtotalCents = int64(qty) * lines[i].UnitPriceCents
			return lines, nil
		}
		return nil, store.ErrNotFound
	})
}

func (s *Store) DeleteCartLine(ctx context.Context, cartID string, lineID string) (*domain.Cart, error) {
	return s.mutateCartLines(ctx, cartID, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		kept := make([]domain.CartLine, 0, len(lines))
		found := false
		for _, line := range lines {
			if line.ID == lineID {
				found = true
				continue
			}
			kept = append(kept, line)
		}
		if !found {
			return nil, store.ErrNotFound
		}
		return kept, nil
	})
}

// mutateCartLines runs a read-modify-write cycle over a cart's line set
// inside a serializable transaction, as concurrent registers may touch the
// same cart.
func (s *Store) mutateCartLines(ctx context.Context, cartID string, mutate func([]domain.CartLine) ([]domain.CartLine, error)) (*domain.Cart, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cart domain.Cart
	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT id, store_id, country, lines, created_at
		FROM carts
		WHERE id = $1
		FOR UPDATE
	`, cartID).Scan(&cart.ID, &cart.StoreID, &cart.Country, &raw, &cart.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &cart.Lines); err != nil {
		return nil, err
	}

	mutated, err := mutate(cart.Lines)
	if err != nil {
		return nil, err
	}
	cart.Lines = mutated
	cart.UpdatedAt = time.Now().UTC()

	encoded, err := json.Marshal(cart.Lines)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE carts SET lines = $2, updated_at = $3 WHERE id = $1
	`, cartID, encoded, cart.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) DeleteCart(ctx context.Context, cartID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDiscount(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.ID == "" {
		rule.ID = xid.New("disc")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_rules (id, name, code, type, value, min_subtotal_cents, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rule.ID, rule.Name, nullIfEmpty(rule.Code), rule.Type, rule.Value, rule.MinSubtotalCents, rule.Active, rule.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := rule
	return &created, nil
}

func (s *Store) ListDiscounts(ctx context.Context) ([]domain.DiscountRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(code, ''), type, value, min_subtotal_cents, active, created_at
		FROM discount_rules
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.DiscountRule, 0, 32)
	for rows.Next() {
		var rule domain.DiscountRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Code, &rule.Type, &rule.Value, &rule.MinSubtotalCents, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rule.CreatedAt = rule.CreatedAt.UTC()
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) GetDiscount(ctx context.Context, ruleID string) (*domain.DiscountRule, error) {
	var rule domain.DiscountRule
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(code, ''), type, value, min_subtotal_cents, active, created_at
		FROM discount_rules
		WHERE id = $1
	`, ruleID).Scan(&rule.ID, &rule.Name, &rule.Code, &rule.Type, &rule.Value, &rule.MinSubtotalCents, &rule.Active, &rule.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return &rule, nil
}

func (s *Store) SetDiscountActive(ctx context.Context, ruleID string, active bool) (*domain.DiscountRule, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discount_rules SET active = $2 WHERE id = $1
	`, ruleID, active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetDiscount(ctx, ruleID)
}

func (s *Store) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tiers, active
		FROM shipping_methods
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]domain.ShippingMethod, 0, 8)
	for rows.Next() {
		var method domain.ShippingMethod
		var tiers []byte
		if err := rows.Scan(&method.ID, &method.Name, &tiers, &method.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tiers, &method.Tiers); err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

func (s *Store) GetShippingMethod(ctx context.Context, methodID string) (*domain.ShippingMethod, error) {
	var method domain.ShippingMethod
	var tiers []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, tiers, active
		FROM shipping_methods
		WHERE id = $1
	`, methodID).Scan(&method.ID, &method.Name, &tiers, &method.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(tiers, &method.Tiers); err != nil {
		return nil, err
	}
	return &method, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active
		FROM payment_methods
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]domain.PaymentMethod, 0, 8)
	for rows.Next() {
		var method domain.PaymentMethod
		if err := rows.Scan(&method.ID, &method.Name, &method.Active); err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New("order")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}
	payments, err := json.Marshal(order.Payments)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, store_id, register_id, cart_id, country, status, idempotency_key,
			lines, payments,
			subtotal_cents, shipping_cents, discount_cents, points_redeemed_cents,
			total_cents, paid_cents,
			discount_rule_id, shipping_method_id, niftipay_invoice_id,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, order.ID, order.StoreID, nullIfEmpty(order.RegisterID), nullIfEmpty(order.CartID),
		order.Country, order.Status, nullIfEmpty(order.IdempotencyKey),
		lines, payments,
		order.SubtotalCents, order.ShippingCents, order.DiscountCents, order.PointsRedeemedCents,
		order.TotalCents, order.PaidCents,
		nullIfEmpty(order.DiscountRuleID), nullIfEmpty(order.ShippingMethodID), nullIfEmpty(order.NiftipayInvoiceID),
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		// A replayed idempotency key lands here when two submissions race past
		// the service-level lookup.
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.queryOneOrder(ctx, `WHERE id = $1`, orderID)
}

func (s *Store) FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	return s.queryOneOrder(ctx, `WHERE idempotency_key = $1`, key)
}

func (s *Store) queryOneOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, COALESCE(register_id, ''), COALESCE(cart_id, ''), country, status,
		       COALESCE(idempotency_key, ''), lines, payments,
		       subtotal_cents, shipping_cents, discount_cents, points_redeemed_cents,
		       total_cents, paid_cents,
		       COALESCE(discount_rule_id, ''), COALESCE(shipping_method_id, ''), COALESCE(niftipay_invoice_id, ''),
		       created_at, updated_at
		FROM orders
	`+where, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	order.UpdatedAt = time.Now().UTC()

	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}
	payments, err := json.Marshal(order.Payments)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $2, lines = $3, payments = $4,
			subtotal_cents = $5, shipping_cents = $6, discount_cents = $7,
			points_redeemed_cents = $8, total_cents = $9, paid_cents = $10,
			discount_rule_id = $11, shipping_method_id = $12, niftipay_invoice_id = $13,
			updated_at = $14
		WHERE id = $1
	`, order.ID, order.Status, lines, payments,
		order.SubtotalCents, order.ShippingCents, order.DiscountCents,
		order.PointsRedeemedCents, order.TotalCents, order.PaidCents,
		nullIfEmpty(order.DiscountRuleID), nullIfEmpty(order.ShippingMethodID), nullIfEmpty(order.NiftipayInvoiceID),
		order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) ListOrders(ctx context.Context, storeID string, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT id, store_id, COALESCE(register_id, ''), COALESCE(cart_id, ''), country, status,
		       COALESCE(idempotency_key, ''), lines, payments,
		       subtotal_cents, shipping_cents, discount_cents, points_redeemed_cents,
		       total_cents, paid_cents,
		       COALESCE(discount_rule_id, ''), COALESCE(shipping_method_id, ''), COALESCE(niftipay_invoice_id, ''),
		       created_at, updated_at
		FROM orders
		WHERE store_id = $1
	`
	args := []any{storeID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + limitPlaceholder(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// DecrementStock locks the touched product rows and applies the whole
// order's quantities, draining warehouses in map order. Backordered
// remainders go negative on the first warehouse so the deficit stays
// visible.
func (s *Store) DecrementStock(ctx context.Context, country string, lines []domain.CartLine, products map[string]domain.Product) error {
	needed := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		key := domain.ProductKey(line.ProductID, line.VariationID)
		if _, seen := needed[key]; !seen {
			order = append(order, key)
		}
		needed[key] += line.Quantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	type lockedProduct struct {
		productID       string
		variationID     string
		stockData       map[string]map[string]int
		allowBackorders bool
	}

	locked := make(map[string]lockedProduct, len(needed))
	for _, key := range order {
		hint, ok := products[key]
		if !ok {
			return store.ErrInvalidRequest
		}

		var raw []byte
		var allowBackorders bool
		err := tx.QueryRowContext(ctx, `
			SELECT stock_data, allow_backorders
			FROM products
			WHERE id = $1 AND variation_id = $2
			FOR UPDATE
		`, hint.ID, hint.VariationID).Scan(&raw, &allowBackorders)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrInvalidRequest
			}
			return err
		}

		var stockData map[string]map[string]int
		if err := json.Unmarshal(raw, &stockData); err != nil {
			return err
		}
		locked[key] = lockedProduct{
			productID:       hint.ID,
			variationID:     hint.VariationID,
			stockData:       stockData,
			allowBackorders: allowBackorders,
		}
	}

	// Validate the whole order before mutating anything.
	for key, qty := range needed {
		product := locked[key]
		if len(product.stockData) == 0 {
			continue
		}
		available := 0
		for _, byCountry := range product.stockData {
			available += byCountry[country]
		}
		if available < qty {
			if product.allowBackorders {
				continue
			}
			if available == 0 {
				return store.ErrBackordersDisabled
			}
			return store.ErrInsufficientStock
		}
	}

	for key, qty := range needed {
		product := locked[key]
		if len(product.stockData) == 0 {
			continue
		}
		remaining := qty
		for warehouse, byCountry := range product.stockData {
			if remaining == 0 {
				break
			}
			have := byCountry[country]
			if have == 0 {
				continue
			}
			take := have
			if take > remaining {
				take = remaining
			}
			byCountry[country] = have - take
			product.stockData[warehouse] = byCountry
			remaining -= take
		}
		if remaining > 0 && product.allowBackorders {
			for warehouse, byCountry := range product.stockData {
				byCountry[country] -= remaining
				product.stockData[warehouse] = byCountry
				break
			}
		}

		encoded, err := json.Marshal(product.stockData)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock_data = $3, updated_at = now()
			WHERE id = $1 AND variation_id = $2
		`, product.productID, product.variationID, encoded)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// IncrementStock returns quantities to the first warehouse that carries the
// product, covering any backorder deficit before stock goes positive again.
func (s *Store) IncrementStock(ctx context.Context, country string, lines []domain.CartLine) error {
	returned := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		key := domain.ProductKey(line.ProductID, line.VariationID)
		if _, seen := returned[key]; !seen {
			order = append(order, key)
		}
		returned[key] += line.Quantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range order {
		productID, variationID := domain.SplitProductKey(key)

		var raw []byte
		err := tx.QueryRowContext(ctx, `
			SELECT stock_data
			FROM products
			WHERE id = $1 AND variation_id = $2
			FOR UPDATE
		`, productID, variationID).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}

		var stockData map[string]map[string]int
		if err := json.Unmarshal(raw, &stockData); err != nil {
			return err
		}
		if len(stockData) == 0 {
			continue
		}
		for warehouse, byCountry := range stockData {
			byCountry[country] += returned[key]
			stockData[warehouse] = byCountry
			break
		}

		encoded, err := json.Marshal(stockData)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock_data = $3, updated_at = now()
			WHERE id = $1 AND variation_id = $2
		`, productID, variationID, encoded)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket, first domain.TicketMessage) (*domain.Ticket, error) {
	if ticket.ID == "" {
		ticket.ID = xid.New("tik")
	}
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = now
	}
	if first.ID == "" {
		first.ID = xid.New("msg")
	}
	first.TicketID = ticket.ID
	if first.CreatedAt.IsZero() {
		first.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (id, store_id, subject, requester, order_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ticket.ID, ticket.StoreID, ticket.Subject, ticket.Requester, nullIfEmpty(ticket.OrderID),
		ticket.Status, ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, author, body, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, first.ID, first.TicketID, first.Author, first.Body, first.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := ticket
	return &created, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, subject, requester, COALESCE(order_id, ''), status, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`, ticketID).Scan(&ticket.ID, &ticket.StoreID, &ticket.Subject, &ticket.Requester,
		&ticket.OrderID, &ticket.Status, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (s *Store) ListTickets(ctx context.Context, storeID string, status string, limit int) ([]domain.Ticket, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, store_id, subject, requester, COALESCE(order_id, ''), status, created_at, updated_at
		FROM tickets
		WHERE store_id = $1
	`
	args := []any{storeID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC LIMIT ` + limitPlaceholder(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0, limit)
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(&ticket.ID, &ticket.StoreID, &ticket.Subject, &ticket.Requester,
			&ticket.OrderID, &ticket.Status, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, ticketID string, status string, at time.Time) (*domain.Ticket, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1
	`, ticketID, status, at.UTC())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetTicket(ctx, ticketID)
}

func (s *Store) AppendTicketMessage(ctx context.Context, message domain.TicketMessage) (*domain.TicketMessage, error) {
	if message.ID == "" {
		message.ID = xid.New("msg")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, author, body, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`, message.ID, message.TicketID, message.Author, message.Body, message.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tickets SET updated_at = $2 WHERE id = $1
	`, message.TicketID, message.CreatedAt)
	if err != nil {
		return nil, err
	}

	saved := message
	return &saved, nil
}

func (s *Store) ListTicketMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, author, body, created_at
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.TicketMessage, 0, 16)
	for rows.Next() {
		var message domain.TicketMessage
		if err := rows.Scan(&message.ID, &message.TicketID, &message.Author, &message.Body, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var regularPrice, priceTiers, stockData []byte
	err := row.Scan(&p.ID, &p.VariationID, &p.Title, &p.SKU, &p.Category, &p.Image,
		&regularPrice, &priceTiers, &stockData,
		&p.AllowBackorders, &p.IsAffiliate, &p.Active)
	if err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(regularPrice, &p.RegularPrice); err != nil {
		return domain.Product{}, err
	}
	if len(priceTiers) > 0 {
		if err := json.Unmarshal(priceTiers, &p.PriceTiers); err != nil {
			return domain.Product{}, err
		}
	}
	if len(stockData) > 0 {
		if err := json.Unmarshal(stockData, &p.StockData); err != nil {
			return domain.Product{}, err
		}
	}
	return p, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var lines, payments []byte
	err := row.Scan(&order.ID, &order.StoreID, &order.RegisterID, &order.CartID, &order.Country, &order.Status,
		&order.IdempotencyKey, &lines, &payments,
		&order.SubtotalCents, &order.ShippingCents, &order.DiscountCents, &order.PointsRedeemedCents,
		&order.TotalCents, &order.PaidCents,
		&order.DiscountRuleID, &order.ShippingMethodID, &order.NiftipayInvoiceID,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return domain.Order{}, err
	}
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &order.Payments); err != nil {
			return domain.Order{}, err
		}
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func limitPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
