package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokodesk/backend/internal/domain"
	"tokodesk/backend/internal/store"
	"tokodesk/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	categories       []domain.ProductCategory
	cartsByID        map[string]domain.Cart
	discountsByID    map[string]domain.DiscountRule
	shippingMethods  map[string]domain.ShippingMethod
	paymentMethods   []domain.PaymentMethod
	ordersByID       map[string]domain.Order
	ordersByIdem     map[string]string
	ticketsByID      map[string]domain.Ticket
	messagesByTicket map[string][]domain.TicketMessage
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD, SEED_AGENT_PASSWORD and
// SEED_CASHIER_PASSWORD; hardcoded dev defaults apply when unset, with a
// warning. Production deployments use PostgreSQL and never hit this path.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	agentPwd := envOr("SEED_AGENT_PASSWORD", "agent123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_*_PASSWORD variables to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"agent", agentPwd, "agent"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{
			ID: "prod-tshirt", VariationID: "var-tshirt-m", Title: "Logo T-Shirt (M)", SKU: "TSHIRT-M",
			Category: "apparel",
			RegularPrice: map[string]int64{"ID": 120000, "SG": 180000},
			PriceTiers: []domain.PriceTier{
				{MinQty: 5, UnitPriceCents: 100000},
				{MinQty: 10, UnitPriceCents: 90000},
			},
			StockData: map[string]map[string]int{
				"jakarta":  {"ID": 8, "SG": 0},
				"surabaya": {"ID": 4, "SG": 2},
			},
			Active: true,
		},
		{
			ID: "prod-tshirt", VariationID: "var-tshirt-l", Title: "Logo T-Shirt (L)", SKU: "TSHIRT-L",
			Category: "apparel",
			RegularPrice: map[string]int64{"ID": 120000, "SG": 180000},
			StockData: map[string]map[string]int{
				"jakarta": {"ID": 5},
			},
			Active: true,
		},
		{
			ID: "prod-mug", Title: "Ceramic Mug", SKU: "MUG-01",
			Category:     "homeware",
			RegularPrice: map[string]int64{"ID": 65000, "SG": 95000},
			StockData: map[string]map[string]int{
				"jakarta": {"ID": 0},
			},
			AllowBackorders: true,
			Active:          true,
		},
		{
			ID: "prod-giftcard", Title: "Digital Gift Card", SKU: "GIFT-100",
			Category:     "digital",
			RegularPrice: map[string]int64{"ID": 100000, "SG": 100000},
			Active:       true,
		},
		{
			ID: "prod-sticker", Title: "Partner Sticker Pack", SKU: "STICK-01",
			Category:     "promo",
			RegularPrice: map[string]int64{"ID": 15000},
			IsAffiliate:  true,
			Active:       true,
		},
	}

	categories := []domain.ProductCategory{
		{ID: "cat-apparel", Name: "Apparel", Slug: "apparel"},
		{ID: "cat-homeware", Name: "Homeware", Slug: "homeware"},
		{ID: "cat-digital", Name: "Digital", Slug: "digital"},
		{ID: "cat-promo", Name: "Promo", Slug: "promo"},
	}

	shippingMethods := map[string]domain.ShippingMethod{
		"ship-regular": {
			ID: "ship-regular", Name: "Regular Courier", Active: true,
			Tiers: []domain.ShippingTier{
				{MinOrderCents: 0, MaxOrderCents: 250000, CostCents: 20000},
				{MinOrderCents: 250000, MaxOrderCents: 0, CostCents: 0},
			},
		},
		"ship-express": {
			ID: "ship-express", Name: "Express Courier", Active: true,
			Tiers: []domain.ShippingTier{
				{MinOrderCents: 0, MaxOrderCents: 0, CostCents: 45000},
			},
		},
	}

	paymentMethods := []domain.PaymentMethod{
		{ID: domain.PaymentMethodCash, Name: "Cash", Active: true},
		{ID: domain.PaymentMethodCard, Name: "Card", Active: true},
		{ID: domain.PaymentMethodNiftipay, Name: "Niftipay (crypto)", Active: true},
	}

	now := time.Now().UTC()
	discounts := map[string]domain.DiscountRule{
		"disc-welcome": {
			ID: "disc-welcome", Name: "Welcome 10%", Code: "WELCOME10",
			Type: domain.DiscountTypePercentage, Value: 10, Active: true, CreatedAt: now,
		},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[domain.ProductKey(p.ID, p.VariationID)] = p
	}

	return &Store{
		products:         productMap,
		categories:       categories,
		cartsByID:        make(map[string]domain.Cart),
		discountsByID:    discounts,
		shippingMethods:  shippingMethods,
		paymentMethods:   paymentMethods,
		ordersByID:       make(map[string]domain.Order),
		ordersByIdem:     make(map[string]string),
		ticketsByID:      make(map[string]domain.Ticket),
		messagesByTicket: make(map[string][]domain.TicketMessage),
		usersByUsername:  seedUsers(),
	}
}

// copyProduct clones the maps and slices hanging off a product so callers
// never share state with the store. DecrementStock mutates StockData in
// place under the lock, so a shallow copy would still race.
func copyProduct(p domain.Product) domain.Product {
	copied := p
	if p.RegularPrice != nil {
		copied.RegularPrice = make(map[string]int64, len(p.RegularPrice))
		for country, price := range p.RegularPrice {
			copied.RegularPrice[country] = price
		}
	}
	if p.PriceTiers != nil {
		copied.PriceTiers = append([]domain.PriceTier(nil), p.PriceTiers...)
	}
	if p.StockData != nil {
		copied.StockData = make(map[string]map[string]int, len(p.StockData))
		for warehouse, byCountry := range p.StockData {
			cloned := make(map[string]int, len(byCountry))
			for country, qty := range byCountry {
				cloned[country] = qty
			}
			copied.StockData[warehouse] = cloned
		}
	}
	return copied
}

func (s *Store) ListProducts(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		products = append(products, copyProduct(p))
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].ID == products[j].ID {
			return products[i].VariationID < products[j].VariationID
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, productID string, variationID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[domain.ProductKey(productID, variationID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := copyProduct(p)
	return &copied, nil
}

func (s *Store) UpsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Title == "" || product.SKU == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[domain.ProductKey(product.ID, product.VariationID)] = copyProduct(product)
	saved := copyProduct(product)
	return &saved, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.ProductCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.ProductCategory, len(s.categories))
	copy(categories, s.categories)
	return categories, nil
}

func (s *Store) CreateCart(_ context.Context, cart domain.Cart) (*domain.Cart, error) {
	if cart.ID == "" {
		cart.ID = xid.New("cart")
	}
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartsByID[cart.ID] = cart
	saved := cart
	return &saved, nil
}

func (s *Store) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.cartsByID[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &copied, nil
}

func (s *Store) AppendCartLine(_ context.Context, cartID string, line domain.CartLine) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.cartsByID[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cart.Lines = append(cart.Lines, line)
	cart.UpdatedAt = time.Now().UTC()
	s.cartsByID[cartID] = cart

	copied := cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &copied, nil
}

func (s *Store) UpdateCartLineQty(_ context.Context, cartID string, lineID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.cartsByID[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}

	found := false
	for i := range cart.Lines {
		if cart.Lines[i].ID != lineID {
			continue
		}
		cart.Lines[i].Quantity = qty
		cart.Lines[i].SubtotalCents = int64(qty) * cart.Lines[i].UnitPriceCents
		found = true
		break
	}
	if !found {
		return nil, store.ErrNotFound
	}
	cart.UpdatedAt = time.Now().UTC()
	s.cartsByID[cartID] = cart

	copied := cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &copied, nil
}

func (s *Store) DeleteCartLine(_ context.Context, cartID string, lineID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.cartsByID[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}

	kept := make([]domain.CartLine, 0, len(cart.Lines))
	found := false
	for _, line := range cart.Lines {
		if line.ID == lineID {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	cart.Lines = kept
	cart.UpdatedAt = time.Now().UTC()
	s.cartsByID[cartID] = cart

	copied := cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &copied, nil
}

func (s *Store) DeleteCart(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cartsByID[cartID]; !ok {
		return store.ErrNotFound
	}
	delete(s.cartsByID, cartID)
	return nil
}

func (s *Store) CreateDiscount(_ context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error) {
	if rule.ID == "" {
		rule.ID = xid.New("disc")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.discountsByID[rule.ID] = rule
	saved := rule
	return &saved, nil
}

func (s *Store) ListDiscounts(_ context.Context) ([]domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.DiscountRule, 0, len(s.discountsByID))
	for _, rule := range s.discountsByID {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})
	return rules, nil
}

func (s *Store) GetDiscount(_ context.Context, ruleID string) (*domain.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.discountsByID[ruleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := rule
	return &copied, nil
}

func (s *Store) SetDiscountActive(_ context.Context, ruleID string, active bool) (*domain.DiscountRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.discountsByID[ruleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	rule.Active = active
	s.discountsByID[ruleID] = rule
	copied := rule
	return &copied, nil
}

func (s *Store) ListShippingMethods(_ context.Context) ([]domain.ShippingMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]domain.ShippingMethod, 0, len(s.shippingMethods))
	for _, m := range s.shippingMethods {
		if m.Active {
			methods = append(methods, m)
		}
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].ID < methods[j].ID })
	return methods, nil
}

func (s *Store) GetShippingMethod(_ context.Context, methodID string) (*domain.ShippingMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	method, ok := s.shippingMethods[methodID]
	if !ok || !method.Active {
		return nil, store.ErrNotFound
	}
	copied := method
	return &copied, nil
}

func (s *Store) ListPaymentMethods(_ context.Context) ([]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]domain.PaymentMethod, 0, len(s.paymentMethods))
	for _, m := range s.paymentMethods {
		if m.Active {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New("order")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.IdempotencyKey != "" {
		if _, exists := s.ordersByIdem[order.IdempotencyKey]; exists {
			return nil, store.ErrInvalidRequest
		}
		s.ordersByIdem[order.IdempotencyKey] = order.ID
	}
	s.ordersByID[order.ID] = order
	saved := order
	return &saved, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOrder(order), nil
}

func (s *Store) FindOrderByIdempotency(_ context.Context, key string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.ordersByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOrder(order), nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ordersByID[order.ID]; !ok {
		return nil, store.ErrNotFound
	}
	order.UpdatedAt = time.Now().UTC()
	s.ordersByID[order.ID] = order
	return copyOrder(order), nil
}

func (s *Store) ListOrders(_ context.Context, storeID string, status string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, 32)
	for _, order := range s.ordersByID {
		if storeID != "" && order.StoreID != storeID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, *copyOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func copyOrder(order domain.Order) *domain.Order {
	copied := order
	copied.Lines = append([]domain.CartLine(nil), order.Lines...)
	copied.Payments = append([]domain.PaymentSplit(nil), order.Payments...)
	return &copied
}

func (s *Store) DecrementStock(_ context.Context, country string, lines []domain.CartLine, products map[string]domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole order before mutating anything.
	needed := make(map[string]int, len(lines))
	for _, line := range lines {
		needed[domain.ProductKey(line.ProductID, line.VariationID)] += line.Quantity
	}

	for key, qty := range needed {
		product, ok := s.products[key]
		if !ok {
			if _, hinted := products[key]; !hinted {
				return store.ErrInvalidRequest
			}
			continue
		}
		if len(product.StockData) == 0 {
			continue
		}
		available := 0
		for _, byCountry := range product.StockData {
			available += byCountry[country]
		}
		if available < qty {
			if product.AllowBackorders {
				continue
			}
			if available == 0 {
				return store.ErrBackordersDisabled
			}
			return store.ErrInsufficientStock
		}
	}

	for key, qty := range needed {
		product, ok := s.products[key]
		if !ok || len(product.StockData) == 0 {
			continue
		}
		remaining := qty
		for warehouse, byCountry := range product.StockData {
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
			product.StockData[warehouse] = byCountry
			remaining -= take
		}
		// Backordered remainder goes negative on the first warehouse.
		if remaining > 0 && product.AllowBackorders {
			for warehouse, byCountry := range product.StockData {
				byCountry[country] -= remaining
				product.StockData[warehouse] = byCountry
				break
			}
		}
		s.products[key] = product
	}
	return nil
}

func (s *Store) IncrementStock(_ context.Context, country string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	returned := make(map[string]int, len(lines))
	for _, line := range lines {
		returned[domain.ProductKey(line.ProductID, line.VariationID)] += line.Quantity
	}

	for key, qty := range returned {
		product, ok := s.products[key]
		if !ok || len(product.StockData) == 0 {
			continue
		}
		// Restock the first warehouse, paying off any backorder deficit first.
		for warehouse, byCountry := range product.StockData {
			byCountry[country] += qty
			product.StockData[warehouse] = byCountry
			break
		}
		s.products[key] = product
	}
	return nil
}

func (s *Store) CreateTicket(_ context.Context, ticket domain.Ticket, first domain.TicketMessage) (*domain.Ticket, error) {
	if ticket.ID == "" {
		ticket.ID = xid.New("tik")
	}
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	first.TicketID = ticket.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticketsByID[ticket.ID] = ticket
	if strings.TrimSpace(first.Body) != "" {
		s.messagesByTicket[ticket.ID] = append(s.messagesByTicket[ticket.ID], first)
	}
	saved := ticket
	return &saved, nil
}

func (s *Store) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.ticketsByID[ticketID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := ticket
	return &copied, nil
}

func (s *Store) ListTickets(_ context.Context, storeID string, status string, limit int) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]domain.Ticket, 0, len(s.ticketsByID))
	for _, ticket := range s.ticketsByID {
		if storeID != "" && ticket.StoreID != storeID {
			continue
		}
		if status != "" && ticket.Status != status {
			continue
		}
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt)
	})
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (s *Store) UpdateTicketStatus(_ context.Context, ticketID string, status string, at time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.ticketsByID[ticketID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ticket.Status = status
	ticket.UpdatedAt = at
	s.ticketsByID[ticketID] = ticket
	copied := ticket
	return &copied, nil
}

func (s *Store) AppendTicketMessage(_ context.Context, message domain.TicketMessage) (*domain.TicketMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.ticketsByID[message.TicketID]
	if !ok {
		return nil, store.ErrNotFound
	}

	// Merge by id: a duplicate append (poll overlap, retry) is a no-op.
	for _, existing := range s.messagesByTicket[message.TicketID] {
		if existing.ID == message.ID {
			copied := existing
			return &copied, nil
		}
	}

	s.messagesByTicket[message.TicketID] = append(s.messagesByTicket[message.TicketID], message)
	ticket.UpdatedAt = message.CreatedAt
	s.ticketsByID[message.TicketID] = ticket
	saved := message
	return &saved, nil
}

func (s *Store) ListTicketMessages(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.ticketsByID[ticketID]; !ok {
		return nil, store.ErrNotFound
	}
	messages := append([]domain.TicketMessage(nil), s.messagesByTicket[ticketID]...)
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidRequest
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
