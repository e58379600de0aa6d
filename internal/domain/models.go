package domain

import "time"

// Product is one sellable variant. A parent product with variations appears
// once per variation; VariationID is empty for simple products.
type Product struct {
	ID              string                    `json:"id"`
	VariationID     string                    `json:"variation_id,omitempty"`
	Title           string                    `json:"title"`
	SKU             string                    `json:"sku"`
	Category        string                    `json:"category"`
	Image           string                    `json:"image,omitempty"`
	RegularPrice    map[string]int64          `json:"regular_price"`
	PriceTiers      []PriceTier               `json:"price_tiers,omitempty"`
	StockData       map[string]map[string]int `json:"stock_data,omitempty"`
	AllowBackorders bool                      `json:"allow_backorders"`
	IsAffiliate     bool                      `json:"is_affiliate"`
	Active          bool                      `json:"active"`
}

// PriceTier sets the unit price once cumulative cart quantity reaches MinQty.
type PriceTier struct {
	Country        string `json:"country,omitempty"`
	MinQty         int    `json:"min_qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type ProductCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CartLine is one raw insertion event. The same (product, variation) pair may
// appear on several lines with different unit prices when a tier boundary was
// crossed between insertions.
type CartLine struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	VariationID    string    `json:"variation_id,omitempty"`
	Title          string    `json:"title"`
	SKU            string    `json:"sku"`
	Image          string    `json:"image,omitempty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	IsAffiliate    bool      `json:"is_affiliate"`
	AddedAt        time.Time `json:"added_at"`
}

// AggregatedLine is the display row for one (product, variation) pair.
// UnitPriceCents comes from the first raw line and is not recomputed from
// SubtotalCents, so qty*unit may differ from subtotal when prices varied.
type AggregatedLine struct {
	ProductID      string        `json:"product_id"`
	VariationID    string        `json:"variation_id,omitempty"`
	Title          string        `json:"title"`
	SKU            string        `json:"sku"`
	Image          string        `json:"image,omitempty"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	Quantity       int           `json:"quantity"`
	SubtotalCents  int64         `json:"subtotal_cents"`
	IsAffiliate    bool          `json:"is_affiliate"`
	Buckets        []PriceBucket `json:"buckets,omitempty"`
}

// PriceBucket renders "N x $X" breakdowns when one pair carries several
// unit prices. Display-only; totals always come from summed subtotals.
type PriceBucket struct {
	UnitPriceCents int64 `json:"unit_price_cents"`
	Quantity       int   `json:"quantity"`
}

type Cart struct {
	ID        string     `json:"id"`
	StoreID   string     `json:"store_id"`
	Country   string     `json:"country"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartCreateRequest struct {
	StoreID string `json:"store_id"`
	Country string `json:"country"`
}

type CartAddLineRequest struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

type CartUpdateLineRequest struct {
	Quantity int `json:"quantity"`
}

// CartView is the full cart response: raw lines, merged display rows and
// reconciled totals in one payload.
type CartView struct {
	Cart            Cart             `json:"cart"`
	AggregatedLines []AggregatedLine `json:"aggregated_lines"`
	Totals          CartTotals       `json:"totals"`
}

type CartTotals struct {
	SubtotalCents       int64  `json:"subtotal_cents"`
	ShippingCents       int64  `json:"shipping_cents"`
	DiscountCents       int64  `json:"discount_cents"`
	PointsRedeemedCents int64  `json:"points_redeemed_cents"`
	TotalCents          int64  `json:"total_cents"`
	DiscountRuleID      string `json:"discount_rule_id,omitempty"`
	ShippingMethodID    string `json:"shipping_method_id,omitempty"`
}

const (
	DiscountTypeFixed      = "fixed"
	DiscountTypePercentage = "percentage"
)

// DiscountRule is a back-office managed discount. Value is cents for fixed
// rules and whole percent (0-100) for percentage rules.
type DiscountRule struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Code             string    `json:"code,omitempty"`
	Type             string    `json:"type"`
	Value            int64     `json:"value"`
	MinSubtotalCents int64     `json:"min_subtotal_cents"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

type DiscountCreateRequest struct {
	Name             string `json:"name"`
	Code             string `json:"code,omitempty"`
	Type             string `json:"type"`
	Value            int64  `json:"value"`
	MinSubtotalCents int64  `json:"min_subtotal_cents"`
}

type DiscountToggleRequest struct {
	Active bool `json:"active"`
}

// ShippingTier is one cost band of a shipping method. MaxOrderCents == 0
// means no upper bound.
type ShippingTier struct {
	MinOrderCents int64 `json:"min_order_cents"`
	MaxOrderCents int64 `json:"max_order_cents"`
	CostCents     int64 `json:"cost_cents"`
}

type ShippingMethod struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Tiers  []ShippingTier `json:"tiers"`
	Active bool           `json:"active"`
}

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodNiftipay = "niftipay"
)

type PaymentMethod struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// PaymentSplit is one partial payment toward an order total. Network and
// Asset are required when MethodID is the niftipay provider.
type PaymentSplit struct {
	MethodID    string `json:"method_id"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
	Network     string `json:"network,omitempty"`
	Asset       string `json:"asset,omitempty"`
}

const (
	OrderStatusCompleted = "completed"
	OrderStatusParked    = "parked"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID                  string         `json:"id"`
	StoreID             string         `json:"store_id"`
	RegisterID          string         `json:"register_id,omitempty"`
	CartID              string         `json:"cart_id,omitempty"`
	Country             string         `json:"country"`
	Status              string         `json:"status"`
	IdempotencyKey      string         `json:"idempotency_key,omitempty"`
	Lines               []CartLine     `json:"lines"`
	Payments            []PaymentSplit `json:"payments,omitempty"`
	SubtotalCents       int64          `json:"subtotal_cents"`
	ShippingCents       int64          `json:"shipping_cents"`
	DiscountCents       int64          `json:"discount_cents"`
	PointsRedeemedCents int64          `json:"points_redeemed_cents"`
	TotalCents          int64          `json:"total_cents"`
	PaidCents           int64          `json:"paid_cents"`
	DiscountRuleID      string         `json:"discount_rule_id,omitempty"`
	ShippingMethodID    string         `json:"shipping_method_id,omitempty"`
	NiftipayInvoiceID   string         `json:"niftipay_invoice_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type OrderResponse struct {
	Order     Order `json:"order"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// OrderEditRequest replaces the editable parts of a parked order. Nil slices
// and nil pointers leave the corresponding part untouched.
type OrderEditRequest struct {
	Lines               []OrderEditLine `json:"lines,omitempty"`
	DiscountRuleID      *string         `json:"discount_rule_id,omitempty"`
	ShippingMethodID    *string         `json:"shipping_method_id,omitempty"`
	PointsRedeemedCents *int64          `json:"points_redeemed_cents,omitempty"`
}

type OrderEditLine struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

type OrderPaymentRequest struct {
	Payments []PaymentSplit `json:"payments"`
}

const (
	CheckoutActionComplete = "complete"
	CheckoutActionPark     = "park"
)

type CheckoutRequest struct {
	CartID              string         `json:"cart_id"`
	RegisterID          string         `json:"register_id"`
	Action              string         `json:"action"`
	IdempotencyKey      string         `json:"idempotency_key"`
	Payments            []PaymentSplit `json:"payments"`
	DiscountRuleID      string         `json:"discount_rule_id,omitempty"`
	ShippingMethodID    string         `json:"shipping_method_id,omitempty"`
	PointsRedeemedCents int64          `json:"points_redeemed_cents"`
}

// PosSession survives register restarts; it replaces the ad hoc browser
// storage keys of the old register UI.
type PosSession struct {
	RegisterID string    `json:"register_id"`
	StoreID    string    `json:"store_id"`
	OutletID   string    `json:"outlet_id,omitempty"`
	CartID     string    `json:"cart_id,omitempty"`
	Cashier    string    `json:"cashier,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

const (
	TicketStatusOpen    = "open"
	TicketStatusPending = "pending"
	TicketStatusClosed  = "closed"
)

type Ticket struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	Subject   string    `json:"subject"`
	Requester string    `json:"requester"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TicketMessage struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type TicketCreateRequest struct {
	StoreID   string `json:"store_id"`
	Subject   string `json:"subject"`
	Requester string `json:"requester"`
	OrderID   string `json:"order_id,omitempty"`
	Body      string `json:"body"`
}

type TicketMessageRequest struct {
	Body string `json:"body"`
}

type TicketStatusRequest struct {
	Status string `json:"status"`
}

type TicketView struct {
	Ticket   Ticket          `json:"ticket"`
	Messages []TicketMessage `json:"messages"`
}

// NiftipayNetwork is one chain/asset combination the provider accepts for
// the configured tenant.
type NiftipayNetwork struct {
	Network string `json:"network"`
	Asset   string `json:"asset"`
	Label   string `json:"label,omitempty"`
}

type NiftipayInvoice struct {
	ID          string `json:"id"`
	Network     string `json:"network"`
	Asset       string `json:"asset"`
	AmountCents int64  `json:"amount_cents"`
	Address     string `json:"address,omitempty"`
	Status      string `json:"status"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
