package store

import (
	"context"
	"errors"
	"time"

	"tokodesk/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrBackordersDisabled = errors.New("back-orders are disabled")
	ErrNoShippingMethods  = errors.New("no shipping methods available")
	ErrNoPaymentMethods   = errors.New("no payment methods")
)

type Repository interface {
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string, variationID string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.ProductCategory, error)

	CreateCart(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AppendCartLine(ctx context.Context, cartID string, line domain.CartLine) (*domain.Cart, error)
	UpdateCartLineQty(ctx context.Context, cartID string, lineID string, qty int) (*domain.Cart, error)
	DeleteCartLine(ctx context.Context, cartID string, lineID string) (*domain.Cart, error)
	DeleteCart(ctx context.Context, cartID string) error

	CreateDiscount(ctx context.Context, rule domain.DiscountRule) (*domain.DiscountRule, error)
	ListDiscounts(ctx context.Context) ([]domain.DiscountRule, error)
	GetDiscount(ctx context.Context, ruleID string) (*domain.DiscountRule, error)
	SetDiscountActive(ctx context.Context, ruleID string, active bool) (*domain.DiscountRule, error)

	ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	GetShippingMethod(ctx context.Context, methodID string) (*domain.ShippingMethod, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, storeID string, status string, limit int) ([]domain.Order, error)

	// DecrementStock reduces warehouse stock for the given country across a
	// whole order atomically, draining warehouses in map iteration order.
	// Products with no stock data are skipped; shortfalls fail with
	// ErrInsufficientStock or ErrBackordersDisabled.
	DecrementStock(ctx context.Context, country string, lines []domain.CartLine, products map[string]domain.Product) error

	// IncrementStock returns the given quantities to warehouse stock for the
	// country, restocking the first warehouse that carries the product.
	// Products with no stock data are skipped.
	IncrementStock(ctx context.Context, country string, lines []domain.CartLine) error

	CreateTicket(ctx context.Context, ticket domain.Ticket, first domain.TicketMessage) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, storeID string, status string, limit int) ([]domain.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, status string, at time.Time) (*domain.Ticket, error)
	AppendTicketMessage(ctx context.Context, message domain.TicketMessage) (*domain.TicketMessage, error)
	ListTicketMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
