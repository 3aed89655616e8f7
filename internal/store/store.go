package store

import (
	"context"
	"errors"

	"tokomas/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateSKU      = errors.New("sku already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockDecrement asks for a conditional stock subtraction: the store applies
// it only when the product's current stock covers Qty, otherwise the whole
// order creation fails with ErrInsufficientStock.
type StockDecrement struct {
	ProductID string
	Qty       int
}

// Repository is the document-store boundary. Records are keyed by opaque
// string ids assigned on insert; embedded customer/items travel with their
// owning record.
type Repository interface {
	ListProducts(ctx context.Context, q string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// CreateOrder persists the order and applies every stock decrement as one
	// atomic unit; either all of it commits or none of it does.
	CreateOrder(ctx context.Context, order domain.Order, decrements []StockDecrement) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)

	// NextSequence atomically increments and returns the counter for the
	// given sequence kind, starting at 1.
	NextSequence(ctx context.Context, kind string) (int64, error)

	// CollectionCounts reports record counts per collection for health checks.
	CollectionCounts(ctx context.Context) (map[string]int64, error)
}
