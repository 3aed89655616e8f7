package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokomas/backend/internal/domain"
	"tokomas/backend/internal/store"
)

// Store is an in-memory Repository used for dev mode and tests. All reads and
// writes deep-copy records so callers never share mutable state with the
// store (orders stay snapshots even if a caller mutates its copy).
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	invoices map[string]domain.Invoice
	counters map[string]int64
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		invoices: make(map[string]domain.Invoice),
		counters: make(map[string]int64),
	}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// NewSeeded returns a store preloaded with a small jewellery catalog.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	seed := []domain.Product{
		{SKU: "CIN-EMAS-01", Name: "Cincin Emas 22K", Category: "ring", MetalType: "gold", StoneType: "cubic zirconia", WeightGrams: 4.2, StockQty: 12, UnitPrice: dec("5200000"), MakingCharges: dec("350000"), TaxRate: dec("3")},
		{SKU: "KAL-PERAK-01", Name: "Kalung Perak 925", Category: "necklace", MetalType: "silver", WeightGrams: 8.5, StockQty: 20, UnitPrice: dec("780000"), MakingCharges: dec("120000"), TaxRate: dec("3")},
		{SKU: "GEL-EMAS-01", Name: "Gelang Emas Putih", Category: "bracelet", MetalType: "white gold", WeightGrams: 6.1, StockQty: 8, UnitPrice: dec("4100000"), MakingCharges: dec("275000"), TaxRate: dec("3")},
		{SKU: "ANT-MUTIARA-01", Name: "Anting Mutiara", Category: "earring", MetalType: "gold plated", StoneType: "pearl", WeightGrams: 2.3, StockQty: 30, UnitPrice: dec("450000"), MakingCharges: dec("60000"), TaxRate: dec("3")},
		{SKU: "LIO-BERLIAN-01", Name: "Liontin Berlian", Category: "pendant", MetalType: "gold", StoneType: "diamond", WeightGrams: 1.8, StockQty: 5, UnitPrice: dec("9800000"), MakingCharges: dec("500000"), TaxRate: dec("3")},
	}
	for _, p := range seed {
		p.ID = uuid.NewString()
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func cloneProduct(p domain.Product) domain.Product {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	return out
}

func cloneItems(items []domain.OrderItem) []domain.OrderItem {
	if items == nil {
		return nil
	}
	return append([]domain.OrderItem(nil), items...)
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = cloneItems(o.Items)
	return out
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Items = cloneItems(inv.Items)
	return out
}

func matchesQuery(p domain.Product, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(p.SKU), q) || strings.Contains(strings.ToLower(p.Name), q)
}

func (s *Store) ListProducts(_ context.Context, q string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if matchesQuery(p, q) {
			products = append(products, cloneProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.SKU == product.SKU {
			return nil, store.ErrDuplicateSKU
		}
	}

	now := time.Now().UTC()
	product.ID = uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)

	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneProduct(p)
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for otherID, other := range s.products {
		if otherID != id && other.SKU == product.SKU {
			return nil, store.ErrDuplicateSKU
		}
	}

	product.ID = id
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = cloneProduct(product)

	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order, decrements []store.StockDecrement) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage decrements sequentially so repeated lines against the same
	// product draw down the same running stock; nothing is persisted until
	// every line clears.
	now := time.Now().UTC()
	staged := make(map[string]domain.Product, len(decrements))
	for _, d := range decrements {
		product, ok := staged[d.ProductID]
		if !ok {
			product, ok = s.products[d.ProductID]
			if !ok {
				return nil, fmt.Errorf("product %s: %w", d.ProductID, store.ErrNotFound)
			}
		}
		if product.StockQty < d.Qty {
			return nil, fmt.Errorf("%w for %s", store.ErrInsufficientStock, product.Name)
		}
		product.StockQty -= d.Qty
		product.UpdatedAt = now
		staged[d.ProductID] = product
	}
	for id, product := range staged {
		s.products[id] = product
	}

	order.ID = uuid.NewString()
	s.orders[order.ID] = cloneOrder(order)

	created := cloneOrder(s.orders[order.ID])
	return &created, nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneOrder(o)
	return &found, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice.ID = uuid.NewString()
	s.invoices[invoice.ID] = cloneInvoice(invoice)

	created := cloneInvoice(s.invoices[invoice.ID])
	return &created, nil
}

func (s *Store) ListInvoices(_ context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		invoices = append(invoices, cloneInvoice(inv))
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].IssueDate.After(invoices[j].IssueDate) })
	return invoices, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneInvoice(inv)
	return &found, nil
}

func (s *Store) NextSequence(_ context.Context, kind string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[kind]++
	return s.counters[kind], nil
}

func (s *Store) CollectionCounts(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int64{
		"product": int64(len(s.products)),
		"order":   int64(len(s.orders)),
		"invoice": int64(len(s.invoices)),
	}, nil
}
