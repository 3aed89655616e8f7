package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tokomas/backend/internal/cache"
	"tokomas/backend/internal/domain"
	"tokomas/backend/internal/pricing"
	"tokomas/backend/internal/store"
)

type Service struct {
	repo         store.Repository
	productCache cache.ProductCache
	cacheTTL     time.Duration
}

func New(repo store.Repository, productCache cache.ProductCache, cacheTTL time.Duration) *Service {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		repo:         repo,
		productCache: productCache,
		cacheTTL:     cacheTTL,
	}
}

// ListProducts serves the unfiltered catalog from cache when possible;
// filtered queries always hit the store.
func (s *Service) ListProducts(ctx context.Context, q string) ([]domain.Product, error) {
	if q == "" {
		if cached, ok, err := s.productCache.Get(ctx); err != nil {
			logrus.WithError(err).Warn("product cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	products, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		return nil, err
	}

	if q == "" {
		if err := s.productCache.Set(ctx, products, s.cacheTTL); err != nil {
			logrus.WithError(err).Warn("product cache write failed")
		}
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, req.Record())
	if err != nil {
		return nil, err
	}
	s.invalidateProductCache(ctx)
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct is a full replace; sku uniqueness is re-checked by the store
// excluding the record itself.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateProduct(ctx, id, req.Record())
	if err != nil {
		return nil, err
	}
	s.invalidateProductCache(ctx)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateProductCache(ctx)
	return nil
}

// CreateOrder assembles an order from the requested items: every line is
// priced from the product's current economics (never caller-supplied), totals
// are aggregated from the rounded line values, and the order insert plus all
// stock decrements commit as one atomic unit in the store.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	decrements := make([]store.StockDecrement, 0, len(req.Items))
	subtotal := decimal.Zero
	taxTotal := decimal.Zero

	for _, requested := range req.Items {
		product, err := s.repo.GetProduct(ctx, requested.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", requested.ProductID, store.ErrNotFound)
			}
			return nil, err
		}
		if product.StockQty < requested.Qty {
			return nil, fmt.Errorf("%w for %s", store.ErrInsufficientStock, product.Name)
		}

		line := pricing.Compute(product.UnitPrice, product.MakingCharges, requested.Qty, product.TaxRate)
		items = append(items, domain.OrderItem{
			ProductID:     product.ID,
			SKU:           product.SKU,
			Name:          product.Name,
			Qty:           requested.Qty,
			UnitPrice:     product.UnitPrice,
			MakingCharges: product.MakingCharges,
			TaxRate:       product.TaxRate,
			Subtotal:      line.Subtotal,
			TaxAmount:     line.TaxAmount,
			Total:         line.Total,
		})
		decrements = append(decrements, store.StockDecrement{ProductID: product.ID, Qty: requested.Qty})

		subtotal = subtotal.Add(line.Subtotal)
		taxTotal = taxTotal.Add(line.TaxAmount)
	}

	orderNumber, err := s.nextLabel(ctx, domain.SequenceOrder, "ORD")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		OrderNumber: orderNumber,
		Customer:    req.Customer,
		Items:       items,
		Notes:       req.Notes,
		Status:      domain.OrderStatusCreated,
		Subtotal:    subtotal,
		TaxTotal:    taxTotal,
		GrandTotal:  subtotal.Add(taxTotal).Round(2),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.CreateOrder(ctx, order, decrements)
	if err != nil {
		return nil, err
	}
	s.invalidateProductCache(ctx)

	logrus.WithFields(logrus.Fields{
		"order_number": created.OrderNumber,
		"items":        len(created.Items),
		"grand_total":  created.GrandTotal.StringFixed(2),
	}).Info("order created")

	return s.repo.GetOrder(ctx, created.ID)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// CreateInvoice snapshots an existing order into an immutable invoice record.
// Items and totals are copied verbatim, never recomputed; the invoice trusts
// the order's own arithmetic. An order may be invoiced any number of times.
func (s *Service) CreateInvoice(ctx context.Context, orderID string, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
		}
		return nil, err
	}

	issueDate := time.Now().UTC()
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}
	dueDate := issueDate
	if req.DueInDays > 0 {
		dueDate = issueDate.AddDate(0, 0, req.DueInDays)
	}

	invoiceNumber, err := s.nextLabel(ctx, domain.SequenceInvoice, "INV")
	if err != nil {
		return nil, err
	}

	invoice := domain.Invoice{
		InvoiceNumber: invoiceNumber,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		BilledTo:      order.Customer,
		Items:         append([]domain.OrderItem(nil), order.Items...),
		Subtotal:      order.Subtotal,
		TaxTotal:      order.TaxTotal,
		GrandTotal:    order.GrandTotal,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Notes:         req.Notes,
	}

	html, err := renderInvoiceHTML(invoice)
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	invoice.HTML = html

	created, err := s.repo.CreateInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"invoice_number": created.InvoiceNumber,
		"order_number":   created.OrderNumber,
	}).Info("invoice generated")

	return created, nil
}

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// Health reports backend status with best-effort collection counts. A failed
// count downgrades the database status but never fails the endpoint.
func (s *Service) Health(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Backend:   "running",
		Database:  "connected",
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	counts, err := s.repo.CollectionCounts(ctx)
	if err != nil {
		logrus.WithError(err).Warn("collection count failed")
		report.Database = "not available"
		return report
	}
	report.Collections = counts
	return report
}

func (s *Service) nextLabel(ctx context.Context, kind string, prefix string) (string, error) {
	seq, err := s.repo.NextSequence(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", kind, err)
	}
	return fmt.Sprintf("%s-%05d", prefix, seq), nil
}

func (s *Service) invalidateProductCache(ctx context.Context) {
	if err := s.productCache.Invalidate(ctx); err != nil {
		logrus.WithError(err).Warn("product cache invalidation failed")
	}
}
