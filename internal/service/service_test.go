package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokomas/backend/internal/cache"
	"tokomas/backend/internal/domain"
	"tokomas/backend/internal/store"
	"tokomas/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopProductCache{}, time.Second)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustCreateProduct(t *testing.T, svc *Service, sku string, stock int, unitPrice, making, taxRate string) *domain.Product {
	t.Helper()

	rate := dec(taxRate)
	product, err := svc.CreateProduct(context.Background(), domain.ProductRequest{
		SKU:           sku,
		Name:          "Cincin " + sku,
		Category:      "ring",
		StockQty:      stock,
		UnitPrice:     dec(unitPrice),
		MakingCharges: dec(making),
		TaxRate:       &rate,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return product
}

func TestCreateOrderComputesReferenceTotals(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "REF-01", 10, "100", "10", "3")

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if !item.Subtotal.Equal(dec("220")) {
		t.Fatalf("expected item subtotal 220.00, got %s", item.Subtotal)
	}
	if !item.TaxAmount.Equal(dec("6.60")) {
		t.Fatalf("expected item tax 6.60, got %s", item.TaxAmount)
	}
	if !item.Total.Equal(dec("226.60")) {
		t.Fatalf("expected item total 226.60, got %s", item.Total)
	}
	if !order.GrandTotal.Equal(dec("226.60")) {
		t.Fatalf("expected grand total 226.60, got %s", order.GrandTotal)
	}
	if order.Status != domain.OrderStatusCreated {
		t.Fatalf("expected status created, got %s", order.Status)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari"},
	})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari"},
		Items:    []domain.OrderItemRequest{{ProductID: "missing-id", Qty: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing-id") {
		t.Fatalf("expected error to identify the missing id, got %q", err)
	}
}

func TestCreateOrderInsufficientStockMutatesNothing(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "LOW-01", 2, "500", "50", "3")

	_, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Pak Budi"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 5}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQty != 2 {
		t.Fatalf("expected stock untouched at 2, got %d", after.StockQty)
	}
	orders, err := svc.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no order persisted, got %d", len(orders))
	}
}

func TestCreateOrderRepeatedProductLinesShareStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "REP-01", 10, "100", "0", "0")

	_, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Pak Budi"},
		Items: []domain.OrderItemRequest{
			{ProductID: product.ID, Qty: 6},
			{ProductID: product.ID, Qty: 6},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQty != 10 {
		t.Fatalf("expected stock untouched at 10, got %d", after.StockQty)
	}

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Pak Budi"},
		Items: []domain.OrderItemRequest{
			{ProductID: product.ID, Qty: 4},
			{ProductID: product.ID, Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Items))
	}

	after, err = svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQty != 3 {
		t.Fatalf("expected stock 3 after drawing 7, got %d", after.StockQty)
	}
}

func TestCreateOrderDecrementsStockExactlyOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "STK-01", 10, "800", "0", "3")

	_, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Pak Budi"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQty != 7 {
		t.Fatalf("expected stock 7 after ordering 3 of 10, got %d", after.StockQty)
	}
}

func TestOrderGrandTotalEqualsItemTotals(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	first := mustCreateProduct(t, svc, "SUM-01", 10, "123.45", "6.78", "12.5")
	second := mustCreateProduct(t, svc, "SUM-02", 10, "999.99", "0.01", "18")

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari"},
		Items: []domain.OrderItemRequest{
			{ProductID: first.ID, Qty: 3},
			{ProductID: second.ID, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Total)
	}
	if !order.GrandTotal.Equal(sum) {
		t.Fatalf("grand total %s != sum of item totals %s", order.GrandTotal, sum)
	}
	if !order.GrandTotal.Equal(order.Subtotal.Add(order.TaxTotal)) {
		t.Fatalf("grand total %s != subtotal %s + tax total %s", order.GrandTotal, order.Subtotal, order.TaxTotal)
	}
}

func TestOrderNumbersAreSequential(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "SEQ-01", 100, "100", "0", "0")

	for i, expected := range []string{"ORD-00001", "ORD-00002", "ORD-00003"} {
		order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
			Customer: domain.Customer{Name: "Ibu Sari"},
			Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 1}},
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		if order.OrderNumber != expected {
			t.Fatalf("expected order number %s, got %s", expected, order.OrderNumber)
		}
	}
}

func TestCreateInvoiceSnapshotsOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "INV-01", 10, "2500", "150", "3")

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari", Email: "sari@example.com", Address: "Jl. Melati 5"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	invoice, err := svc.CreateInvoice(ctx, order.ID, domain.CreateInvoiceRequest{Notes: "Lunas"})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if invoice.InvoiceNumber != "INV-00001" {
		t.Fatalf("expected invoice number INV-00001, got %s", invoice.InvoiceNumber)
	}
	if invoice.OrderID != order.ID || invoice.OrderNumber != order.OrderNumber {
		t.Fatalf("invoice does not reference its source order")
	}
	if invoice.BilledTo != order.Customer {
		t.Fatalf("billed_to %+v != order customer %+v", invoice.BilledTo, order.Customer)
	}
	if len(invoice.Items) != len(order.Items) {
		t.Fatalf("expected %d items, got %d", len(order.Items), len(invoice.Items))
	}
	for i, item := range invoice.Items {
		src := order.Items[i]
		if item.SKU != src.SKU || item.Qty != src.Qty || !item.Total.Equal(src.Total) {
			t.Fatalf("item %d differs: %+v vs %+v", i, item, src)
		}
	}
	if !invoice.GrandTotal.Equal(order.GrandTotal) {
		t.Fatalf("invoice grand total %s != order grand total %s", invoice.GrandTotal, order.GrandTotal)
	}
	if invoice.HTML == "" {
		t.Fatalf("expected rendered invoice content")
	}
}

func TestCreateInvoiceDueDateRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "DUE-01", 10, "100", "0", "0")

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Pak Budi"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	issue := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	zeroDays, err := svc.CreateInvoice(ctx, order.ID, domain.CreateInvoiceRequest{IssueDate: &issue})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if !zeroDays.DueDate.Equal(issue) {
		t.Fatalf("expected due date %s, got %s", issue, zeroDays.DueDate)
	}

	thirtyDays, err := svc.CreateInvoice(ctx, order.ID, domain.CreateInvoiceRequest{IssueDate: &issue, DueInDays: 30})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if !thirtyDays.DueDate.Equal(issue.AddDate(0, 0, 30)) {
		t.Fatalf("expected due date %s, got %s", issue.AddDate(0, 0, 30), thirtyDays.DueDate)
	}
}

func TestOrderMayBeInvoicedManyTimes(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := mustCreateProduct(t, svc, "MUL-01", 10, "100", "0", "3")

	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Ibu Sari"},
		Items:    []domain.OrderItemRequest{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	first, err := svc.CreateInvoice(ctx, order.ID, domain.CreateInvoiceRequest{})
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	second, err := svc.CreateInvoice(ctx, order.ID, domain.CreateInvoiceRequest{})
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if first.InvoiceNumber == second.InvoiceNumber {
		t.Fatalf("expected distinct invoice numbers, both %s", first.InvoiceNumber)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQty != 9 {
		t.Fatalf("invoicing must not touch stock, got %d", after.StockQty)
	}
}

func TestCreateInvoiceUnknownOrder(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateInvoice(context.Background(), "no-such-order", domain.CreateInvoiceRequest{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDuplicateSKULifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	first := mustCreateProduct(t, svc, "DUP-01", 5, "100", "0", "3")
	mustCreateProduct(t, svc, "DUP-02", 5, "100", "0", "3")

	_, err := svc.CreateProduct(ctx, domain.ProductRequest{
		SKU: "DUP-01", Name: "Duplikat", UnitPrice: dec("100"),
	})
	if !errors.Is(err, store.ErrDuplicateSKU) {
		t.Fatalf("expected duplicate sku on create, got %v", err)
	}

	_, err = svc.UpdateProduct(ctx, first.ID, domain.ProductRequest{
		SKU: "DUP-02", Name: "Rebrand", UnitPrice: dec("100"),
	})
	if !errors.Is(err, store.ErrDuplicateSKU) {
		t.Fatalf("expected duplicate sku on update, got %v", err)
	}

	// Keeping its own sku is not a conflict.
	updated, err := svc.UpdateProduct(ctx, first.ID, domain.ProductRequest{
		SKU: "DUP-01", Name: "Cincin Baru", UnitPrice: dec("150"),
	})
	if err != nil {
		t.Fatalf("self-update failed: %v", err)
	}
	if updated.Name != "Cincin Baru" {
		t.Fatalf("expected updated name, got %s", updated.Name)
	}
}

func TestListProductsFiltersBySKUAndName(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	mustCreateProduct(t, svc, "FIL-RING-01", 5, "100", "0", "3")
	mustCreateProduct(t, svc, "FIL-NECK-01", 5, "100", "0", "3")

	matches, err := svc.ListProducts(ctx, "ring")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(matches) != 1 || matches[0].SKU != "FIL-RING-01" {
		t.Fatalf("expected only FIL-RING-01, got %+v", matches)
	}

	all, err := svc.ListProducts(ctx, "")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}
}

func TestHealthReportsCollections(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "HLT-01", 5, "100", "0", "3")

	report := svc.Health(context.Background())
	if report.Backend != "running" || report.Database != "connected" {
		t.Fatalf("unexpected health report: %+v", report)
	}
	if report.Collections["product"] != 1 {
		t.Fatalf("expected 1 product counted, got %d", report.Collections["product"])
	}
}
