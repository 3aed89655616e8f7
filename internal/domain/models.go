package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog record. SKU is unique across all products; stock is
// mutated only by order creation.
type Product struct {
	ID            string          `json:"id,omitempty"`
	SKU           string          `json:"sku" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	MetalType     string          `json:"metal_type,omitempty"`
	StoneType     string          `json:"stone_type,omitempty"`
	WeightGrams   float64         `json:"weight_grams,omitempty" validate:"gte=0"`
	StockQty      int             `json:"stock_qty" validate:"gte=0"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Tags          []string        `json:"tags,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty"`
}

// Customer is an embedded value object. It has no identity of its own and is
// copied by value into orders and invoices.
type Customer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderItem is a priced snapshot of one product line at order time.
// Subtotal, tax amount and total satisfy the pricing formulas exactly and are
// never recomputed after creation.
type OrderItem struct {
	ProductID     string          `json:"product_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
}

type Order struct {
	ID          string          `json:"id,omitempty"`
	OrderNumber string          `json:"order_number"`
	Customer    Customer        `json:"customer"`
	Items       []OrderItem     `json:"items"`
	Notes       string          `json:"notes,omitempty"`
	Status      string          `json:"status"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Invoice owns independent copies of the source order's customer and items.
// Totals are copied verbatim from the order, never recomputed, so later order
// mutation cannot leak into an already-generated invoice.
type Invoice struct {
	ID            string          `json:"id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	BilledTo      Customer        `json:"billed_to"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	Notes         string          `json:"notes,omitempty"`
	HTML          string          `json:"html,omitempty"`
}

type ProductRequest struct {
	SKU           string           `json:"sku" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category,omitempty"`
	MetalType     string           `json:"metal_type,omitempty"`
	StoneType     string           `json:"stone_type,omitempty"`
	WeightGrams   float64          `json:"weight_grams,omitempty" validate:"gte=0"`
	StockQty      int              `json:"stock_qty" validate:"gte=0"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	MakingCharges decimal.Decimal  `json:"making_charges"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
}

type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=1"`
}

type CreateOrderRequest struct {
	Customer Customer           `json:"customer"`
	Items    []OrderItemRequest `json:"items" validate:"dive"`
	Notes    string             `json:"notes,omitempty"`
}

type CreateInvoiceRequest struct {
	IssueDate *time.Time `json:"issue_date,omitempty"`
	DueInDays int        `json:"due_in_days,omitempty" validate:"gte=0"`
	Notes     string     `json:"notes,omitempty"`
}

type HealthReport struct {
	Backend     string           `json:"backend"`
	Database    string           `json:"database"`
	Collections map[string]int64 `json:"collections"`
	CheckedAt   string           `json:"checked_at"`
}

const (
	OrderStatusCreated   = "created"
	OrderStatusConfirmed = "confirmed"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCancelled = "cancelled"
)

const (
	SequenceOrder   = "order"
	SequenceInvoice = "invoice"
)

// DefaultTaxRate applies when a product payload omits tax_rate.
var DefaultTaxRate = decimal.NewFromInt(3)
