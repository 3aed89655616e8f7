package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokomas/backend/internal/domain"
	"tokomas/backend/internal/store"
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

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates the document tables on startup. Embedded customer and
// item snapshots live in JSONB columns; the store owns the layout.
func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id             TEXT PRIMARY KEY,
			sku            TEXT NOT NULL UNIQUE,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL DEFAULT '',
			metal_type     TEXT NOT NULL DEFAULT '',
			stone_type     TEXT NOT NULL DEFAULT '',
			weight_grams   DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock_qty      INTEGER NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
			unit_price     NUMERIC(14,2) NOT NULL DEFAULT 0,
			making_charges NUMERIC(14,2) NOT NULL DEFAULT 0,
			tax_rate       NUMERIC(5,2) NOT NULL DEFAULT 3,
			tags           JSONB,
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id           TEXT PRIMARY KEY,
			order_number TEXT NOT NULL,
			customer     JSONB NOT NULL,
			items        JSONB NOT NULL,
			notes        TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			subtotal     NUMERIC(14,2) NOT NULL,
			tax_total    NUMERIC(14,2) NOT NULL,
			grand_total  NUMERIC(14,2) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id             TEXT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			order_id       TEXT NOT NULL,
			order_number   TEXT NOT NULL,
			billed_to      JSONB NOT NULL,
			items          JSONB NOT NULL,
			subtotal       NUMERIC(14,2) NOT NULL,
			tax_total      NUMERIC(14,2) NOT NULL,
			grand_total    NUMERIC(14,2) NOT NULL,
			issue_date     TIMESTAMPTZ NOT NULL,
			due_date       TIMESTAMPTZ NOT NULL,
			notes          TEXT NOT NULL DEFAULT '',
			html           TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			kind  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalJSONB(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document field: %w", err)
	}
	return payload, nil
}

const productColumns = `id, sku, name, description, category, metal_type, stone_type,
	weight_grams, stock_qty, unit_price, making_charges, tax_rate, tags, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var tags []byte
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.MetalType, &p.StoneType,
		&p.WeightGrams, &p.StockQty, &p.UnitPrice, &p.MakingCharges, &p.TaxRate, &tags, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, fmt.Errorf("decode product tags: %w", err)
		}
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, q string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 = '' OR sku ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY name ASC
	`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tags, err := marshalJSONB(product.Tags)
	if err != nil {
		return nil, err
	}

	product.ID = uuid.NewString()
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, product.ID, product.SKU, product.Name, product.Description, product.Category,
		product.MetalType, product.StoneType, product.WeightGrams, product.StockQty,
		product.UnitPrice, product.MakingCharges, product.TaxRate, tags,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateSKU
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, product domain.Product) (*domain.Product, error) {
	tags, err := marshalJSONB(product.Tags)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET sku = $1, name = $2, description = $3, category = $4, metal_type = $5,
			stone_type = $6, weight_grams = $7, stock_qty = $8, unit_price = $9,
			making_charges = $10, tax_rate = $11, tags = $12, updated_at = now()
		WHERE id = $13
	`, product.SKU, product.Name, product.Description, product.Category, product.MetalType,
		product.StoneType, product.WeightGrams, product.StockQty, product.UnitPrice,
		product.MakingCharges, product.TaxRate, tags, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateSKU
		}
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateOrder inserts the order and applies every stock decrement inside one
// transaction. Each decrement is conditional on remaining stock, so two
// concurrent orders against the same product cannot both drain it: the later
// one fails with ErrInsufficientStock and nothing of it persists.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order, decrements []store.StockDecrement) (*domain.Order, error) {
	customer, err := marshalJSONB(order.Customer)
	if err != nil {
		return nil, err
	}
	items, err := marshalJSONB(order.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range decrements {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - $1, updated_at = now()
			WHERE id = $2 AND stock_qty >= $1
		`, d.Qty, d.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var name string
			lookupErr := tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = $1`, d.ProductID).Scan(&name)
			if errors.Is(lookupErr, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", d.ProductID, store.ErrNotFound)
			}
			if lookupErr != nil {
				return nil, lookupErr
			}
			return nil, fmt.Errorf("%w for %s", store.ErrInsufficientStock, name)
		}
	}

	order.ID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer, items, notes, status,
			subtotal, tax_total, grand_total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, order.ID, order.OrderNumber, customer, items, order.Notes, order.Status,
		order.Subtotal, order.TaxTotal, order.GrandTotal, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

const orderColumns = `id, order_number, customer, items, notes, status,
	subtotal, tax_total, grand_total, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var customer, items []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &customer, &items, &o.Notes, &o.Status,
		&o.Subtotal, &o.TaxTotal, &o.GrandTotal, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("decode order customer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

const invoiceColumns = `id, invoice_number, order_id, order_number, billed_to, items,
	subtotal, tax_total, grand_total, issue_date, due_date, notes, html`

func scanInvoice(row interface{ Scan(...any) error }) (*domain.Invoice, error) {
	var inv domain.Invoice
	var billedTo, items []byte
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.OrderNumber, &billedTo, &items,
		&inv.Subtotal, &inv.TaxTotal, &inv.GrandTotal, &inv.IssueDate, &inv.DueDate, &inv.Notes, &inv.HTML)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billedTo, &inv.BilledTo); err != nil {
		return nil, fmt.Errorf("decode invoice billed_to: %w", err)
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	billedTo, err := marshalJSONB(invoice.BilledTo)
	if err != nil {
		return nil, err
	}
	items, err := marshalJSONB(invoice.Items)
	if err != nil {
		return nil, err
	}

	invoice.ID = uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, invoice.ID, invoice.InvoiceNumber, invoice.OrderID, invoice.OrderNumber, billedTo, items,
		invoice.Subtotal, invoice.TaxTotal, invoice.GrandTotal, invoice.IssueDate, invoice.DueDate,
		invoice.Notes, invoice.HTML)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY issue_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 64)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

// NextSequence increments the counter row for the given kind in a single
// atomic statement, so concurrent callers never observe the same value.
func (s *Store) NextSequence(ctx context.Context, kind string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (kind, value)
		VALUES ($1, 1)
		ON CONFLICT (kind)
		DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, kind).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) CollectionCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for table, collection := range map[string]string{
		"products": "product",
		"orders":   "order",
		"invoices": "invoice",
	} {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		counts[collection] = n
	}
	return counts, nil
}
