package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldViolation names one violated constraint on one field.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// ValidationError enumerates every violated constraint of a request payload.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Constraint))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field string, constraint string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Constraint: constraint})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// collectTagViolations flattens validator.ValidationErrors into field/tag
// pairs using the struct's json field names.
func collectTagViolations(ve *ValidationError, err error) {
	if err == nil {
		return
	}
	tagErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		ve.add("payload", err.Error())
		return
	}
	for _, fe := range tagErrs {
		ve.add(strings.ToLower(fe.Field()), fe.Tag())
	}
}

var hundred = decimal.NewFromInt(100)

func checkMoney(ve *ValidationError, field string, value decimal.Decimal) {
	if value.IsNegative() {
		ve.add(field, "gte=0")
	}
}

func checkTaxRate(ve *ValidationError, field string, rate decimal.Decimal) {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		ve.add(field, "between 0 and 100")
	}
}

func (r ProductRequest) Validate() error {
	ve := &ValidationError{}
	collectTagViolations(ve, validate.Struct(r))
	checkMoney(ve, "unit_price", r.UnitPrice)
	checkMoney(ve, "making_charges", r.MakingCharges)
	if r.TaxRate != nil {
		checkTaxRate(ve, "tax_rate", *r.TaxRate)
	}
	return ve.orNil()
}

func (r CreateOrderRequest) Validate() error {
	ve := &ValidationError{}
	if len(r.Items) == 0 {
		ve.add("items", "no items in order")
	}
	collectTagViolations(ve, validate.Struct(r))
	return ve.orNil()
}

func (r CreateInvoiceRequest) Validate() error {
	ve := &ValidationError{}
	collectTagViolations(ve, validate.Struct(r))
	return ve.orNil()
}

// Record builds a Product from a validated request, applying the default tax
// rate when the payload omits one.
func (r ProductRequest) Record() Product {
	taxRate := DefaultTaxRate
	if r.TaxRate != nil {
		taxRate = *r.TaxRate
	}
	return Product{
		SKU:           strings.TrimSpace(r.SKU),
		Name:          strings.TrimSpace(r.Name),
		Description:   strings.TrimSpace(r.Description),
		Category:      strings.TrimSpace(r.Category),
		MetalType:     strings.TrimSpace(r.MetalType),
		StoneType:     strings.TrimSpace(r.StoneType),
		WeightGrams:   r.WeightGrams,
		StockQty:      r.StockQty,
		UnitPrice:     r.UnitPrice,
		MakingCharges: r.MakingCharges,
		TaxRate:       taxRate,
		Tags:          r.Tags,
	}
}
