// Package pricing computes per-line economics for order items.
//
// All stored monetary values are rounded half-up to two decimal places. The
// tax amount is computed from the unrounded subtotal so that rounding the
// subtotal first cannot drift the tax.
package pricing

import "github.com/shopspring/decimal"

var percentDivisor = decimal.NewFromInt(100)

// Line holds the three derived values of one order item.
type Line struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Compute derives subtotal, tax amount and total from unit economics.
// Inputs are assumed already validated (qty >= 1, non-negative money,
// tax rate in [0,100]); the function is pure and cannot fail.
func Compute(unitPrice, makingCharges decimal.Decimal, qty int, taxRate decimal.Decimal) Line {
	raw := unitPrice.Add(makingCharges).Mul(decimal.NewFromInt(int64(qty)))
	subtotal := raw.Round(2)
	taxAmount := raw.Mul(taxRate).Div(percentDivisor).Round(2)
	total := subtotal.Add(taxAmount).Round(2)

	return Line{Subtotal: subtotal, TaxAmount: taxAmount, Total: total}
}
