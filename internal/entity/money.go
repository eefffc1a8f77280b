package entity

import "github.com/shopspring/decimal"

// TaxRate is the fixed purchase tax applied to order subtotals.
var TaxRate = decimal.RequireFromString("0.08")

// RoundMoney rounds an amount to currency precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Totals holds the derived financial figures of a purchase order.
type Totals struct {
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	ShippingCost decimal.Decimal
	TotalAmount  decimal.Decimal
}

// ComputeTotals derives subtotal, tax and total from line totals and shipping.
func ComputeTotals(lineTotals []decimal.Decimal, shipping decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lineTotals {
		subtotal = subtotal.Add(line)
	}
	subtotal = RoundMoney(subtotal)
	tax := RoundMoney(subtotal.Mul(TaxRate))
	shipping = RoundMoney(shipping)

	return Totals{
		Subtotal:     subtotal,
		TaxAmount:    tax,
		ShippingCost: shipping,
		TotalAmount:  subtotal.Add(tax).Add(shipping),
	}
}
