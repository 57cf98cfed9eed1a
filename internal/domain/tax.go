package domain

import "github.com/shopspring/decimal"

// Totals is the computed money breakdown of an invoice.
type Totals struct {
	Items      []InvoiceItem
	Subtotal   float64
	SGSTRate   float64
	SGSTAmount float64
	CGSTRate   float64
	CGSTAmount float64
	Total      float64
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals prices each line, then applies SGST and CGST to the subtotal.
// Amounts are rounded to paise and the total is the sum of the rounded parts.
func ComputeTotals(items []InvoiceItemRequest, sgstRate, cgstRate float64) Totals {
	subtotal := decimal.Zero
	lines := make([]InvoiceItem, len(items))
	for i, it := range items {
		amount := decimal.NewFromFloat(it.Quantity).Mul(decimal.NewFromFloat(it.Rate)).Round(2)
		subtotal = subtotal.Add(amount)
		lines[i] = InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			Amount:      amount.InexactFloat64(),
			Position:    i + 1,
		}
	}

	sgst := subtotal.Mul(decimal.NewFromFloat(sgstRate)).Div(hundred).Round(2)
	cgst := subtotal.Mul(decimal.NewFromFloat(cgstRate)).Div(hundred).Round(2)
	total := subtotal.Add(sgst).Add(cgst)

	return Totals{
		Items:      lines,
		Subtotal:   subtotal.InexactFloat64(),
		SGSTRate:   sgstRate,
		SGSTAmount: sgst.InexactFloat64(),
		CGSTRate:   cgstRate,
		CGSTAmount: cgst.InexactFloat64(),
		Total:      total.InexactFloat64(),
	}
}

// Apply copies the totals onto an invoice and binds the lines to it.
func (t Totals) Apply(inv *Invoice) {
	inv.Items = t.Items
	for i := range inv.Items {
		inv.Items[i].ID = NewID()
		inv.Items[i].InvoiceID = inv.ID
	}
	inv.Subtotal = t.Subtotal
	inv.SGSTRate = t.SGSTRate
	inv.SGSTAmount = t.SGSTAmount
	inv.CGSTRate = t.CGSTRate
	inv.CGSTAmount = t.CGSTAmount
	inv.TotalAmount = t.Total
}
