// Package calc holds the pure order arithmetic: per-line subtotals, tax,
// and order-level totals. No persistence, no side effects.
package calc

// Line is one priced order line.
type Line struct {
	ProductID int64
	Quantity  float64
	UnitPrice float64
	TaxRate   float64
}

// LineTotals is the computed amounts for one line.
type LineTotals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

// OrderTotals is the computed amounts for a whole order.
type OrderTotals struct {
	Subtotal    float64
	TaxAmount   float64
	Discount    float64
	TotalAmount float64
}

// ComputeLine returns subtotal, tax and total for a single line.
// TaxRate is a fraction, e.g. 0.1 for 10%.
func ComputeLine(l Line) LineTotals {
	subtotal := l.Quantity * l.UnitPrice
	tax := subtotal * l.TaxRate
	return LineTotals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal + tax,
	}
}

// ComputeOrder sums line totals and applies the order-level discount.
func ComputeOrder(lines []Line, discount float64) OrderTotals {
	totals := OrderTotals{Discount: discount}
	for _, l := range lines {
		lt := ComputeLine(l)
		totals.Subtotal += lt.Subtotal
		totals.TaxAmount += lt.TaxAmount
	}
	totals.TotalAmount = totals.Subtotal + totals.TaxAmount - discount
	return totals
}
