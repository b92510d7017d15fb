package calc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/sales/calc"
)

func TestComputeLine(t *testing.T) {
	lt := calc.ComputeLine(calc.Line{Quantity: 3, UnitPrice: 25.50, TaxRate: 0.1})
	require.InDelta(t, 76.5, lt.Subtotal, 1e-9)
	require.InDelta(t, 7.65, lt.TaxAmount, 1e-9)
	require.InDelta(t, 84.15, lt.Total, 1e-9)
}

func TestComputeLineZeroTax(t *testing.T) {
	lt := calc.ComputeLine(calc.Line{Quantity: 2, UnitPrice: 100})
	require.InDelta(t, 200, lt.Subtotal, 1e-9)
	require.Zero(t, lt.TaxAmount)
	require.InDelta(t, 200, lt.Total, 1e-9)
}

func TestComputeOrderAppliesDiscount(t *testing.T) {
	lines := []calc.Line{
		{Quantity: 2, UnitPrice: 100, TaxRate: 0.1},
		{Quantity: 1, UnitPrice: 50},
	}
	totals := calc.ComputeOrder(lines, 20)
	require.InDelta(t, 250, totals.Subtotal, 1e-9)
	require.InDelta(t, 20, totals.TaxAmount, 1e-9)
	require.InDelta(t, 20, totals.Discount, 1e-9)
	require.InDelta(t, 250, totals.TotalAmount, 1e-9)
}

func TestComputeOrderEmpty(t *testing.T) {
	totals := calc.ComputeOrder(nil, 0)
	require.Zero(t, totals.Subtotal)
	require.Zero(t, totals.TotalAmount)
}

// Order totals must always equal the sum of their line totals minus the
// discount, whatever the mix of tax rates.
func TestOrderTotalsMatchLineSums(t *testing.T) {
	lines := []calc.Line{
		{Quantity: 1.5, UnitPrice: 33.33, TaxRate: 0.07},
		{Quantity: 4, UnitPrice: 12.25, TaxRate: 0.21},
		{Quantity: 10, UnitPrice: 0.99},
	}
	totals := calc.ComputeOrder(lines, 5)

	var subtotal, tax float64
	for _, l := range lines {
		lt := calc.ComputeLine(l)
		subtotal += lt.Subtotal
		tax += lt.TaxAmount
	}
	require.InDelta(t, subtotal, totals.Subtotal, 1e-9)
	require.InDelta(t, tax, totals.TaxAmount, 1e-9)
	require.InDelta(t, subtotal+tax-5, totals.TotalAmount, 1e-9)
}
