// Package catalog owns the product catalog and the denormalized per-product
// stock counter used for availability checks.
package catalog

import (
	"fmt"
	"time"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Product represents a sellable product. StockQuantity is the fast
// availability counter; the per-location truth lives in the inventory ledger.
type Product struct {
	ID            int64     `json:"id"`
	CompanyID     int64     `json:"company_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Price         float64   `json:"price"`
	Cost          float64   `json:"cost"`
	TaxRate       float64   `json:"tax_rate"`
	StockQuantity float64   `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrSKUExists indicates a duplicate SKU within the company.
var ErrSKUExists = fmt.Errorf("%w: sku already exists", httpx.ErrDuplicate)

// ErrInsufficientStock indicates a deduction below zero.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", httpx.ErrBusinessRule)
