package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SalesSummary aggregates completed-order revenue for a period.
type SalesSummary struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	OrderCount    int64     `json:"order_count"`
	Revenue       float64   `json:"revenue"`
	TaxCollected  float64   `json:"tax_collected"`
	DiscountGiven float64   `json:"discount_given"`
	AverageOrder  float64   `json:"average_order"`
}

// TopProduct is one row of the product ranking.
type TopProduct struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold float64 `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

// Repository runs the report aggregations.
type Repository interface {
	SalesSummary(ctx context.Context, companyID int64, from, to time.Time) (*SalesSummary, error)
	TopProducts(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]TopProduct, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Completed orders only; cancelled and voided orders never count toward
// revenue.
func (r *repository) SalesSummary(ctx context.Context, companyID int64, from, to time.Time) (*SalesSummary, error) {
	summary := SalesSummary{From: from, To: to}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
COALESCE(SUM(total_amount), 0), COALESCE(SUM(tax_amount), 0), COALESCE(SUM(discount_amount), 0)
FROM sales_orders
WHERE company_id = $1 AND status = 'completed' AND created_at >= $2 AND created_at < $3`,
		companyID, from, to).Scan(&summary.OrderCount, &summary.Revenue, &summary.TaxCollected, &summary.DiscountGiven)
	if err != nil {
		return nil, err
	}
	if summary.OrderCount > 0 {
		summary.AverageOrder = summary.Revenue / float64(summary.OrderCount)
	}
	return &summary, nil
}

func (r *repository) TopProducts(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, i.product_name,
SUM(i.quantity), SUM(i.total)
FROM sales_order_items i
JOIN sales_orders o ON o.id = i.order_id
WHERE o.company_id = $1 AND o.status = 'completed' AND o.created_at >= $2 AND o.created_at < $3
GROUP BY i.product_id, i.product_name
ORDER BY SUM(i.total) DESC
LIMIT $4`, companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.QuantitySold, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
