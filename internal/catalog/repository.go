package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Repository defines persistence operations for the catalog.
type Repository interface {
	Get(ctx context.Context, companyID, id int64) (*Product, error)
	GetBySKU(ctx context.Context, companyID int64, sku string) (*Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, companyID, id int64, updates map[string]any) error
	DeductStock(ctx context.Context, companyID, productID int64, qty float64) error
	AddStock(ctx context.Context, companyID, productID int64, qty float64) error
	SetStock(ctx context.Context, companyID, productID int64, qty float64) error
	StockQuantities(ctx context.Context, companyID int64) (map[int64]float64, error)
	ListBelowStock(ctx context.Context, threshold float64) ([]Product, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, company_id, sku, name, description, price, cost, tax_rate, stock_quantity, is_active, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, companyID, id int64) (*Product, error) {
	return r.scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE company_id = $1 AND id = $2`, companyID, id))
}

func (r *repository) GetBySKU(ctx context.Context, companyID int64, sku string) (*Product, error) {
	return r.scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE company_id = $1 AND sku = $2`, companyID, sku))
}

func (r *repository) scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Cost, &p.TaxRate, &p.StockQuantity, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{req.CompanyID}
	argPos := 2

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT "+productColumns+" FROM products %s ORDER BY name, id LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Cost, &p.TaxRate, &p.StockQuantity, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO products (company_id, sku, name, description, price, cost, tax_rate, stock_quantity, is_active, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,0,TRUE,$8,NOW(),NOW()) RETURNING id`,
		p.CompanyID, p.SKU, p.Name, p.Description, p.Price, p.Cost, p.TaxRate, p.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrSKUExists
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, companyID, id int64, updates map[string]any) error {
	query := "UPDATE products SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"name", "description", "price", "cost", "tax_rate", "is_active"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE company_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, companyID, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeductStock decrements the counter with a conditional update so two
// concurrent confirmations can never drive the counter below zero.
func (r *repository) DeductStock(ctx context.Context, companyID, productID int64, qty float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2 AND stock_quantity >= $3`, companyID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		p, getErr := r.Get(ctx, companyID, productID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: requested %g, available %g", ErrInsufficientStock, qty, p.StockQuantity)
	}
	return nil
}

// AddStock increments the counter unconditionally.
func (r *repository) AddStock(ctx context.Context, companyID, productID int64, qty float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity + $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2`, companyID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetStock overwrites the counter with the ledger-derived value during
// reconciliation.
func (r *repository) SetStock(ctx context.Context, companyID, productID int64, qty float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET stock_quantity = $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2`, companyID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// StockQuantities returns every product counter for the company.
func (r *repository) StockQuantities(ctx context.Context, companyID int64) (map[int64]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT id, stock_quantity FROM products WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quantities := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var qty float64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		quantities[id] = qty
	}
	return quantities, rows.Err()
}

// ListBelowStock returns active products whose counter fell below the
// threshold, across all companies. Used by the low-stock alert job.
func (r *repository) ListBelowStock(ctx context.Context, threshold float64) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND stock_quantity < $1 ORDER BY company_id, stock_quantity`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Cost, &p.TaxRate, &p.StockQuantity, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
