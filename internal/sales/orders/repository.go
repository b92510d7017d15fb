package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golavi5/tillpoint/internal/platform/db"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Repository defines persistence operations for orders. Inside WithTx the
// callback receives a Repository bound to the transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, companyID, id int64) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	Create(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	Update(ctx context.Context, companyID, id int64, updates map[string]any) error
	Delete(ctx context.Context, companyID, id int64) error
	NextSequence(ctx context.Context, companyID int64, day time.Time) (int, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, company_id, order_number, customer_id, status, payment_status,
subtotal, tax_amount, discount_amount, total_amount, notes, created_by,
confirmed_at, completed_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, companyID, id int64) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE company_id = $1 AND id = $2`, companyID, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, order_id, product_id, product_name, quantity, unit_price, tax_rate, subtotal, tax_amount, total
FROM sales_order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity,
			&item.UnitPrice, &item.TaxRate, &item.Subtotal, &item.TaxAmount, &item.Total); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CompanyID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.TotalAmount, &o.Notes, &o.CreatedBy,
		&o.ConfirmedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{req.CompanyID}
	argPos := 2

	if req.CustomerID != 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, req.CustomerID)
		argPos++
	}
	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(req.Status))
		argPos++
	}
	if !req.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, req.From)
		argPos++
	}
	if !req.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, req.To)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM sales_orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT "+orderColumns+" FROM sales_orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus,
			&o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.TotalAmount, &o.Notes, &o.CreatedBy,
			&o.ConfirmedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_orders
(company_id, order_number, customer_id, status, payment_status, subtotal, tax_amount, discount_amount, total_amount, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW()) RETURNING id`,
		o.CompanyID, o.OrderNumber, o.CustomerID, string(o.Status), string(o.PaymentStatus),
		o.Subtotal, o.TaxAmount, o.DiscountAmount, o.TotalAmount, o.Notes, o.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: order number already taken", httpx.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_order_items
(order_id, product_id, product_name, quantity, unit_price, tax_rate, subtotal, tax_amount, total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		item.TaxRate, item.Subtotal, item.TaxAmount, item.Total).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, companyID, id int64, updates map[string]any) error {
	query := "UPDATE sales_orders SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"customer_id", "notes", "status", "payment_status", "confirmed_at", "completed_at"} {
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

// Delete removes an order and its items. The status guard lives in the
// service.
func (r *repository) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sales_order_items WHERE order_id IN
(SELECT id FROM sales_orders WHERE company_id = $1 AND id = $2)`, companyID, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM sales_orders WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// NextSequence returns one past the highest daily sequence already used by
// the company on the given day.
func (r *repository) NextSequence(ctx context.Context, companyID int64, day time.Time) (int, error) {
	prefix := "ORD" + day.Format("20060102")
	var max int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(RIGHT(order_number, 5) AS INTEGER)), 0)
FROM sales_orders WHERE company_id = $1 AND order_number LIKE $2 || '%'`, companyID, prefix).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
