package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golavi5/tillpoint/internal/platform/db"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// OrderFinancials is the slice of the order a payment decision needs.
type OrderFinancials struct {
	OrderID       int64
	TotalAmount   float64
	PaymentStatus string
}

// TxRepository exposes the operations that must share one transaction:
// locking the order row, reading the paid position, and writing payments.
type TxRepository interface {
	LockOrder(ctx context.Context, companyID, orderID int64) (*OrderFinancials, error)
	SumCompleted(ctx context.Context, orderID int64) (float64, int, error)
	Insert(ctx context.Context, p Payment) (int64, error)
	LockPayment(ctx context.Context, companyID, paymentID int64) (*Payment, error)
	MarkRefunded(ctx context.Context, paymentID int64) error
	SetOrderPaymentStatus(ctx context.Context, companyID, orderID int64, status string) error
}

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, paymentID int64) (*Payment, error)
	ListByOrder(ctx context.Context, companyID, orderID int64) ([]Payment, error)
	OrderFinancials(ctx context.Context, companyID, orderID int64) (*OrderFinancials, error)
	SumCompleted(ctx context.Context, orderID int64) (float64, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const paymentColumns = `p.id, p.company_id, p.order_id, p.method, p.amount, p.transaction_id, p.status, p.created_by, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.OrderID, &p.Method, &p.Amount, &p.TransactionID, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Get(ctx context.Context, companyID, paymentID int64) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p
WHERE p.company_id = $1 AND p.id = $2`, companyID, paymentID))
}

func (r *repository) ListByOrder(ctx context.Context, companyID, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments p
WHERE p.company_id = $1 AND p.order_id = $2 ORDER BY p.created_at, p.id`, companyID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.OrderID, &p.Method, &p.Amount, &p.TransactionID, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) OrderFinancials(ctx context.Context, companyID, orderID int64) (*OrderFinancials, error) {
	return scanFinancials(r.pool.QueryRow(ctx, `SELECT id, total_amount, payment_status
FROM sales_orders WHERE company_id = $1 AND id = $2`, companyID, orderID))
}

func (r *repository) SumCompleted(ctx context.Context, orderID int64) (float64, int, error) {
	return sumCompleted(ctx, r.pool, orderID)
}

func scanFinancials(row pgx.Row) (*OrderFinancials, error) {
	var f OrderFinancials
	err := row.Scan(&f.OrderID, &f.TotalAmount, &f.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumCompleted(ctx context.Context, q queryRower, orderID int64) (float64, int, error) {
	var sum float64
	var count int
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments
WHERE order_id = $1 AND status = 'completed'`, orderID).Scan(&sum, &count)
	return sum, count, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockOrder(ctx context.Context, companyID, orderID int64) (*OrderFinancials, error) {
	return scanFinancials(r.tx.QueryRow(ctx, `SELECT id, total_amount, payment_status
FROM sales_orders WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, orderID))
}

func (r *txRepository) SumCompleted(ctx context.Context, orderID int64) (float64, int, error) {
	return sumCompleted(ctx, r.tx, orderID)
}

func (r *txRepository) Insert(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments
(company_id, order_id, method, amount, transaction_id, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		p.CompanyID, p.OrderID, string(p.Method), p.Amount, p.TransactionID, string(p.Status), p.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) LockPayment(ctx context.Context, companyID, paymentID int64) (*Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p
WHERE p.company_id = $1 AND p.id = $2 FOR UPDATE`, companyID, paymentID))
}

func (r *txRepository) MarkRefunded(ctx context.Context, paymentID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payments SET status = 'refunded', updated_at = NOW() WHERE id = $1`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetOrderPaymentStatus(ctx context.Context, companyID, orderID int64, status string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales_orders SET payment_status = $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2`, companyID, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
