package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golavi5/tillpoint/internal/platform/db"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// TxRepository exposes the operations that must share one transaction:
// locking a location, moving its counter, and appending the ledger row.
type TxRepository interface {
	LockLocation(ctx context.Context, companyID, locationID int64) (*Location, error)
	PickLocation(ctx context.Context, companyID int64, qty float64) (*Location, error)
	ApplyDelta(ctx context.Context, companyID, locationID int64, delta float64) error
	InsertMovement(ctx context.Context, m StockMovement) (int64, error)
}

// Repository defines persistence operations for inventory.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetLocation(ctx context.Context, companyID, id int64) (*Location, error)
	GetLocationByCode(ctx context.Context, companyID int64, code string) (*Location, error)
	ListLocations(ctx context.Context, companyID int64, includeInactive bool) ([]Location, error)
	CreateLocation(ctx context.Context, l Location) (int64, error)
	UpdateLocation(ctx context.Context, companyID, id int64, updates map[string]any) error

	ListMovements(ctx context.Context, req ListMovementsRequest) ([]StockMovement, int, error)
	LedgerStock(ctx context.Context, companyID, locationID int64) (float64, error)
	ProductLedgerStocks(ctx context.Context, companyID int64) (map[int64]float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const locationColumns = `id, company_id, code, name, capacity, current_stock, is_active, created_at, updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetLocation(ctx context.Context, companyID, id int64) (*Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE company_id = $1 AND id = $2`, companyID, id))
}

func (r *repository) GetLocationByCode(ctx context.Context, companyID int64, code string) (*Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE company_id = $1 AND code = $2`, companyID, code))
}

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.CompanyID, &l.Code, &l.Name, &l.Capacity, &l.CurrentStock, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *repository) ListLocations(ctx context.Context, companyID int64, includeInactive bool) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE company_id = $1`
	if !includeInactive {
		query += ` AND is_active`
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Code, &l.Name, &l.Capacity, &l.CurrentStock, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *repository) CreateLocation(ctx context.Context, l Location) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (company_id, code, name, capacity, current_stock, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,TRUE,NOW(),NOW()) RETURNING id`, l.CompanyID, l.Code, l.Name, l.Capacity).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrCodeExists
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateLocation(ctx context.Context, companyID, id int64, updates map[string]any) error {
	query := "UPDATE locations SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"name", "capacity", "is_active"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE company_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, companyID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) ListMovements(ctx context.Context, req ListMovementsRequest) ([]StockMovement, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{req.CompanyID}
	argPos := 2

	if req.LocationID != 0 {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", argPos))
		args = append(args, req.LocationID)
		argPos++
	}
	if req.ProductID != 0 {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argPos))
		args = append(args, req.ProductID)
		argPos++
	}
	if req.Type != "" {
		conditions = append(conditions, fmt.Sprintf("movement_type = $%d", argPos))
		args = append(args, string(req.Type))
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM stock_movements "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, company_id, location_id, product_id, movement_type, quantity, ref_type, ref_id, note, actor_id, created_at
FROM stock_movements %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.LocationID, &m.ProductID, &m.Type, &m.Quantity, &m.RefType, &m.RefID, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

// LedgerStock recomputes a location's stock from its movements, clamped at
// zero the same way the counter is.
func (r *repository) LedgerStock(ctx context.Context, companyID, locationID int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT GREATEST(COALESCE(SUM(
CASE WHEN movement_type IN ('IN','RETURN') THEN quantity ELSE -quantity END), 0), 0)
FROM stock_movements WHERE company_id = $1 AND location_id = $2`, companyID, locationID).Scan(&sum)
	return sum, err
}

// ProductLedgerStocks recomputes every product's stock from its movements,
// clamped at zero like the product counter itself.
func (r *repository) ProductLedgerStocks(ctx context.Context, companyID int64) (map[int64]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, GREATEST(COALESCE(SUM(
CASE WHEN movement_type IN ('IN','RETURN') THEN quantity ELSE -quantity END), 0), 0)
FROM stock_movements WHERE company_id = $1 GROUP BY product_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := make(map[int64]float64)
	for rows.Next() {
		var productID int64
		var sum float64
		if err := rows.Scan(&productID, &sum); err != nil {
			return nil, err
		}
		stocks[productID] = sum
	}
	return stocks, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockLocation(ctx context.Context, companyID, locationID int64) (*Location, error) {
	return scanLocation(r.tx.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations
WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, locationID))
}

// PickLocation locks the active location with the most stock that can still
// satisfy qty.
func (r *txRepository) PickLocation(ctx context.Context, companyID int64, qty float64) (*Location, error) {
	l, err := scanLocation(r.tx.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations
WHERE company_id = $1 AND is_active AND current_stock >= $2
ORDER BY current_stock DESC, id LIMIT 1 FOR UPDATE`, companyID, qty))
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, ErrNoLocationAvailable
	}
	return l, err
}

func (r *txRepository) ApplyDelta(ctx context.Context, companyID, locationID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE locations SET current_stock = current_stock + $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2`, companyID, locationID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (company_id, location_id, product_id, movement_type, quantity, ref_type, ref_id, note, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		m.CompanyID, m.LocationID, m.ProductID, string(m.Type), m.Quantity, m.RefType, m.RefID, m.Note, m.ActorID).Scan(&id)
	return id, err
}
