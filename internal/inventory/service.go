package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/shared"
)

// ProductStock mirrors movements onto the product-level counter and lets
// reconciliation read and overwrite it.
type ProductStock interface {
	DeductStock(ctx context.Context, companyID, productID int64, qty float64) error
	AddStock(ctx context.Context, companyID, productID int64, qty float64) error
	StockQuantities(ctx context.Context, companyID int64) (map[int64]float64, error)
	SetStock(ctx context.Context, companyID, productID int64, qty float64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	products ProductStock
	audit    AuditPort
}

// NewService builds a Service.
func NewService(logger *slog.Logger, repo Repository, products ProductStock, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, products: products, audit: audit}
}

// GetLocation returns a location within the company scope.
func (s *Service) GetLocation(ctx context.Context, companyID, id int64) (*Location, error) {
	return s.repo.GetLocation(ctx, companyID, id)
}

// ListLocations returns the company's locations.
func (s *Service) ListLocations(ctx context.Context, companyID int64, includeInactive bool) ([]Location, error) {
	return s.repo.ListLocations(ctx, companyID, includeInactive)
}

// CreateLocation persists a new location after checking code uniqueness.
func (s *Service) CreateLocation(ctx context.Context, companyID int64, req CreateLocationRequest) (*Location, error) {
	existing, err := s.repo.GetLocationByCode(ctx, companyID, req.Code)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, fmt.Errorf("check existing location: %w", err)
	}
	if existing != nil {
		return nil, ErrCodeExists
	}

	id, err := s.repo.CreateLocation(ctx, Location{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Capacity:  req.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	return s.repo.GetLocation(ctx, companyID, id)
}

// UpdateLocation mutates location master data. Capacity can never be set
// below the stock currently held.
func (s *Service) UpdateLocation(ctx context.Context, companyID, id int64, req UpdateLocationRequest) (*Location, error) {
	location, err := s.repo.GetLocation(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Capacity != nil {
		if *req.Capacity < location.CurrentStock {
			return nil, fmt.Errorf("%w: capacity %g, current stock %g", ErrCapacityBelowStock, *req.Capacity, location.CurrentStock)
		}
		updates["capacity"] = *req.Capacity
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateLocation(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update location: %w", err)
		}
	}
	return s.repo.GetLocation(ctx, companyID, id)
}

// AdjustStock posts one movement against a location. The ledger append and
// the location counter update share a transaction; the product counter is
// mirrored through the catalog, with the deduction guard applied first for
// outbound types.
func (s *Service) AdjustStock(ctx context.Context, companyID, actorID int64, req AdjustStockRequest) (*StockMovement, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}
	sign := req.Type.Sign()
	if sign == 0 {
		return nil, fmt.Errorf("%w: unknown movement type %q", httpx.ErrValidation, req.Type)
	}

	deducted := false
	if sign < 0 {
		if err := s.products.DeductStock(ctx, companyID, req.ProductID, req.Quantity); err != nil {
			return nil, err
		}
		deducted = true
	}

	movement := StockMovement{
		CompanyID:  companyID,
		LocationID: req.LocationID,
		ProductID:  req.ProductID,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Note:       req.Note,
		ActorID:    actorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		location, err := tx.LockLocation(ctx, companyID, req.LocationID)
		if err != nil {
			return err
		}
		newStock := location.CurrentStock + sign*req.Quantity
		if newStock < 0 {
			return fmt.Errorf("%w: requested %g, available %g", ErrInsufficientStock, req.Quantity, location.CurrentStock)
		}
		if newStock > location.Capacity {
			return fmt.Errorf("%w: capacity %g, would hold %g", ErrCapacityExceeded, location.Capacity, newStock)
		}
		if err := tx.ApplyDelta(ctx, companyID, req.LocationID, sign*req.Quantity); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		if deducted {
			if addErr := s.products.AddStock(ctx, companyID, req.ProductID, req.Quantity); addErr != nil {
				s.logger.Error("restore product stock after failed movement",
					slog.Int64("product_id", req.ProductID), slog.Any("error", addErr))
			}
		}
		return nil, err
	}

	if sign > 0 {
		if err := s.products.AddStock(ctx, companyID, req.ProductID, req.Quantity); err != nil {
			// Movement is already on the ledger; the counter catches up on
			// the next reconciliation run.
			s.logger.Error("mirror product stock", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
			return nil, err
		}
	}

	s.recordAudit(ctx, companyID, actorID, movement)
	return &movement, nil
}

// RecordOrderOut writes the OUT movement for a confirmed order line,
// picking the location with the most stock that can satisfy the quantity.
// The product counter is handled by the caller.
func (s *Service) RecordOrderOut(ctx context.Context, companyID, actorID, productID int64, qty float64, orderID int64) (*StockMovement, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}

	refType := "order"
	movement := StockMovement{
		CompanyID: companyID,
		ProductID: productID,
		Type:      MovementOut,
		Quantity:  qty,
		RefType:   &refType,
		RefID:     &orderID,
		ActorID:   actorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		location, err := tx.PickLocation(ctx, companyID, qty)
		if err != nil {
			return err
		}
		if err := tx.ApplyDelta(ctx, companyID, location.ID, -qty); err != nil {
			return err
		}
		movement.LocationID = location.ID
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

// ListMovements returns the stock card.
func (s *Service) ListMovements(ctx context.Context, req ListMovementsRequest) ([]StockMovement, int, error) {
	return s.repo.ListMovements(ctx, req)
}

// ReconcileCounters recomputes every location and product counter from the
// ledger and repairs any drift, reporting what it found. The product pass
// catches mirror writes that failed after a movement committed.
func (s *Service) ReconcileCounters(ctx context.Context, companyID int64) (Reconciliation, error) {
	var rec Reconciliation

	locations, err := s.repo.ListLocations(ctx, companyID, true)
	if err != nil {
		return rec, fmt.Errorf("list locations: %w", err)
	}
	for _, location := range locations {
		computed, err := s.repo.LedgerStock(ctx, companyID, location.ID)
		if err != nil {
			return rec, fmt.Errorf("ledger stock for location %d: %w", location.ID, err)
		}
		if math.Abs(computed-location.CurrentStock) < 1e-6 {
			continue
		}
		drift := Drift{LocationID: location.ID, Code: location.Code, Recorded: location.CurrentStock, Computed: computed}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			locked, err := tx.LockLocation(ctx, companyID, location.ID)
			if err != nil {
				return err
			}
			return tx.ApplyDelta(ctx, companyID, location.ID, computed-locked.CurrentStock)
		})
		if err != nil {
			return rec, fmt.Errorf("repair location %d: %w", location.ID, err)
		}
		rec.Locations = append(rec.Locations, drift)
		s.logger.Warn("repaired stock counter drift",
			slog.Int64("location_id", location.ID),
			slog.Float64("recorded", drift.Recorded),
			slog.Float64("computed", drift.Computed))
	}

	ledger, err := s.repo.ProductLedgerStocks(ctx, companyID)
	if err != nil {
		return rec, fmt.Errorf("product ledger stocks: %w", err)
	}
	recorded, err := s.products.StockQuantities(ctx, companyID)
	if err != nil {
		return rec, fmt.Errorf("product stock quantities: %w", err)
	}
	for productID, computed := range ledger {
		if math.Abs(computed-recorded[productID]) < 1e-6 {
			continue
		}
		drift, err := s.repairProduct(ctx, companyID, productID, recorded[productID], computed)
		if err != nil {
			return rec, err
		}
		rec.Products = append(rec.Products, drift)
	}
	// Products with a counter but no movements at all drift back to zero.
	for productID, have := range recorded {
		if _, moved := ledger[productID]; moved || math.Abs(have) < 1e-6 {
			continue
		}
		drift, err := s.repairProduct(ctx, companyID, productID, have, 0)
		if err != nil {
			return rec, err
		}
		rec.Products = append(rec.Products, drift)
	}
	return rec, nil
}

func (s *Service) repairProduct(ctx context.Context, companyID, productID int64, recorded, computed float64) (ProductDrift, error) {
	if err := s.products.SetStock(ctx, companyID, productID, computed); err != nil {
		return ProductDrift{}, fmt.Errorf("repair product %d: %w", productID, err)
	}
	s.logger.Warn("repaired product counter drift",
		slog.Int64("product_id", productID),
		slog.Float64("recorded", recorded),
		slog.Float64("computed", computed))
	return ProductDrift{ProductID: productID, Recorded: recorded, Computed: computed}, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, m StockMovement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    fmt.Sprintf("inventory:%s", m.Type),
		Entity:    "stock_movement",
		EntityID:  fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"location_id": m.LocationID,
			"product_id":  m.ProductID,
			"quantity":    m.Quantity,
		},
	})
}
