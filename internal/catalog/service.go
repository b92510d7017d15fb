package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/shared"
)

// Service coordinates catalog operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns a product within the company scope.
func (s *Service) Get(ctx context.Context, companyID, id int64) (*Product, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a filtered page of the catalog.
func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

// Create persists a new product after checking SKU uniqueness.
func (s *Service) Create(ctx context.Context, companyID, createdBy int64, req CreateProductRequest) (*Product, error) {
	existing, err := s.repo.GetBySKU(ctx, companyID, req.SKU)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, fmt.Errorf("check existing sku: %w", err)
	}
	if existing != nil {
		return nil, ErrSKUExists
	}

	product := Product{
		CompanyID:   companyID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Cost:        req.Cost,
		TaxRate:     req.TaxRate,
		CreatedBy:   createdBy,
	}
	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return s.repo.Get(ctx, companyID, id)
}

// Update mutates product master data.
func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateProductRequest) (*Product, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Cost != nil {
		updates["cost"] = *req.Cost
	}
	if req.TaxRate != nil {
		updates["tax_rate"] = *req.TaxRate
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
	}
	return s.repo.Get(ctx, companyID, id)
}

// DeductStock commits a stock deduction against the availability counter.
// The conditional update is the only oversell guard; callers do not need to
// pre-read the counter.
func (s *Service) DeductStock(ctx context.Context, companyID, productID int64, qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}
	if err := s.repo.DeductStock(ctx, companyID, productID, qty); err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, "catalog:deduct", productID, qty)
	return nil
}

// AddStock increments the availability counter.
func (s *Service) AddStock(ctx context.Context, companyID, productID int64, qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}
	if err := s.repo.AddStock(ctx, companyID, productID, qty); err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, "catalog:add", productID, qty)
	return nil
}

// SetStock overwrites the availability counter. Reconciliation uses it to
// bring the counter back to what the movement ledger says.
func (s *Service) SetStock(ctx context.Context, companyID, productID int64, qty float64) error {
	if qty < 0 {
		return fmt.Errorf("%w: stock cannot be negative", httpx.ErrValidation)
	}
	if err := s.repo.SetStock(ctx, companyID, productID, qty); err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, "catalog:set", productID, qty)
	return nil
}

// StockQuantities returns every product counter for the company.
func (s *Service) StockQuantities(ctx context.Context, companyID int64) (map[int64]float64, error) {
	return s.repo.StockQuantities(ctx, companyID)
}

// ListBelowStock lists products under the low-stock threshold.
func (s *Service) ListBelowStock(ctx context.Context, threshold float64) ([]Product, error) {
	return s.repo.ListBelowStock(ctx, threshold)
}

func (s *Service) recordAudit(ctx context.Context, companyID int64, action string, productID int64, qty float64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Action:    action,
		Entity:    "product",
		EntityID:  fmt.Sprintf("%d", productID),
		Meta:      map[string]any{"qty": qty},
	})
}
