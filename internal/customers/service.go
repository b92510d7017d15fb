package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates customer operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns a customer within the company scope.
func (s *Service) Get(ctx context.Context, companyID, id int64) (*Customer, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a filtered page of customers.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.List(ctx, req)
}

// Create persists a new customer after checking code uniqueness.
func (s *Service) Create(ctx context.Context, companyID, createdBy int64, req CreateCustomerRequest) (*Customer, error) {
	existing, err := s.repo.GetByCode(ctx, companyID, req.Code)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, fmt.Errorf("check existing customer: %w", err)
	}
	if existing != nil {
		return nil, ErrCodeExists
	}

	customer := Customer{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
		CreatedBy: createdBy,
	}
	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, companyID, id)
}

// Update mutates customer master data.
func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateCustomerRequest) (*Customer, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.Get(ctx, companyID, id)
}

// AdjustLoyalty adds or redeems points. The balance never goes below zero.
func (s *Service) AdjustLoyalty(ctx context.Context, companyID, actorID, id int64, req AdjustLoyaltyRequest) (*Customer, error) {
	if req.Points == 0 {
		return nil, fmt.Errorf("%w: points must be non-zero", httpx.ErrValidation)
	}
	if err := s.repo.AdjustPoints(ctx, companyID, id, req.Points); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			ActorID:   actorID,
			Action:    "customers:loyalty",
			Entity:    "customer",
			EntityID:  fmt.Sprintf("%d", id),
			Meta:      map[string]any{"points": req.Points, "reason": req.Reason},
		})
	}
	return s.repo.Get(ctx, companyID, id)
}

// AwardPoints credits points earned by a completed order. A missing or
// deactivated customer is not an error for the order flow.
func (s *Service) AwardPoints(ctx context.Context, companyID, customerID, points int64) error {
	if points <= 0 {
		return nil
	}
	err := s.repo.AdjustPoints(ctx, companyID, customerID, points)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil
	}
	return err
}
