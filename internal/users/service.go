package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Service handles user administration business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all users of the company.
func (s *Service) List(ctx context.Context, companyID int64) ([]User, error) {
	return s.repo.List(ctx, companyID)
}

// Get returns a single user within the company scope.
func (s *Service) Get(ctx context.Context, companyID, id int64) (*User, error) {
	return s.repo.Get(ctx, companyID, id)
}

// Create hashes the password and persists a new account.
func (s *Service) Create(ctx context.Context, companyID int64, req CreateUserRequest) (*User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		CompanyID: companyID,
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      req.Role,
		IsActive:  true,
	}
	id, err := s.repo.Create(ctx, companyID, user, string(hashed))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.repo.Get(ctx, companyID, id)
}

// Update mutates name, role or active flag.
func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateUserRequest) (*User, error) {
	updates := make(map[string]any)
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return s.repo.Get(ctx, companyID, id)
}

// Deactivate disables an account. Deactivated users fail authentication but
// remain referenced by historical orders.
func (s *Service) Deactivate(ctx context.Context, companyID, id int64) error {
	return s.repo.Update(ctx, companyID, id, map[string]any{"is_active": false})
}
