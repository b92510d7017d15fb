// Package customers manages customer records and their loyalty points.
package customers

import (
	"fmt"
	"time"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Customer is a company-scoped customer record.
type Customer struct {
	ID            int64     `json:"id"`
	CompanyID     int64     `json:"company_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	IsActive      bool      `json:"is_active"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrCodeExists indicates a duplicate customer code within the company.
var ErrCodeExists = fmt.Errorf("%w: customer code already exists", httpx.ErrDuplicate)

// ErrInsufficientPoints indicates a redemption below zero.
var ErrInsufficientPoints = fmt.Errorf("%w: insufficient loyalty points", httpx.ErrBusinessRule)

// CreateCustomerRequest carries the fields for a new customer.
type CreateCustomerRequest struct {
	Code  string  `json:"code" validate:"required,max=32"`
	Name  string  `json:"name" validate:"required,max=200"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Notes *string `json:"notes,omitempty"`
}

// UpdateCustomerRequest mutates customer master data.
type UpdateCustomerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Notes    *string `json:"notes,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// AdjustLoyaltyRequest adds or redeems points. Negative points redeem.
type AdjustLoyaltyRequest struct {
	Points int64  `json:"points" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// ListCustomersRequest filters the customer listing.
type ListCustomersRequest struct {
	CompanyID int64
	Search    string
	IsActive  *bool
	Limit     int
	Offset    int
}
