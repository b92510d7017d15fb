// Package inventory tracks warehouse locations and the append-only stock
// movement ledger behind them.
package inventory

import (
	"fmt"
	"time"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn records inbound stock (receiving).
	MovementIn MovementType = "IN"
	// MovementOut records outbound stock (sales, shipments).
	MovementOut MovementType = "OUT"
	// MovementAdjust records a manual downward correction.
	MovementAdjust MovementType = "ADJUST"
	// MovementDamage records stock written off as damaged.
	MovementDamage MovementType = "DAMAGE"
	// MovementReturn records stock returned by a customer.
	MovementReturn MovementType = "RETURN"
)

// Sign returns the direction a movement applies to the location counter.
// Inbound and returns add, everything else subtracts.
func (t MovementType) Sign() float64 {
	switch t {
	case MovementIn, MovementReturn:
		return 1
	case MovementOut, MovementAdjust, MovementDamage:
		return -1
	}
	return 0
}

// Location is a company-scoped warehouse location with a bounded counter.
type Location struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Capacity     float64   `json:"capacity"`
	CurrentStock float64   `json:"current_stock"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StockMovement is an immutable ledger entry. Quantity is always positive;
// the movement type carries the direction.
type StockMovement struct {
	ID         int64        `json:"id"`
	CompanyID  int64        `json:"company_id"`
	LocationID int64        `json:"location_id"`
	ProductID  int64        `json:"product_id"`
	Type       MovementType `json:"type"`
	Quantity   float64      `json:"quantity"`
	RefType    *string      `json:"ref_type,omitempty"`
	RefID      *int64       `json:"ref_id,omitempty"`
	Note       string       `json:"note,omitempty"`
	ActorID    int64        `json:"actor_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Drift reports a location whose counter disagreed with the ledger.
type Drift struct {
	LocationID int64   `json:"location_id"`
	Code       string  `json:"code"`
	Recorded   float64 `json:"recorded"`
	Computed   float64 `json:"computed"`
}

// ProductDrift reports a product counter that disagreed with the ledger.
type ProductDrift struct {
	ProductID int64   `json:"product_id"`
	Recorded  float64 `json:"recorded"`
	Computed  float64 `json:"computed"`
}

// Reconciliation reports every counter repaired from the movement ledger.
type Reconciliation struct {
	Locations []Drift        `json:"locations"`
	Products  []ProductDrift `json:"products"`
}

// Repaired returns the number of counters that were out of step.
func (r Reconciliation) Repaired() int {
	return len(r.Locations) + len(r.Products)
}

// ErrCodeExists indicates a duplicate location code within the company.
var ErrCodeExists = fmt.Errorf("%w: location code already exists", httpx.ErrDuplicate)

// ErrCapacityExceeded indicates a movement that would overflow the location.
var ErrCapacityExceeded = fmt.Errorf("%w: location capacity exceeded", httpx.ErrBusinessRule)

// ErrInsufficientStock indicates a movement that would take a location
// below zero.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock at location", httpx.ErrBusinessRule)

// ErrNoLocationAvailable indicates no location can satisfy an order pick.
var ErrNoLocationAvailable = fmt.Errorf("%w: insufficient stock available", httpx.ErrBusinessRule)

// ErrCapacityBelowStock indicates a capacity change below the held stock.
var ErrCapacityBelowStock = fmt.Errorf("%w: capacity below current stock", httpx.ErrBusinessRule)

// CreateLocationRequest carries the fields for a new location.
type CreateLocationRequest struct {
	Code     string  `json:"code" validate:"required,max=32"`
	Name     string  `json:"name" validate:"required,max=200"`
	Capacity float64 `json:"capacity" validate:"required,gt=0"`
}

// UpdateLocationRequest mutates location master data.
type UpdateLocationRequest struct {
	Name     *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Capacity *float64 `json:"capacity,omitempty" validate:"omitempty,gt=0"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// AdjustStockRequest posts a single movement against a location.
type AdjustStockRequest struct {
	LocationID int64        `json:"location_id" validate:"required"`
	ProductID  int64        `json:"product_id" validate:"required"`
	Type       MovementType `json:"type" validate:"required,oneof=IN OUT ADJUST DAMAGE RETURN"`
	Quantity   float64      `json:"quantity" validate:"required,gt=0"`
	Note       string       `json:"note,omitempty" validate:"max=500"`
}

// ListMovementsRequest filters the stock card listing.
type ListMovementsRequest struct {
	CompanyID  int64
	LocationID int64
	ProductID  int64
	Type       MovementType
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
