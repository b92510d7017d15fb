// Package orders implements the sales order lifecycle: creation, status
// transitions, stock commitment on confirmation, and deletion of drafts.
package orders

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusVoided    Status = "voided"
)

// Transitions is the fixed directed graph of allowed status changes.
// Terminal states map to an empty set.
var Transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusVoided},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusVoided:    {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(Transitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range Transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedNext returns the sorted set of states reachable from s, for error
// messages.
func (s Status) AllowedNext() string {
	allowed := Transitions[s]
	if len(allowed) == 0 {
		return "none (terminal)"
	}
	names := make([]string, len(allowed))
	for i, st := range allowed {
		names[i] = string(st)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// PaymentStatus tracks how much of an order has been paid.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
)

// Order is a company-scoped sales order.
type Order struct {
	ID             int64         `json:"id"`
	CompanyID      int64         `json:"company_id"`
	OrderNumber    string        `json:"order_number"`
	CustomerID     *int64        `json:"customer_id,omitempty"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	Subtotal       float64       `json:"subtotal"`
	TaxAmount      float64       `json:"tax_amount"`
	DiscountAmount float64       `json:"discount_amount"`
	TotalAmount    float64       `json:"total_amount"`
	Notes          *string       `json:"notes,omitempty"`
	CreatedBy      int64         `json:"created_by"`
	ConfirmedAt    *time.Time    `json:"confirmed_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Items          []OrderItem   `json:"items,omitempty"`
}

// OrderItem is one priced line of an order. Amounts are frozen at creation.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Subtotal    float64 `json:"subtotal"`
	TaxAmount   float64 `json:"tax_amount"`
	Total       float64 `json:"total"`
}

// ErrEmptyOrder indicates an order with no items.
var ErrEmptyOrder = fmt.Errorf("%w: order must have at least one item", httpx.ErrValidation)

// ErrInvalidTransition indicates a status change outside the transition graph.
var ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", httpx.ErrConflict)

// ErrNotEditable indicates a mutation on a terminal order.
var ErrNotEditable = fmt.Errorf("%w: order can no longer be modified", httpx.ErrConflict)

// ErrDeleteNotDraft indicates a delete outside draft status.
var ErrDeleteNotDraft = fmt.Errorf("%w: only draft orders can be deleted, cancel or void the order instead", httpx.ErrConflict)

// ErrInsufficientStock indicates a requested quantity above available stock.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", httpx.ErrBusinessRule)
