// Package payments records payments against sales orders and keeps the
// order's payment status in step with them.
package payments

import (
	"fmt"
	"time"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

// Method enumerates accepted payment methods.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodOther    Method = "other"
)

// Status is the state of a single payment.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Payment is one completed or refunded payment against an order.
type Payment struct {
	ID            int64     `json:"id"`
	CompanyID     int64     `json:"company_id"`
	OrderID       int64     `json:"order_id"`
	Method        Method    `json:"method"`
	Amount        float64   `json:"amount"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	Status        Status    `json:"status"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summary aggregates an order's payment position.
type Summary struct {
	OrderID          int64   `json:"order_id"`
	TotalAmount      float64 `json:"total_amount"`
	TotalPaid        float64 `json:"total_paid"`
	RemainingBalance float64 `json:"remaining_balance"`
	PaymentStatus    string  `json:"payment_status"`
	PaymentCount     int     `json:"payment_count"`
}

// ErrExceedsBalance indicates a payment above the remaining balance.
var ErrExceedsBalance = fmt.Errorf("%w: amount exceeds remaining balance", httpx.ErrBusinessRule)

// ErrAlreadyRefunded indicates a second refund of the same payment.
var ErrAlreadyRefunded = fmt.Errorf("%w: payment already refunded", httpx.ErrConflict)

// RecordPaymentRequest carries the fields for a new payment.
type RecordPaymentRequest struct {
	Method        Method  `json:"method" validate:"required,oneof=cash card transfer other"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	TransactionID *string `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
}
