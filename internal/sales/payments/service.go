package payments

import (
	"context"
	"fmt"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/sales/orders"
	"github.com/golavi5/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates payment recording and refunds.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordPayment persists a completed payment after checking it does not
// exceed the remaining balance, then recomputes the order's payment status.
// The order row is locked so concurrent payments serialize.
func (s *Service) RecordPayment(ctx context.Context, companyID, userID, orderID int64, req RecordPaymentRequest) (*Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}

	payment := Payment{
		CompanyID:     companyID,
		OrderID:       orderID,
		Method:        req.Method,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		Status:        StatusCompleted,
		CreatedBy:     userID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.LockOrder(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		paid, _, err := tx.SumCompleted(ctx, orderID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		remaining := order.TotalAmount - paid
		if req.Amount > remaining+1e-9 {
			return fmt.Errorf("%w: remaining %.2f, requested %.2f", ErrExceedsBalance, remaining, req.Amount)
		}

		id, err := tx.Insert(ctx, payment)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		payment.ID = id
		return tx.SetOrderPaymentStatus(ctx, companyID, orderID, derivePaymentStatus(order.TotalAmount, paid+req.Amount))
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, companyID, userID, "payments:record", payment.ID, map[string]any{
		"order_id": orderID,
		"method":   string(req.Method),
		"amount":   req.Amount,
	})
	return s.repo.Get(ctx, companyID, payment.ID)
}

// RefundPayment marks a payment refunded and recomputes the order's payment
// status from the remaining completed payments.
func (s *Service) RefundPayment(ctx context.Context, companyID, userID, paymentID int64) (*Payment, error) {
	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.LockPayment(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == StatusRefunded {
			return ErrAlreadyRefunded
		}
		orderID = payment.OrderID

		order, err := tx.LockOrder(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := tx.MarkRefunded(ctx, paymentID); err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		paid, _, err := tx.SumCompleted(ctx, orderID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		return tx.SetOrderPaymentStatus(ctx, companyID, orderID, derivePaymentStatus(order.TotalAmount, paid))
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, companyID, userID, "payments:refund", paymentID, map[string]any{
		"order_id": orderID,
	})
	return s.repo.Get(ctx, companyID, paymentID)
}

// ListPayments returns the payments recorded against an order.
func (s *Service) ListPayments(ctx context.Context, companyID, orderID int64) ([]Payment, error) {
	if _, err := s.repo.OrderFinancials(ctx, companyID, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, companyID, orderID)
}

// GetPaymentSummary aggregates the order's payment position.
func (s *Service) GetPaymentSummary(ctx context.Context, companyID, orderID int64) (*Summary, error) {
	order, err := s.repo.OrderFinancials(ctx, companyID, orderID)
	if err != nil {
		return nil, err
	}
	paid, count, err := s.repo.SumCompleted(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	return &Summary{
		OrderID:          orderID,
		TotalAmount:      order.TotalAmount,
		TotalPaid:        paid,
		RemainingBalance: order.TotalAmount - paid,
		PaymentStatus:    order.PaymentStatus,
		PaymentCount:     count,
	}, nil
}

// derivePaymentStatus maps the paid amount onto the order payment states.
func derivePaymentStatus(total, paid float64) string {
	switch {
	case paid >= total-1e-9 && total > 0:
		return string(orders.PaymentPaid)
	case paid > 0:
		return string(orders.PaymentPartiallyPaid)
	default:
		return string(orders.PaymentUnpaid)
	}
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, paymentID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "payment",
		EntityID:  fmt.Sprintf("%d", paymentID),
		Meta:      meta,
	})
}
