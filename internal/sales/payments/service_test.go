package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/sales/payments"
)

type memoryOrder struct {
	companyID     int64
	totalAmount   float64
	paymentStatus string
}

type memoryRepo struct {
	nextID   int64
	orders   map[int64]*memoryOrder
	payments map[int64]payments.Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, orders: make(map[int64]*memoryOrder), payments: make(map[int64]payments.Payment)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, payments.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, companyID, paymentID int64) (*payments.Payment, error) {
	p, ok := m.payments[paymentID]
	if !ok || p.CompanyID != companyID {
		return nil, httpx.ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *memoryRepo) ListByOrder(_ context.Context, companyID, orderID int64) ([]payments.Payment, error) {
	var out []payments.Payment
	for _, p := range m.payments {
		if p.CompanyID == companyID && p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) OrderFinancials(_ context.Context, companyID, orderID int64) (*payments.OrderFinancials, error) {
	o, ok := m.orders[orderID]
	if !ok || o.companyID != companyID {
		return nil, httpx.ErrNotFound
	}
	return &payments.OrderFinancials{OrderID: orderID, TotalAmount: o.totalAmount, PaymentStatus: o.paymentStatus}, nil
}

func (m *memoryRepo) SumCompleted(_ context.Context, orderID int64) (float64, int, error) {
	var sum float64
	var count int
	for _, p := range m.payments {
		if p.OrderID == orderID && p.Status == payments.StatusCompleted {
			sum += p.Amount
			count++
		}
	}
	return sum, count, nil
}

func (m *memoryRepo) LockOrder(ctx context.Context, companyID, orderID int64) (*payments.OrderFinancials, error) {
	return m.OrderFinancials(ctx, companyID, orderID)
}

func (m *memoryRepo) Insert(_ context.Context, p payments.Payment) (int64, error) {
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.nextID++
	m.payments[p.ID] = p
	return p.ID, nil
}

func (m *memoryRepo) LockPayment(ctx context.Context, companyID, paymentID int64) (*payments.Payment, error) {
	return m.Get(ctx, companyID, paymentID)
}

func (m *memoryRepo) MarkRefunded(_ context.Context, paymentID int64) error {
	p, ok := m.payments[paymentID]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Status = payments.StatusRefunded
	m.payments[paymentID] = p
	return nil
}

func (m *memoryRepo) SetOrderPaymentStatus(_ context.Context, companyID, orderID int64, status string) error {
	o, ok := m.orders[orderID]
	if !ok || o.companyID != companyID {
		return httpx.ErrNotFound
	}
	o.paymentStatus = status
	return nil
}

func newService(total float64) (*payments.Service, *memoryRepo) {
	repo := newMemoryRepo()
	repo.orders[1] = &memoryOrder{companyID: 1, totalAmount: total, paymentStatus: "unpaid"}
	return payments.NewService(repo, nil), repo
}

func TestRecordPaymentValidations(t *testing.T) {
	svc, _ := newService(200)

	_, err := svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 0})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 250})
	require.ErrorIs(t, err, payments.ErrExceedsBalance)

	_, err = svc.RecordPayment(context.Background(), 1, 10, 999, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 50})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	// Another company's order is invisible.
	_, err = svc.RecordPayment(context.Background(), 2, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 50})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecordPaymentDrivesPaymentStatus(t *testing.T) {
	svc, repo := newService(200)

	p, err := svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCard, Amount: 120})
	require.NoError(t, err)
	require.Equal(t, payments.StatusCompleted, p.Status)
	require.Equal(t, "partially_paid", repo.orders[1].paymentStatus)

	_, err = svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 80})
	require.NoError(t, err)
	require.Equal(t, "paid", repo.orders[1].paymentStatus)

	// Fully paid order rejects any further amount.
	_, err = svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 0.01})
	require.ErrorIs(t, err, payments.ErrExceedsBalance)
}

func TestRefundPayment(t *testing.T) {
	svc, repo := newService(200)

	p, err := svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCard, Amount: 200})
	require.NoError(t, err)
	require.Equal(t, "paid", repo.orders[1].paymentStatus)

	refunded, err := svc.RefundPayment(context.Background(), 1, 10, p.ID)
	require.NoError(t, err)
	require.Equal(t, payments.StatusRefunded, refunded.Status)
	require.Equal(t, "unpaid", repo.orders[1].paymentStatus)

	_, err = svc.RefundPayment(context.Background(), 1, 10, p.ID)
	require.ErrorIs(t, err, payments.ErrAlreadyRefunded)

	// Foreign company cannot refund.
	_, err = svc.RefundPayment(context.Background(), 2, 10, p.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRefundPartialRecomputes(t *testing.T) {
	svc, repo := newService(300)

	first, err := svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 100})
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCard, Amount: 200})
	require.NoError(t, err)
	require.Equal(t, "paid", repo.orders[1].paymentStatus)

	_, err = svc.RefundPayment(context.Background(), 1, 10, first.ID)
	require.NoError(t, err)
	require.Equal(t, "partially_paid", repo.orders[1].paymentStatus)

	// The refunded slot opens the balance again.
	summary, err := svc.GetPaymentSummary(context.Background(), 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 200, summary.TotalPaid, 1e-9)
	require.InDelta(t, 100, summary.RemainingBalance, 1e-9)
	require.Equal(t, 1, summary.PaymentCount)
}

func TestPaymentSummary(t *testing.T) {
	svc, _ := newService(200)

	summary, err := svc.GetPaymentSummary(context.Background(), 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 200, summary.TotalAmount, 1e-9)
	require.Zero(t, summary.TotalPaid)
	require.InDelta(t, 200, summary.RemainingBalance, 1e-9)
	require.Equal(t, "unpaid", summary.PaymentStatus)
	require.Zero(t, summary.PaymentCount)

	_, err = svc.GetPaymentSummary(context.Background(), 1, 999)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

// The worked settlement flow: a 200.00 order paid in full, then any further
// payment rejected.
func TestSettlementScenario(t *testing.T) {
	svc, repo := newService(200)

	_, err := svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 200})
	require.NoError(t, err)
	require.Equal(t, "paid", repo.orders[1].paymentStatus)

	summary, err := svc.GetPaymentSummary(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Zero(t, summary.RemainingBalance)

	_, err = svc.RecordPayment(context.Background(), 1, 10, 1, payments.RecordPaymentRequest{Method: payments.MethodCash, Amount: 1})
	require.ErrorIs(t, err, payments.ErrExceedsBalance)
	require.Contains(t, err.Error(), "remaining")
}
