package orders_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/catalog"
	"github.com/golavi5/tillpoint/internal/inventory"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/sales/orders"
)

type memoryRepo struct {
	nextOrderID int64
	nextItemID  int64
	orders      map[int64]orders.Order
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextOrderID: 1, nextItemID: 1, orders: make(map[int64]orders.Order)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, orders.Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, companyID, id int64) (*orders.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.CompanyID != companyID {
		return nil, httpx.ErrNotFound
	}
	out := o
	out.Items = append([]orders.OrderItem(nil), o.Items...)
	return &out, nil
}

func (m *memoryRepo) List(_ context.Context, req orders.ListOrdersRequest) ([]orders.Order, int, error) {
	var out []orders.Order
	for _, o := range m.orders {
		if o.CompanyID == req.CompanyID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, o orders.Order) (int64, error) {
	o.ID = m.nextOrderID
	o.CreatedAt = time.Now()
	m.nextOrderID++
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, item orders.OrderItem) (int64, error) {
	o, ok := m.orders[item.OrderID]
	if !ok {
		return 0, httpx.ErrNotFound
	}
	item.ID = m.nextItemID
	m.nextItemID++
	o.Items = append(o.Items, item)
	m.orders[item.OrderID] = o
	return item.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, companyID, id int64, updates map[string]any) error {
	o, ok := m.orders[id]
	if !ok || o.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	if v, ok := updates["status"]; ok {
		o.Status = orders.Status(v.(string))
	}
	if v, ok := updates["payment_status"]; ok {
		o.PaymentStatus = orders.PaymentStatus(v.(string))
	}
	if v, ok := updates["customer_id"]; ok {
		cid := v.(int64)
		o.CustomerID = &cid
	}
	if v, ok := updates["notes"]; ok {
		notes := v.(string)
		o.Notes = &notes
	}
	if v, ok := updates["confirmed_at"]; ok {
		at := v.(time.Time)
		o.ConfirmedAt = &at
	}
	if v, ok := updates["completed_at"]; ok {
		at := v.(time.Time)
		o.CompletedAt = &at
	}
	m.orders[id] = o
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, companyID, id int64) error {
	o, ok := m.orders[id]
	if !ok || o.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memoryRepo) NextSequence(_ context.Context, companyID int64, day time.Time) (int, error) {
	prefix := "ORD" + day.Format("20060102")
	max := 0
	for _, o := range m.orders {
		if o.CompanyID != companyID || !strings.HasPrefix(o.OrderNumber, prefix) {
			continue
		}
		var seq int
		fmt.Sscanf(o.OrderNumber[len(prefix):], "%d", &seq)
		if seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

type stubCatalog struct {
	products map[int64]catalog.Product
}

func (s *stubCatalog) Get(_ context.Context, companyID, id int64) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok || p.CompanyID != companyID {
		return nil, httpx.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *stubCatalog) DeductStock(_ context.Context, companyID, productID int64, qty float64) error {
	p, ok := s.products[productID]
	if !ok || p.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	if p.StockQuantity < qty {
		return catalog.ErrInsufficientStock
	}
	p.StockQuantity -= qty
	s.products[productID] = p
	return nil
}

func (s *stubCatalog) AddStock(_ context.Context, companyID, productID int64, qty float64) error {
	p := s.products[productID]
	p.StockQuantity += qty
	s.products[productID] = p
	return nil
}

type stubRecorder struct {
	nextID   int64
	failFor  map[int64]bool
	recorded []inventory.StockMovement
	returns  []inventory.StockMovement
}

func (s *stubRecorder) RecordOrderOut(_ context.Context, companyID, actorID, productID int64, qty float64, orderID int64) (*inventory.StockMovement, error) {
	if s.failFor[productID] {
		return nil, inventory.ErrNoLocationAvailable
	}
	s.nextID++
	refType := "order"
	mv := inventory.StockMovement{
		ID: s.nextID, CompanyID: companyID, LocationID: 1, ProductID: productID,
		Type: inventory.MovementOut, Quantity: qty, RefType: &refType, RefID: &orderID, ActorID: actorID,
	}
	s.recorded = append(s.recorded, mv)
	return &mv, nil
}

func (s *stubRecorder) AdjustStock(_ context.Context, companyID, actorID int64, req inventory.AdjustStockRequest) (*inventory.StockMovement, error) {
	s.nextID++
	mv := inventory.StockMovement{
		ID: s.nextID, CompanyID: companyID, LocationID: req.LocationID, ProductID: req.ProductID,
		Type: req.Type, Quantity: req.Quantity, ActorID: actorID,
	}
	s.returns = append(s.returns, mv)
	return &mv, nil
}

type stubLoyalty struct {
	awarded map[int64]int64
}

func (s *stubLoyalty) AwardPoints(_ context.Context, _, customerID, points int64) error {
	if s.awarded == nil {
		s.awarded = make(map[int64]int64)
	}
	s.awarded[customerID] += points
	return nil
}

type fixture struct {
	svc      *orders.Service
	repo     *memoryRepo
	catalog  *stubCatalog
	recorder *stubRecorder
	loyalty  *stubLoyalty
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	cat := &stubCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, CompanyID: 1, Name: "Espresso Beans", Price: 100, StockQuantity: 50},
		2: {ID: 2, CompanyID: 1, Name: "Filter Paper", Price: 10, TaxRate: 0.1, StockQuantity: 20},
	}}
	recorder := &stubRecorder{failFor: make(map[int64]bool)}
	loyalty := &stubLoyalty{}
	svc := orders.NewService(slog.New(slog.DiscardHandler), repo, cat, recorder, loyalty, nil)
	return &fixture{svc: svc, repo: repo, catalog: cat, recorder: recorder, loyalty: loyalty}
}

func (f *fixture) createOrder(t *testing.T, items ...orders.CreateOrderItemRequest) *orders.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{Items: items})
	require.NoError(t, err)
	return o
}

func (f *fixture) advance(t *testing.T, id int64, statuses ...orders.Status) *orders.Order {
	t.Helper()
	var o *orders.Order
	var err error
	for _, st := range statuses {
		o, err = f.svc.UpdateStatus(context.Background(), 1, 10, id, st)
		require.NoError(t, err)
	}
	return o
}

func TestCreateValidations(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{})
	require.ErrorIs(t, err, orders.ErrEmptyOrder)

	_, err = f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{
		Items: []orders.CreateOrderItemRequest{{ProductID: 999, Quantity: 1}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{
		Items: []orders.CreateOrderItemRequest{{ProductID: 1, Quantity: 60}},
	})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{
		DiscountAmount: 15,
		Items: []orders.CreateOrderItemRequest{
			{ProductID: 1, Quantity: 2},  // 200, no tax
			{ProductID: 2, Quantity: 5},  // 50 + 5 tax
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusDraft, o.Status)
	require.Equal(t, orders.PaymentUnpaid, o.PaymentStatus)
	require.InDelta(t, 250, o.Subtotal, 1e-9)
	require.InDelta(t, 5, o.TaxAmount, 1e-9)
	require.InDelta(t, 240, o.TotalAmount, 1e-9)
	require.Len(t, o.Items, 2)
	require.Equal(t, "Espresso Beans", o.Items[0].ProductName)

	// Stock is only checked at creation, not deducted.
	require.Equal(t, float64(50), f.catalog.products[1].StockQuantity)
}

func TestOrderNumberSequence(t *testing.T) {
	f := newFixture(t)
	today := "ORD" + time.Now().Format("20060102")

	first := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	second := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})

	require.Equal(t, today+"00001", first.OrderNumber)
	require.Equal(t, today+"00002", second.OrderNumber)
	require.Len(t, first.OrderNumber, 16)
}

func TestOrderNumberSequenceResetsPerDay(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return day })

	first := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	second := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	require.Equal(t, "ORD2026082700001", first.OrderNumber)
	require.Equal(t, "ORD2026082700002", second.OrderNumber)

	// Midnight passes; the sequence starts over.
	f.svc.WithClock(func() time.Time { return day.AddDate(0, 0, 1) })
	third := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	require.Equal(t, "ORD2026082800001", third.OrderNumber)
}

func TestStatusTransitionTable(t *testing.T) {
	allowed := map[orders.Status][]orders.Status{
		orders.StatusDraft:     {orders.StatusPending, orders.StatusCancelled},
		orders.StatusPending:   {orders.StatusConfirmed, orders.StatusCancelled},
		orders.StatusConfirmed: {orders.StatusCompleted, orders.StatusVoided},
		orders.StatusCompleted: {},
		orders.StatusCancelled: {},
		orders.StatusVoided:    {},
	}
	all := []orders.Status{
		orders.StatusDraft, orders.StatusPending, orders.StatusConfirmed,
		orders.StatusCompleted, orders.StatusCancelled, orders.StatusVoided,
	}

	for from, nexts := range allowed {
		ok := make(map[orders.Status]bool)
		for _, n := range nexts {
			ok[n] = true
		}
		for _, to := range all {
			require.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		require.Equal(t, len(nexts) == 0, from.Terminal())
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})

	_, err := f.svc.UpdateStatus(context.Background(), 1, 10, o.ID, orders.StatusCompleted)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	require.Contains(t, err.Error(), "pending")
	require.Contains(t, err.Error(), "cancelled")

	_, err = f.svc.UpdateStatus(context.Background(), 1, 10, o.ID, orders.Status("shipped"))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestConfirmCommitsStock(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 2})

	confirmed := f.advance(t, o.ID, orders.StatusPending, orders.StatusConfirmed)
	require.Equal(t, orders.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Equal(t, float64(48), f.catalog.products[1].StockQuantity)
	require.Len(t, f.recorder.recorded, 1)
	require.Equal(t, inventory.MovementOut, f.recorder.recorded[0].Type)
	require.Equal(t, int64(o.ID), *f.recorder.recorded[0].RefID)
}

func TestConfirmFailureRestoresStock(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t,
		orders.CreateOrderItemRequest{ProductID: 1, Quantity: 2},
		orders.CreateOrderItemRequest{ProductID: 2, Quantity: 3},
	)
	f.advance(t, o.ID, orders.StatusPending)

	// No single location can place the second line.
	f.recorder.failFor[2] = true
	_, err := f.svc.UpdateStatus(context.Background(), 1, 10, o.ID, orders.StatusConfirmed)
	require.ErrorIs(t, err, inventory.ErrNoLocationAvailable)

	// Second line's deduction was undone directly; the first line was
	// released with a RETURN movement.
	require.Equal(t, float64(20), f.catalog.products[2].StockQuantity)
	require.Len(t, f.recorder.returns, 1)
	require.Equal(t, int64(1), f.recorder.returns[0].ProductID)
	require.Equal(t, inventory.MovementReturn, f.recorder.returns[0].Type)

	// Order stays pending.
	current, err := f.svc.Get(context.Background(), 1, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPending, current.Status)
}

func TestCompleteAwardsLoyalty(t *testing.T) {
	f := newFixture(t)
	customerID := int64(7)
	o, err := f.svc.Create(context.Background(), 1, 10, orders.CreateOrderRequest{
		CustomerID: &customerID,
		Items:      []orders.CreateOrderItemRequest{{ProductID: 2, Quantity: 5}},
	})
	require.NoError(t, err)

	completed := f.advance(t, o.ID, orders.StatusPending, orders.StatusConfirmed, orders.StatusCompleted)
	require.Equal(t, orders.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Total is 55.00, points accrue at floor(total).
	require.Equal(t, int64(55), f.loyalty.awarded[customerID])
}

func TestCompleteWithoutCustomerSkipsLoyalty(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	f.advance(t, o.ID, orders.StatusPending, orders.StatusConfirmed, orders.StatusCompleted)
	require.Empty(t, f.loyalty.awarded)
}

func TestUpdateOnlyWhileNotTerminal(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})

	notes := "rush order"
	updated, err := f.svc.Update(context.Background(), 1, o.ID, orders.UpdateOrderRequest{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, "rush order", *updated.Notes)

	f.advance(t, o.ID, orders.StatusCancelled)
	_, err = f.svc.Update(context.Background(), 1, o.ID, orders.UpdateOrderRequest{Notes: &notes})
	require.ErrorIs(t, err, orders.ErrNotEditable)
}

func TestDeleteDraftOnly(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})

	require.NoError(t, f.svc.Delete(context.Background(), 1, 10, o.ID))
	_, err := f.svc.Get(context.Background(), 1, o.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	confirmed := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})
	f.advance(t, confirmed.ID, orders.StatusPending, orders.StatusConfirmed)
	err = f.svc.Delete(context.Background(), 1, 10, confirmed.ID)
	require.ErrorIs(t, err, orders.ErrDeleteNotDraft)
	require.Contains(t, err.Error(), "cancel or void")
}

func TestCrossTenantOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 1})

	_, err := f.svc.Get(context.Background(), 2, o.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = f.svc.UpdateStatus(context.Background(), 2, 10, o.ID, orders.StatusPending)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

// Walks the draft order from the worked example: 2 units at 100.00, no tax,
// no discount.
func TestOrderLifecycleScenario(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t, orders.CreateOrderItemRequest{ProductID: 1, Quantity: 2})
	require.InDelta(t, 200, o.Subtotal, 1e-9)
	require.InDelta(t, 200, o.TotalAmount, 1e-9)
	require.Equal(t, orders.StatusDraft, o.Status)

	confirmed := f.advance(t, o.ID, orders.StatusPending, orders.StatusConfirmed)
	require.Equal(t, float64(48), f.catalog.products[1].StockQuantity)
	require.Len(t, f.recorder.recorded, 1)
	require.Equal(t, orders.StatusConfirmed, confirmed.Status)
}
