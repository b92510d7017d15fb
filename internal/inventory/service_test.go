package inventory_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/inventory"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

type memoryRepo struct {
	nextLocationID int64
	nextMovementID int64
	locations      map[int64]inventory.Location
	movements      []inventory.StockMovement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextLocationID: 1, nextMovementID: 1, locations: make(map[int64]inventory.Location)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetLocation(_ context.Context, companyID, id int64) (*inventory.Location, error) {
	l, ok := m.locations[id]
	if !ok || l.CompanyID != companyID {
		return nil, httpx.ErrNotFound
	}
	out := l
	return &out, nil
}

func (m *memoryRepo) GetLocationByCode(_ context.Context, companyID int64, code string) (*inventory.Location, error) {
	for _, l := range m.locations {
		if l.CompanyID == companyID && l.Code == code {
			out := l
			return &out, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) ListLocations(_ context.Context, companyID int64, includeInactive bool) ([]inventory.Location, error) {
	var out []inventory.Location
	for _, l := range m.locations {
		if l.CompanyID == companyID && (includeInactive || l.IsActive) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateLocation(_ context.Context, l inventory.Location) (int64, error) {
	l.ID = m.nextLocationID
	l.IsActive = true
	m.nextLocationID++
	m.locations[l.ID] = l
	return l.ID, nil
}

func (m *memoryRepo) UpdateLocation(_ context.Context, companyID, id int64, updates map[string]any) error {
	l, ok := m.locations[id]
	if !ok || l.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	if v, ok := updates["capacity"]; ok {
		l.Capacity = v.(float64)
	}
	if v, ok := updates["is_active"]; ok {
		l.IsActive = v.(bool)
	}
	m.locations[id] = l
	return nil
}

func (m *memoryRepo) ListMovements(_ context.Context, req inventory.ListMovementsRequest) ([]inventory.StockMovement, int, error) {
	var out []inventory.StockMovement
	for _, mv := range m.movements {
		if mv.CompanyID != req.CompanyID {
			continue
		}
		if req.LocationID != 0 && mv.LocationID != req.LocationID {
			continue
		}
		if req.ProductID != 0 && mv.ProductID != req.ProductID {
			continue
		}
		out = append(out, mv)
	}
	return out, len(out), nil
}

func (m *memoryRepo) LedgerStock(_ context.Context, companyID, locationID int64) (float64, error) {
	var sum float64
	for _, mv := range m.movements {
		if mv.CompanyID != companyID || mv.LocationID != locationID {
			continue
		}
		sum += mv.Type.Sign() * mv.Quantity
	}
	if sum < 0 {
		sum = 0
	}
	return sum, nil
}

func (m *memoryRepo) ProductLedgerStocks(_ context.Context, companyID int64) (map[int64]float64, error) {
	stocks := make(map[int64]float64)
	for _, mv := range m.movements {
		if mv.CompanyID != companyID {
			continue
		}
		stocks[mv.ProductID] += mv.Type.Sign() * mv.Quantity
	}
	for id, sum := range stocks {
		if sum < 0 {
			stocks[id] = 0
		}
	}
	return stocks, nil
}

func (m *memoryRepo) LockLocation(ctx context.Context, companyID, locationID int64) (*inventory.Location, error) {
	return m.GetLocation(ctx, companyID, locationID)
}

func (m *memoryRepo) PickLocation(_ context.Context, companyID int64, qty float64) (*inventory.Location, error) {
	var best *inventory.Location
	for _, l := range m.locations {
		if l.CompanyID != companyID || !l.IsActive || l.CurrentStock < qty {
			continue
		}
		if best == nil || l.CurrentStock > best.CurrentStock {
			out := l
			best = &out
		}
	}
	if best == nil {
		return nil, inventory.ErrNoLocationAvailable
	}
	return best, nil
}

func (m *memoryRepo) ApplyDelta(_ context.Context, companyID, locationID int64, delta float64) error {
	l, ok := m.locations[locationID]
	if !ok || l.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	l.CurrentStock += delta
	m.locations[locationID] = l
	return nil
}

func (m *memoryRepo) InsertMovement(_ context.Context, mv inventory.StockMovement) (int64, error) {
	mv.ID = m.nextMovementID
	mv.CreatedAt = time.Now()
	m.nextMovementID++
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

type stubProducts struct {
	stock   map[int64]float64
	failAdd bool
}

func (s *stubProducts) DeductStock(_ context.Context, _, productID int64, qty float64) error {
	if s.stock[productID] < qty {
		return fmt.Errorf("%w: insufficient stock", httpx.ErrBusinessRule)
	}
	s.stock[productID] -= qty
	return nil
}

func (s *stubProducts) AddStock(_ context.Context, _, productID int64, qty float64) error {
	if s.failAdd {
		return fmt.Errorf("catalog unavailable")
	}
	s.stock[productID] += qty
	return nil
}

func (s *stubProducts) StockQuantities(_ context.Context, _ int64) (map[int64]float64, error) {
	quantities := make(map[int64]float64, len(s.stock))
	for id, qty := range s.stock {
		quantities[id] = qty
	}
	return quantities, nil
}

func (s *stubProducts) SetStock(_ context.Context, _, productID int64, qty float64) error {
	s.stock[productID] = qty
	return nil
}

func newService(t *testing.T) (*inventory.Service, *memoryRepo, *stubProducts) {
	t.Helper()
	repo := newMemoryRepo()
	products := &stubProducts{stock: map[int64]float64{1: 100}}
	svc := inventory.NewService(slog.New(slog.DiscardHandler), repo, products, nil)
	return svc, repo, products
}

func seedLocation(t *testing.T, repo *memoryRepo, companyID int64, code string, capacity, stock float64) int64 {
	t.Helper()
	id, err := repo.CreateLocation(context.Background(), inventory.Location{CompanyID: companyID, Code: code, Name: code, Capacity: capacity})
	require.NoError(t, err)
	l := repo.locations[id]
	l.CurrentStock = stock
	repo.locations[id] = l
	return id
}

func TestAdjustStockBounds(t *testing.T) {
	svc, repo, products := newService(t)
	locID := seedLocation(t, repo, 1, "WH-A", 50, 40)

	// Inbound within capacity.
	mv, err := svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementIn, Quantity: 10,
	})
	require.NoError(t, err)
	require.Equal(t, inventory.MovementIn, mv.Type)
	require.Equal(t, float64(50), repo.locations[locID].CurrentStock)
	require.Equal(t, float64(110), products.stock[1])

	// One more unit would overflow.
	_, err = svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementIn, Quantity: 1,
	})
	require.ErrorIs(t, err, inventory.ErrCapacityExceeded)

	// Outbound below zero is rejected and the product counter is restored.
	_, err = svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementDamage, Quantity: 60,
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Equal(t, float64(110), products.stock[1])
	require.Equal(t, float64(50), repo.locations[locID].CurrentStock)
}

func TestAdjustStockRejectsForeignLocation(t *testing.T) {
	svc, repo, _ := newService(t)
	locID := seedLocation(t, repo, 2, "WH-A", 50, 10)

	_, err := svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementIn, Quantity: 5,
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecordOrderOutPicksLargestLocation(t *testing.T) {
	svc, repo, _ := newService(t)
	seedLocation(t, repo, 1, "WH-A", 100, 10)
	big := seedLocation(t, repo, 1, "WH-B", 100, 80)

	mv, err := svc.RecordOrderOut(context.Background(), 1, 10, 1, 5, 42)
	require.NoError(t, err)
	require.Equal(t, big, mv.LocationID)
	require.Equal(t, inventory.MovementOut, mv.Type)
	require.NotNil(t, mv.RefID)
	require.Equal(t, int64(42), *mv.RefID)
	require.Equal(t, float64(75), repo.locations[big].CurrentStock)
}

func TestRecordOrderOutFailsWhenNoLocationCanSatisfy(t *testing.T) {
	svc, repo, _ := newService(t)
	seedLocation(t, repo, 1, "WH-A", 100, 3)
	seedLocation(t, repo, 1, "WH-B", 100, 4)

	// Combined stock is 7 but no single location holds 5.
	_, err := svc.RecordOrderOut(context.Background(), 1, 10, 1, 5, 42)
	require.ErrorIs(t, err, inventory.ErrNoLocationAvailable)
}

func TestUpdateLocationCapacityBelowStock(t *testing.T) {
	svc, repo, _ := newService(t)
	locID := seedLocation(t, repo, 1, "WH-A", 100, 40)

	smaller := 30.0
	_, err := svc.UpdateLocation(context.Background(), 1, locID, inventory.UpdateLocationRequest{Capacity: &smaller})
	require.ErrorIs(t, err, inventory.ErrCapacityBelowStock)

	larger := 60.0
	l, err := svc.UpdateLocation(context.Background(), 1, locID, inventory.UpdateLocationRequest{Capacity: &larger})
	require.NoError(t, err)
	require.Equal(t, float64(60), l.Capacity)
}

func TestReconcileCountersRepairsDrift(t *testing.T) {
	svc, repo, products := newService(t)
	locID := seedLocation(t, repo, 1, "WH-A", 100, 0)
	products.stock[1] = 0

	_, err := svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementIn, Quantity: 30,
	})
	require.NoError(t, err)

	// Counter drifts from the ledger.
	l := repo.locations[locID]
	l.CurrentStock = 12
	repo.locations[locID] = l

	rec, err := svc.ReconcileCounters(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rec.Locations, 1)
	require.Empty(t, rec.Products)
	require.Equal(t, float64(12), rec.Locations[0].Recorded)
	require.Equal(t, float64(30), rec.Locations[0].Computed)
	require.Equal(t, float64(30), repo.locations[locID].CurrentStock)

	// A clean ledger reports nothing.
	rec, err = svc.ReconcileCounters(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, rec.Repaired())
}

func TestReconcileCountersRepairsProductMirror(t *testing.T) {
	svc, repo, products := newService(t)
	locID := seedLocation(t, repo, 1, "WH-A", 100, 0)
	products.stock[1] = 0

	// The movement commits but the product counter mirror fails.
	products.failAdd = true
	_, err := svc.AdjustStock(context.Background(), 1, 10, inventory.AdjustStockRequest{
		LocationID: locID, ProductID: 1, Type: inventory.MovementIn, Quantity: 30,
	})
	require.Error(t, err)
	require.Len(t, repo.movements, 1)
	require.Equal(t, float64(30), repo.locations[locID].CurrentStock)
	require.Equal(t, float64(0), products.stock[1])

	products.failAdd = false
	rec, err := svc.ReconcileCounters(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, rec.Locations)
	require.Len(t, rec.Products, 1)
	require.Equal(t, int64(1), rec.Products[0].ProductID)
	require.Equal(t, float64(0), rec.Products[0].Recorded)
	require.Equal(t, float64(30), rec.Products[0].Computed)
	require.Equal(t, float64(30), products.stock[1])
}

func TestReconcileCountersZeroesUnmovedProduct(t *testing.T) {
	svc, _, products := newService(t)

	// Product 1 holds a counter of 100 but has no movements at all.
	rec, err := svc.ReconcileCounters(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rec.Products, 1)
	require.Equal(t, int64(1), rec.Products[0].ProductID)
	require.Equal(t, float64(100), rec.Products[0].Recorded)
	require.Equal(t, float64(0), rec.Products[0].Computed)
	require.Equal(t, float64(0), products.stock[1])
}
