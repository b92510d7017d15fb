package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/platform/httpx"
)

type memoryRepo struct {
	products map[int64]*Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]*Product), nextID: 1}
}

func (m *memoryRepo) Get(ctx context.Context, companyID, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok || p.CompanyID != companyID {
		return nil, httpx.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) GetBySKU(ctx context.Context, companyID int64, sku string) (*Product, error) {
	for _, p := range m.products {
		if p.CompanyID == companyID && p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	var result []Product
	for _, p := range m.products {
		if p.CompanyID == req.CompanyID {
			result = append(result, *p)
		}
	}
	return result, len(result), nil
}

func (m *memoryRepo) Create(ctx context.Context, p Product) (int64, error) {
	id := m.nextID
	m.nextID++
	p.ID = id
	p.IsActive = true
	m.products[id] = &p
	return id, nil
}

func (m *memoryRepo) Update(ctx context.Context, companyID, id int64, updates map[string]any) error {
	p, ok := m.products[id]
	if !ok || p.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := updates["price"]; ok {
		p.Price = v.(float64)
	}
	if v, ok := updates["is_active"]; ok {
		p.IsActive = v.(bool)
	}
	return nil
}

func (m *memoryRepo) DeductStock(ctx context.Context, companyID, productID int64, qty float64) error {
	p, ok := m.products[productID]
	if !ok || p.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	if p.StockQuantity < qty {
		return fmt.Errorf("%w: requested %g, available %g", ErrInsufficientStock, qty, p.StockQuantity)
	}
	p.StockQuantity -= qty
	return nil
}

func (m *memoryRepo) AddStock(ctx context.Context, companyID, productID int64, qty float64) error {
	p, ok := m.products[productID]
	if !ok || p.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	p.StockQuantity += qty
	return nil
}

func (m *memoryRepo) SetStock(ctx context.Context, companyID, productID int64, qty float64) error {
	p, ok := m.products[productID]
	if !ok || p.CompanyID != companyID {
		return httpx.ErrNotFound
	}
	p.StockQuantity = qty
	return nil
}

func (m *memoryRepo) StockQuantities(ctx context.Context, companyID int64) (map[int64]float64, error) {
	quantities := make(map[int64]float64)
	for id, p := range m.products {
		if p.CompanyID == companyID {
			quantities[id] = p.StockQuantity
		}
	}
	return quantities, nil
}

func (m *memoryRepo) ListBelowStock(ctx context.Context, threshold float64) ([]Product, error) {
	var result []Product
	for _, p := range m.products {
		if p.IsActive && p.StockQuantity < threshold {
			result = append(result, *p)
		}
	}
	return result, nil
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, 1, CreateProductRequest{SKU: "ESP-001", Name: "Espresso Beans", Price: 12.5})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, 1, CreateProductRequest{SKU: "ESP-001", Name: "Other", Price: 1})
	require.ErrorIs(t, err, ErrSKUExists)

	// Same SKU in a different company is fine.
	_, err = svc.Create(ctx, 2, 1, CreateProductRequest{SKU: "ESP-001", Name: "Espresso Beans", Price: 12.5})
	require.NoError(t, err)
}

func TestDeductStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, 1, CreateProductRequest{SKU: "ESP-001", Name: "Espresso Beans", Price: 12.5})
	require.NoError(t, err)
	require.NoError(t, svc.AddStock(ctx, 1, p.ID, 10))

	err = svc.DeductStock(ctx, 1, p.ID, 11)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, svc.DeductStock(ctx, 1, p.ID, 10))
	got, err := svc.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.StockQuantity)

	err = svc.DeductStock(ctx, 1, p.ID, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDeductStockRejectsNonPositiveQty(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, 1, CreateProductRequest{SKU: "X", Name: "X", Price: 1})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeductStock(ctx, 1, p.ID, 0), httpx.ErrValidation)
	require.ErrorIs(t, svc.DeductStock(ctx, 1, p.ID, -3), httpx.ErrValidation)
	require.ErrorIs(t, svc.AddStock(ctx, 1, p.ID, 0), httpx.ErrValidation)
}

func TestCrossTenantLookupIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, 1, CreateProductRequest{SKU: "X", Name: "X", Price: 1})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, p.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.ErrorIs(t, svc.DeductStock(ctx, 2, p.ID, 1), httpx.ErrNotFound)
}
