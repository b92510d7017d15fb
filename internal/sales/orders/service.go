package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/golavi5/tillpoint/internal/catalog"
	"github.com/golavi5/tillpoint/internal/inventory"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/sales/calc"
	"github.com/golavi5/tillpoint/internal/shared"
)

// ProductCatalog is what orders need from the catalog: lookups and the
// guarded product-counter moves.
type ProductCatalog interface {
	Get(ctx context.Context, companyID, id int64) (*catalog.Product, error)
	DeductStock(ctx context.Context, companyID, productID int64, qty float64) error
	AddStock(ctx context.Context, companyID, productID int64, qty float64) error
}

// StockRecorder writes order movements to the inventory ledger.
type StockRecorder interface {
	RecordOrderOut(ctx context.Context, companyID, actorID, productID int64, qty float64, orderID int64) (*inventory.StockMovement, error)
	AdjustStock(ctx context.Context, companyID, actorID int64, req inventory.AdjustStockRequest) (*inventory.StockMovement, error)
}

// CustomerLoyalty credits points for completed orders.
type CustomerLoyalty interface {
	AwardPoints(ctx context.Context, companyID, customerID, points int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the order lifecycle.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	products ProductCatalog
	stock    StockRecorder
	loyalty  CustomerLoyalty
	audit    AuditPort
	now      func() time.Time
}

// NewService builds a Service.
func NewService(logger *slog.Logger, repo Repository, products ProductCatalog, stock StockRecorder, loyalty CustomerLoyalty, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, products: products, stock: stock, loyalty: loyalty, audit: audit, now: time.Now}
}

// WithClock overrides the time source. Order numbers restart their daily
// sequence when the clock crosses midnight.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns an order with its items, company-scoped.
func (s *Service) Get(ctx context.Context, companyID, id int64) (*Order, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a filtered page of orders.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	return s.repo.List(ctx, req)
}

// Create builds a draft order. Every product is verified against the
// caller's company and its current stock: requesting more than is on hand
// fails here, even though stock is only committed on confirmation. Nothing
// is reserved between the two moments; draft orders can window-shop.
func (s *Service) Create(ctx context.Context, companyID, userID int64, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	lines := make([]calc.Line, 0, len(req.Items))
	items := make([]OrderItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		product, err := s.products.Get(ctx, companyID, itemReq.ProductID)
		if err != nil {
			return nil, fmt.Errorf("verify product %d: %w", itemReq.ProductID, err)
		}
		if itemReq.Quantity > product.StockQuantity {
			return nil, fmt.Errorf("%w: %s has %g in stock, requested %g",
				ErrInsufficientStock, product.Name, product.StockQuantity, itemReq.Quantity)
		}

		unitPrice := product.Price
		if itemReq.UnitPrice != nil {
			unitPrice = *itemReq.UnitPrice
		}
		line := calc.Line{
			ProductID: product.ID,
			Quantity:  itemReq.Quantity,
			UnitPrice: unitPrice,
			TaxRate:   product.TaxRate,
		}
		lines = append(lines, line)

		lt := calc.ComputeLine(line)
		items = append(items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    itemReq.Quantity,
			UnitPrice:   unitPrice,
			TaxRate:     product.TaxRate,
			Subtotal:    lt.Subtotal,
			TaxAmount:   lt.TaxAmount,
			Total:       lt.Total,
		})
	}

	totals := calc.ComputeOrder(lines, req.DiscountAmount)
	order := Order{
		CompanyID:      companyID,
		CustomerID:     req.CustomerID,
		Status:         StatusDraft,
		PaymentStatus:  PaymentUnpaid,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: totals.Discount,
		TotalAmount:    totals.TotalAmount,
		Notes:          req.Notes,
		CreatedBy:      userID,
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		now := s.now()
		seq, err := repo.NextSequence(ctx, companyID, now)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		order.OrderNumber = fmt.Sprintf("ORD%s%05d", now.Format("20060102"), seq)

		orderID, err = repo.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, item := range items {
			item.OrderID = orderID
			if _, err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, companyID, userID, "orders:create", orderID, map[string]any{
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
	})
	return s.repo.Get(ctx, companyID, orderID)
}

// Update mutates customer and notes on a non-terminal order.
func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateOrderRequest) (*Order, error) {
	existing, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotEditable, existing.Status)
	}

	updates := make(map[string]any)
	if req.CustomerID != nil {
		updates["customer_id"] = *req.CustomerID
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, companyID, id, updates); err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
	}
	return s.repo.Get(ctx, companyID, id)
}

// UpdateStatus moves an order along the transition graph. Confirming
// commits stock; completing awards loyalty points.
func (s *Service) UpdateStatus(ctx context.Context, companyID, userID, id int64, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, next)
	}
	order, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s cannot become %s, allowed: %s",
			ErrInvalidTransition, order.Status, next, order.Status.AllowedNext())
	}

	now := s.now()
	updates := map[string]any{"status": string(next)}

	var committed []inventory.StockMovement
	switch next {
	case StatusConfirmed:
		movements, err := s.commitStock(ctx, companyID, userID, order)
		if err != nil {
			return nil, err
		}
		committed = movements
		updates["confirmed_at"] = now
	case StatusCompleted:
		updates["completed_at"] = now
	}

	if err := s.repo.Update(ctx, companyID, id, updates); err != nil {
		s.releaseStock(ctx, companyID, userID, order, committed)
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if next == StatusCompleted && order.CustomerID != nil {
		points := int64(math.Floor(order.TotalAmount))
		if err := s.loyalty.AwardPoints(ctx, companyID, *order.CustomerID, points); err != nil {
			s.logger.Error("award loyalty points",
				slog.Int64("order_id", id),
				slog.Int64("customer_id", *order.CustomerID),
				slog.Any("error", err))
		}
	}

	s.recordAudit(ctx, companyID, userID, "orders:status", id, map[string]any{
		"from": string(order.Status),
		"to":   string(next),
	})
	return s.repo.Get(ctx, companyID, id)
}

// commitStock deducts the product counter and writes an OUT movement for
// every line. Failure part-way undoes the lines already committed.
func (s *Service) commitStock(ctx context.Context, companyID, userID int64, order *Order) ([]inventory.StockMovement, error) {
	var committed []inventory.StockMovement
	for _, item := range order.Items {
		if err := s.products.DeductStock(ctx, companyID, item.ProductID, item.Quantity); err != nil {
			s.releaseStock(ctx, companyID, userID, order, committed)
			return nil, fmt.Errorf("deduct stock for product %d: %w", item.ProductID, err)
		}
		movement, err := s.stock.RecordOrderOut(ctx, companyID, userID, item.ProductID, item.Quantity, order.ID)
		if err != nil {
			if addErr := s.products.AddStock(ctx, companyID, item.ProductID, item.Quantity); addErr != nil {
				s.logger.Error("restore product stock", slog.Int64("product_id", item.ProductID), slog.Any("error", addErr))
			}
			s.releaseStock(ctx, companyID, userID, order, committed)
			return nil, fmt.Errorf("record stock movement for product %d: %w", item.ProductID, err)
		}
		committed = append(committed, *movement)
	}
	return committed, nil
}

// releaseStock undoes committed lines with RETURN movements at the same
// locations, which also restore the product counter.
func (s *Service) releaseStock(ctx context.Context, companyID, userID int64, order *Order, committed []inventory.StockMovement) {
	for _, movement := range committed {
		_, err := s.stock.AdjustStock(ctx, companyID, userID, inventory.AdjustStockRequest{
			LocationID: movement.LocationID,
			ProductID:  movement.ProductID,
			Type:       inventory.MovementReturn,
			Quantity:   movement.Quantity,
			Note:       fmt.Sprintf("release order %s", order.OrderNumber),
		})
		if err != nil {
			s.logger.Error("release committed stock", slog.Int64("order_id", order.ID),
				slog.Int64("product_id", movement.ProductID), slog.Any("error", err))
		}
	}
}

// Delete removes a draft order and its items. Any other status must go
// through cancel or void instead.
func (s *Service) Delete(ctx context.Context, companyID, userID, id int64) error {
	order, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: status is %s", ErrDeleteNotDraft, order.Status)
	}
	if err := s.repo.Delete(ctx, companyID, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.recordAudit(ctx, companyID, userID, "orders:delete", id, map[string]any{
		"order_number": order.OrderNumber,
	})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "sales_order",
		EntityID:  fmt.Sprintf("%d", orderID),
		Meta:      meta,
	})
}
