package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/golavi5/tillpoint/internal/catalog"
	"github.com/golavi5/tillpoint/internal/inventory"
	jobmetrics "github.com/golavi5/tillpoint/internal/jobs"
)

// StockReconciler repairs location and product counters from the movement
// ledger.
type StockReconciler interface {
	ReconcileCounters(ctx context.Context, companyID int64) (inventory.Reconciliation, error)
}

// LowStockLister returns products whose counter fell under the threshold.
type LowStockLister interface {
	ListBelowStock(ctx context.Context, threshold float64) ([]catalog.Product, error)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Handlers holds the dependencies the task handlers need.
type Handlers struct {
	Logger            *slog.Logger
	Pool              *pgxpool.Pool
	Inventory         StockReconciler
	Catalog           LowStockLister
	Mailer            Mailer
	Metrics           *jobmetrics.Metrics
	AlertRecipient    string
	LowStockThreshold float64
}

// HandleSendEmail processes mail:send tasks.
func (h *Handlers) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := h.Metrics.Track(TaskTypeSendEmail)
	if err := h.Mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		return tracker.End(fmt.Errorf("send email to %s: %w", payload.To, err))
	}
	h.Logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return tracker.End(nil)
}

// HandleStockReconcile recomputes every company's location counters from
// the ledger and logs any drift it repaired.
func (h *Handlers) HandleStockReconcile(ctx context.Context, t *asynq.Task) error {
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := h.Metrics.Track(TaskTypeStockReconcile)
	companyIDs, err := h.companyIDs(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("list companies: %w", err))
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, companyID := range companyIDs {
		g.Go(func() error {
			rec, err := h.Inventory.ReconcileCounters(gctx, companyID)
			if err != nil {
				return fmt.Errorf("reconcile company %d: %w", companyID, err)
			}
			if rec.Repaired() > 0 {
				h.Metrics.AddDrift(companyID, rec.Repaired())
				h.Logger.Warn("stock counters drifted",
					slog.Int64("company_id", companyID),
					slog.Int("locations", len(rec.Locations)),
					slog.Int("products", len(rec.Products)))
			}
			return nil
		})
	}
	return tracker.End(g.Wait())
}

// HandleLowStockScan emails one digest listing every product under the
// threshold. No products means no email.
func (h *Handlers) HandleLowStockScan(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if h.AlertRecipient == "" {
		return nil
	}

	tracker := h.Metrics.Track(TaskTypeLowStockScan)
	products, err := h.Catalog.ListBelowStock(ctx, h.LowStockThreshold)
	if err != nil {
		return tracker.End(fmt.Errorf("list low stock: %w", err))
	}
	if len(products) == 0 {
		return tracker.End(nil)
	}

	perCompany := make(map[int64]int)
	var b strings.Builder
	fmt.Fprintf(&b, "%d product(s) are below the stock threshold of %g:\n\n", len(products), h.LowStockThreshold)
	for _, p := range products {
		perCompany[p.CompanyID]++
		fmt.Fprintf(&b, "  [company %d] %s (%s): %g remaining\n", p.CompanyID, p.Name, p.SKU, p.StockQuantity)
	}
	for companyID, count := range perCompany {
		h.Metrics.AddLowStock(companyID, count)
	}

	return tracker.End(h.Mailer.Send(ctx, h.AlertRecipient, "Low stock alert", b.String()))
}

func (h *Handlers) companyIDs(ctx context.Context) ([]int64, error) {
	rows, err := h.Pool.Query(ctx, `SELECT DISTINCT company_id FROM users WHERE is_active ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
