package jobs_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/golavi5/tillpoint/internal/catalog"
	"github.com/golavi5/tillpoint/jobs"
)

type stubMailer struct {
	sent []struct{ to, subject, body string }
}

func (s *stubMailer) Send(_ context.Context, to, subject, body string) error {
	s.sent = append(s.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

type stubCatalog struct {
	products []catalog.Product
}

func (s *stubCatalog) ListBelowStock(_ context.Context, _ float64) ([]catalog.Product, error) {
	return s.products, nil
}

func TestHandleSendEmail(t *testing.T) {
	mailer := &stubMailer{}
	h := &jobs.Handlers{Logger: slog.New(slog.DiscardHandler), Mailer: mailer}

	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: "ops@example.com", Subject: "hi", Body: "there"})
	require.NoError(t, err)
	require.NoError(t, h.HandleSendEmail(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ops@example.com", mailer.sent[0].to)
}

func TestHandleLowStockScan(t *testing.T) {
	mailer := &stubMailer{}
	h := &jobs.Handlers{
		Logger: slog.New(slog.DiscardHandler),
		Catalog: &stubCatalog{products: []catalog.Product{
			{CompanyID: 1, SKU: "SKU-1", Name: "Espresso Beans", StockQuantity: 2},
			{CompanyID: 2, SKU: "SKU-9", Name: "Filter Paper", StockQuantity: 0},
		}},
		Mailer:            mailer,
		AlertRecipient:    "ops@example.com",
		LowStockThreshold: 5,
	}

	task, err := jobs.NewLowStockScanTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, h.HandleLowStockScan(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	require.Contains(t, mailer.sent[0].subject, "Low stock")
	require.Contains(t, mailer.sent[0].body, "Espresso Beans")
	require.Contains(t, mailer.sent[0].body, "SKU-9")
}

func TestHandleLowStockScanSkipsWhenHealthy(t *testing.T) {
	mailer := &stubMailer{}
	h := &jobs.Handlers{
		Logger:            slog.New(slog.DiscardHandler),
		Catalog:           &stubCatalog{},
		Mailer:            mailer,
		AlertRecipient:    "ops@example.com",
		LowStockThreshold: 5,
	}

	task, err := jobs.NewLowStockScanTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, h.HandleLowStockScan(context.Background(), task))
	require.Empty(t, mailer.sent)
}
