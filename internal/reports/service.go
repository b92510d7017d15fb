package reports

import (
	"context"
	"fmt"
	"time"
)

// Service serves cached report reads.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService builds a Service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func rangeKey(report string, companyID int64, from, to time.Time, extra string) string {
	key := fmt.Sprintf("reports:%s:%d:%s:%s", report, companyID, from.Format("20060102"), to.Format("20060102"))
	if extra != "" {
		key += ":" + extra
	}
	return key
}

// SalesSummary returns period revenue aggregates, cached per company and
// date range.
func (s *Service) SalesSummary(ctx context.Context, companyID int64, from, to time.Time) (*SalesSummary, error) {
	var summary SalesSummary
	err := s.cache.FetchJSON(ctx, rangeKey("summary", companyID, from, to, ""), &summary, func(ctx context.Context) (any, error) {
		return s.repo.SalesSummary(ctx, companyID, from, to)
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// TopProducts returns the product ranking for a period, cached per company,
// range and limit.
func (s *Service) TopProducts(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	var products []TopProduct
	err := s.cache.FetchJSON(ctx, rangeKey("top-products", companyID, from, to, fmt.Sprintf("%d", limit)), &products, func(ctx context.Context) (any, error) {
		return s.repo.TopProducts(ctx, companyID, from, to, limit)
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
