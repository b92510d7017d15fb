package audit

import (
	"context"
	"errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service pages through the audit trail.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Trail returns one page of entries matching the filters. It fetches one
// row past the page size to decide whether a next page exists.
func (s *Service) Trail(ctx context.Context, req ListRequest) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}

	entries, err := s.repo.List(ctx, req, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}

	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := Paging{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Result{Entries: entries, Paging: paging}, nil
}
