// Package audit exposes the audit trail written by the rest of the
// application: who did what, to which entity, and when.
package audit

import (
	"encoding/json"
	"time"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	ActorID   int64           `json:"actor_id"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	At        time.Time       `json:"occurred_at"`
}

// ListRequest filters the trail. Zero values mean "no filter".
type ListRequest struct {
	CompanyID int64
	ActorID   int64
	Entity    string
	Action    string
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// Paging carries simple next/prev metadata for the trail listing.
type Paging struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles one page of entries with its paging metadata.
type Result struct {
	Entries []Entry `json:"entries"`
	Paging  Paging  `json:"paging"`
}
