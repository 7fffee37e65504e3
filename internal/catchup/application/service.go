package application

import (
	"context"
	"errors"

	ledger "verdant-cloud/internal/ledger/domain"
	ledgerpg "verdant-cloud/internal/ledger/infrastructure/postgres"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// EventQuerier reads ordered events from the ledger.
type EventQuerier interface {
	Query(ctx context.Context, filter ledgerpg.QueryFilter) ([]ledger.Event, error)
}

// Page is one catch-up response. LastEventID is the cursor for the next call;
// it equals the request's after_id when no events matched.
type Page struct {
	Events      []ledger.Event `json:"data"`
	LastEventID int64          `json:"last_event_id"`
	HasMore     bool           `json:"has_more"`
}

// Options narrow a catch-up query within the zone.
type Options struct {
	Types     []string
	CycleOnly bool
}

// Service serves paginated catch-up reads. Pure read, safe to call repeatedly.
type Service struct {
	store EventQuerier
}

// NewService constructs a catch-up service.
func NewService(store EventQuerier) (*Service, error) {
	if store == nil {
		return nil, errors.New("catchup: nil event store")
	}
	return &Service{store: store}, nil
}

// EventsAfter returns events with event_id > afterID for the zone, strictly
// ascending, with HasMore signalling that another page is pending.
func (s *Service) EventsAfter(ctx context.Context, zoneID string, afterID int64, limit int, opts Options) (Page, error) {
	if s == nil || s.store == nil {
		return Page{}, errors.New("catchup: service not ready")
	}
	if zoneID == "" {
		return Page{}, errors.New("catchup: zone_id is required")
	}
	if afterID < 0 {
		afterID = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	// Query one extra row to detect a pending page without a second count
	// query.
	events, err := s.store.Query(ctx, ledgerpg.QueryFilter{
		ZoneID:    zoneID,
		AfterID:   afterID,
		Limit:     limit + 1,
		Types:     opts.Types,
		CycleOnly: opts.CycleOnly,
	})
	if err != nil {
		return Page{}, err
	}

	// Events always serializes as an array, never null.
	page := Page{Events: []ledger.Event{}, LastEventID: afterID}
	if len(events) > limit {
		page.HasMore = true
		events = events[:limit]
	}
	if len(events) > 0 {
		page.Events = events
		page.LastEventID = events[len(events)-1].EventID
	}
	return page, nil
}
