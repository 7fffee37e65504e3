package realtime

import (
	"context"
	"errors"
	"log"
	"sync"

	catchup "verdant-cloud/internal/catchup/application"
	ledger "verdant-cloud/internal/ledger/domain"
	snapdomain "verdant-cloud/internal/snapshot/domain"
)

const defaultPageLimit = 100

// SyncAPI is the server surface the syncer consumes.
type SyncAPI interface {
	Snapshot(ctx context.Context, zoneID string) (snapdomain.Snapshot, error)
	EventsAfter(ctx context.Context, zoneID string, afterID int64, limit int) (catchup.Page, error)
}

// Applier receives the bootstrap snapshot and every deduplicated event.
type Applier interface {
	ApplySnapshot(snap snapdomain.Snapshot)
	ApplyEvent(event ledger.Event)
}

// Syncer drives the sync protocol: snapshot once, catch-up until has_more is
// false, then live push consumption. Events are deduplicated by event_id so
// the overlap between snapshot aggregates, catch-up pages, and pushed events
// applies each event exactly once.
type Syncer struct {
	api     SyncAPI
	zoneID  string
	applier Applier
	logger  *log.Logger
	limit   int

	mu          sync.Mutex
	lastEventID int64
}

// SyncerOption configures the syncer.
type SyncerOption func(*Syncer)

// WithPageLimit overrides the catch-up page size.
func WithPageLimit(limit int) SyncerOption {
	return func(s *Syncer) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewSyncer constructs a syncer for one zone.
func NewSyncer(api SyncAPI, zoneID string, applier Applier, logger *log.Logger, opts ...SyncerOption) (*Syncer, error) {
	if api == nil || applier == nil {
		return nil, errors.New("realtime: nil syncer dependency")
	}
	if zoneID == "" {
		return nil, errors.New("realtime: empty zone id")
	}
	syncer := &Syncer{
		api:     api,
		zoneID:  zoneID,
		applier: applier,
		logger:  logger,
		limit:   defaultPageLimit,
	}
	for _, opt := range opts {
		opt(syncer)
	}
	return syncer, nil
}

// Bootstrap fetches one snapshot, applies it, and backfills every event after
// the snapshot's ledger position.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime: nil syncer")
	}
	snap, err := s.api.Snapshot(ctx, s.zoneID)
	if err != nil {
		return err
	}
	s.applier.ApplySnapshot(snap)
	s.mu.Lock()
	s.lastEventID = snap.LastEventID
	s.mu.Unlock()
	return s.CatchUp(ctx)
}

// CatchUp loops the events endpoint from the current cursor until has_more is
// false. Safe to call repeatedly.
func (s *Syncer) CatchUp(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime: nil syncer")
	}
	for {
		s.mu.Lock()
		after := s.lastEventID
		s.mu.Unlock()

		page, err := s.api.EventsAfter(ctx, s.zoneID, after, s.limit)
		if err != nil {
			return err
		}
		for _, event := range page.Events {
			s.applyOnce(event)
		}
		s.mu.Lock()
		if page.LastEventID > s.lastEventID {
			s.lastEventID = page.LastEventID
		}
		s.mu.Unlock()
		if !page.HasMore {
			return nil
		}
	}
}

// OnPush consumes one live-pushed event. Duplicates and stale out-of-order
// deliveries are dropped by the event_id cursor; anything the push transport
// loses is recovered by the next catch-up or reconciliation, never here.
func (s *Syncer) OnPush(event ledger.Event) {
	if s == nil {
		return
	}
	if event.ZoneID != s.zoneID {
		return
	}
	s.applyOnce(event)
}

func (s *Syncer) applyOnce(event ledger.Event) {
	s.mu.Lock()
	if event.EventID <= s.lastEventID {
		s.mu.Unlock()
		return
	}
	s.lastEventID = event.EventID
	s.mu.Unlock()
	s.applier.ApplyEvent(event)
}

// LastEventID reports the current dedup cursor.
func (s *Syncer) LastEventID() int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventID
}
