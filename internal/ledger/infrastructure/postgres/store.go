package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	ledger "verdant-cloud/internal/ledger/domain"
)

const defaultEventsTable = "zone_events"

// EventStore is the Postgres implementation of the append-only event ledger.
// Ordering comes from the table's BIGSERIAL primary key, never from
// timestamps.
type EventStore struct {
	db    *sql.DB
	table string
}

// NewEventStore constructs an event store.
func NewEventStore(db *sql.DB, opts ...StoreOption) *EventStore {
	store := &EventStore{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// StoreOption configures the event store.
type StoreOption func(*EventStore)

// WithEventsTable overrides the table name.
func WithEventsTable(table string) StoreOption {
	return func(store *EventStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Append persists one event and returns it with the assigned position and
// server timestamp. A failed write surfaces as *ledger.StorageError with no
// internal retry.
func (s *EventStore) Append(ctx context.Context, in ledger.AppendInput) (ledger.Event, error) {
	if s == nil || s.db == nil {
		return ledger.Event{}, &ledger.StorageError{Op: "append", Err: errors.New("nil db")}
	}
	if err := in.Validate(); err != nil {
		return ledger.Event{}, err
	}
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	message := ledger.Summarize(in.Type, payload)
	serverTS := time.Now().UTC()

	query := fmt.Sprintf(`
INSERT INTO %s (
	zone_id, type, entity_type, entity_id, payload, message, server_ts
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
RETURNING event_id`, s.table)

	var eventID int64
	err := s.db.QueryRowContext(ctx, query,
		in.ZoneID, in.Type, in.EntityType, in.EntityID, []byte(payload), message, serverTS,
	).Scan(&eventID)
	if err != nil {
		return ledger.Event{}, &ledger.StorageError{Op: "append", Err: err}
	}

	return ledger.Event{
		EventID:    eventID,
		ZoneID:     in.ZoneID,
		Type:       in.Type,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		Payload:    payload,
		Message:    message,
		ServerTS:   ledger.EpochMillis(serverTS),
	}, nil
}

// QueryFilter selects events for one zone. ZoneID is mandatory; optional
// filters narrow within the zone and can never widen across zones.
type QueryFilter struct {
	ZoneID    string
	AfterID   int64
	Limit     int
	Types     []string
	CycleOnly bool
}

// Query returns events with event_id > AfterID for the filter's zone, strictly
// ascending by event_id, bounded by Limit.
func (s *EventStore) Query(ctx context.Context, filter QueryFilter) ([]ledger.Event, error) {
	if s == nil || s.db == nil {
		return nil, &ledger.StorageError{Op: "query", Err: errors.New("nil db")}
	}
	if filter.ZoneID == "" {
		return nil, errors.New("ledger store: zone_id is required")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	conditions := []string{"zone_id = $1", "event_id > $2"}
	args := []any{filter.ZoneID, filter.AfterID}
	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, eventType := range filter.Types {
			args = append(args, eventType)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.CycleOnly {
		args = append(args, ledger.TypeCycleStarted, ledger.TypeCycleAdvanced, ledger.TypeCycleFinished, ledger.TypeRecipeApplied)
		conditions = append(conditions, fmt.Sprintf("type IN ($%d, $%d, $%d, $%d)", len(args)-3, len(args)-2, len(args)-1, len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT event_id, zone_id, type, entity_type, entity_id, payload, message, server_ts
FROM %s
WHERE %s
ORDER BY event_id ASC
LIMIT $%d`, s.table, strings.Join(conditions, "\n	AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var result []ledger.Event
	for rows.Next() {
		var event ledger.Event
		var payload []byte
		var serverTS time.Time
		if err := rows.Scan(
			&event.EventID, &event.ZoneID, &event.Type, &event.EntityType,
			&event.EntityID, &payload, &event.Message, &serverTS,
		); err != nil {
			return nil, &ledger.StorageError{Op: "query", Err: err}
		}
		event.Payload = payload
		event.ServerTS = ledger.EpochMillis(serverTS)
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StorageError{Op: "query", Err: err}
	}
	return result, nil
}

// MaxEventID returns the zone's current highest ledger position, zero when the
// zone has no events.
func (s *EventStore) MaxEventID(ctx context.Context, zoneID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, &ledger.StorageError{Op: "max_event_id", Err: errors.New("nil db")}
	}
	if zoneID == "" {
		return 0, errors.New("ledger store: zone_id is required")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(MAX(event_id), 0)
FROM %s
WHERE zone_id = $1`, s.table)

	var maxID int64
	if err := s.db.QueryRowContext(ctx, query, zoneID).Scan(&maxID); err != nil {
		return 0, &ledger.StorageError{Op: "max_event_id", Err: err}
	}
	return maxID, nil
}
