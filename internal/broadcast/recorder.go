package broadcast

import (
	"context"
	"errors"
	"log"
	"time"

	ledger "verdant-cloud/internal/ledger/domain"
	"verdant-cloud/internal/observability/metrics"
)

// Appender persists one event and returns it with its assigned position.
type Appender interface {
	Append(ctx context.Context, in ledger.AppendInput) (ledger.Event, error)
}

// Publisher pushes an appended event to connected subscribers.
type Publisher interface {
	Publish(event ledger.Event)
}

// Forwarder relays an appended event to an external broker.
type Forwarder interface {
	Forward(event ledger.Event) error
}

// Recorder appends events to the ledger and then fans them out. The append
// is the source of truth: push delivery is best-effort and a fan-out failure
// never fails the record operation, since catch-up re-delivers from the
// ledger by position.
type Recorder struct {
	store     Appender
	publisher Publisher
	forwarder Forwarder
	logger    *log.Logger
}

// NewRecorder constructs a recorder. Publisher and forwarder may be nil.
func NewRecorder(store Appender, publisher Publisher, forwarder Forwarder, logger *log.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("broadcast: nil appender")
	}
	return &Recorder{store: store, publisher: publisher, forwarder: forwarder, logger: logger}, nil
}

// Record appends one event and pushes it to live subscribers.
func (r *Recorder) Record(ctx context.Context, in ledger.AppendInput) (ledger.Event, error) {
	if r == nil || r.store == nil {
		return ledger.Event{}, errors.New("broadcast: recorder not ready")
	}

	start := time.Now()
	event, err := r.store.Append(ctx, in)
	if err != nil {
		metrics.ObserveLedgerAppend(metrics.ResultError, time.Since(start))
		return ledger.Event{}, err
	}
	metrics.ObserveLedgerAppend(metrics.ResultSuccess, time.Since(start))

	if r.publisher != nil {
		r.publisher.Publish(event)
	}
	if r.forwarder != nil {
		if err := r.forwarder.Forward(event); err != nil {
			metrics.IncBroadcastDropped("forwarder")
			if r.logger != nil {
				r.logger.Printf("forward event %d failed: %v", event.EventID, err)
			}
		}
	}
	return event, nil
}
