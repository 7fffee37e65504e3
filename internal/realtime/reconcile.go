package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	reconcileMinInterval = 5 * time.Second
	reconcileTimeout     = 10 * time.Second
)

// ErrSyncInFlight is returned when a reconciliation is already running.
var ErrSyncInFlight = errors.New("realtime: reconciliation already in flight")

// ErrThrottled is returned when a reconciliation ran too recently.
var ErrThrottled = errors.New("realtime: reconciliation throttled")

// ResyncFetcher issues one bounded full-resync request.
type ResyncFetcher interface {
	Resync(ctx context.Context) (ResyncData, error)
}

// ResyncApplier receives the fetched bundle as one atomic update.
type ResyncApplier interface {
	ApplyResync(data ResyncData)
}

// Reconciler performs the post-reconnect full resync. Single-flight guarded
// and rate-limited; on failure it logs and leaves existing state untouched.
// There is no immediate retry, the next reconnection cycle retries naturally.
type Reconciler struct {
	clock   Clock
	fetcher ResyncFetcher
	applier ResyncApplier
	logger  *log.Logger

	mu        sync.Mutex
	isSyncing bool
	lastRun   time.Time
}

// NewReconciler constructs a reconciliation coordinator.
func NewReconciler(clock Clock, fetcher ResyncFetcher, applier ResyncApplier, logger *log.Logger) (*Reconciler, error) {
	if clock == nil || fetcher == nil || applier == nil {
		return nil, errors.New("realtime: nil reconciler dependency")
	}
	return &Reconciler{clock: clock, fetcher: fetcher, applier: applier, logger: logger}, nil
}

// Perform runs one reconciliation. Concurrent invocations are rejected with
// ErrSyncInFlight; invocations within the minimum interval of the previous
// run are rejected with ErrThrottled.
func (r *Reconciler) Perform() error {
	if r == nil {
		return errors.New("realtime: nil reconciler")
	}
	now := r.clock.Now()
	r.mu.Lock()
	if r.isSyncing {
		r.mu.Unlock()
		return ErrSyncInFlight
	}
	if !r.lastRun.IsZero() && now.Sub(r.lastRun) < reconcileMinInterval {
		r.mu.Unlock()
		return ErrThrottled
	}
	r.isSyncing = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isSyncing = false
		r.lastRun = r.clock.Now()
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	data, err := r.fetcher.Resync(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("reconciliation fetch failed: %v", err)
		}
		return err
	}
	// One atomic apply; no partial state on any earlier failure.
	r.applier.ApplyResync(data)
	return nil
}

// Syncing reports whether a reconciliation is currently running.
func (r *Reconciler) Syncing() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isSyncing
}
