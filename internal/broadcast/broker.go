package broadcast

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ledger "verdant-cloud/internal/ledger/domain"
	"verdant-cloud/internal/observability/metrics"
)

const subscriberBuffer = 16

// Subscription is one connected push subscriber.
type Subscription struct {
	// SessionID is announced to the subscriber in the ready frame and is
	// how the client proves to itself that a connection handle is current.
	SessionID string
	ZoneID    string
	Global    bool
	C         chan []byte

	mu     sync.Mutex
	closed bool
}

// push delivers one frame unless the subscription is closed or its buffer is
// full. Guards the channel close in Unsubscribe against concurrent sends.
func (s *Subscription) push(payload []byte) (delivered, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.C <- payload:
		return true, true
	default:
		return false, true
	}
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.C)
}

// Broker fans ledger events out to connected subscribers. Delivery is
// best-effort: a subscriber that cannot keep up has frames dropped rather
// than stalling the publisher.
type Broker struct {
	mu     sync.Mutex
	byZone map[string]map[*Subscription]struct{}
	global map[*Subscription]struct{}
}

// NewBroker constructs a push broker.
func NewBroker() *Broker {
	return &Broker{
		byZone: make(map[string]map[*Subscription]struct{}),
		global: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber for one zone's events.
func (b *Broker) Subscribe(zoneID string) *Subscription {
	if b == nil || zoneID == "" {
		return nil
	}
	sub := &Subscription{
		SessionID: newSessionID(),
		ZoneID:    zoneID,
		C:         make(chan []byte, subscriberBuffer),
	}
	b.mu.Lock()
	set, ok := b.byZone[zoneID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.byZone[zoneID] = set
	}
	set[sub] = struct{}{}
	count := b.countLocked()
	b.mu.Unlock()
	metrics.SetStreamClients(count)
	return sub
}

// SubscribeGlobal registers a subscriber for cross-zone alert events.
func (b *Broker) SubscribeGlobal() *Subscription {
	if b == nil {
		return nil
	}
	sub := &Subscription{
		SessionID: newSessionID(),
		Global:    true,
		C:         make(chan []byte, subscriberBuffer),
	}
	b.mu.Lock()
	b.global[sub] = struct{}{}
	count := b.countLocked()
	b.mu.Unlock()
	metrics.SetStreamClients(count)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if b == nil || sub == nil {
		return
	}
	b.mu.Lock()
	if sub.Global {
		delete(b.global, sub)
	} else if set, ok := b.byZone[sub.ZoneID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.byZone, sub.ZoneID)
		}
	}
	count := b.countLocked()
	b.mu.Unlock()
	metrics.SetStreamClients(count)
	sub.shutdown()
}

// Publish delivers one appended event to the zone's subscribers, and to
// global subscribers when the event type is globally visible.
func (b *Broker) Publish(event ledger.Event) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mu.Lock()
	targets := make([]*Subscription, 0, 8)
	for sub := range b.byZone[event.ZoneID] {
		targets = append(targets, sub)
	}
	if ledger.GlobalTypes[event.Type] {
		for sub := range b.global {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		channel := "zone"
		if sub.Global {
			channel = "global"
		}
		delivered, open := sub.push(payload)
		switch {
		case delivered:
			metrics.IncBroadcastDelivered(channel)
		case open:
			metrics.IncBroadcastDropped("slow_subscriber")
		}
	}
}

// SubscriberCount reports connected subscribers across all channels.
func (b *Broker) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countLocked()
}

func (b *Broker) countLocked() int {
	count := len(b.global)
	for _, set := range b.byZone {
		count += len(set)
	}
	return count
}

var sessionSeq atomic.Uint64

func newSessionID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fallbackSessionID()
	}
	return "sess-" + hex.EncodeToString(buf[:])
}

// fallbackSessionID keeps ids distinct when the random source fails.
func fallbackSessionID() string {
	return fmt.Sprintf("sess-%d-%d", time.Now().UTC().UnixNano(), sessionSeq.Add(1))
}
