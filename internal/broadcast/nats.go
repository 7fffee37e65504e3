package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	ledger "verdant-cloud/internal/ledger/domain"
)

// NATSForwarder relays appended events to NATS for external consumers.
// Zone events go to zones.<zone_id>.events; globally visible alert events
// additionally go to zones.global.<type>.
type NATSForwarder struct {
	conn *nats.Conn
}

// NewNATSForwarder connects to NATS with automatic reconnection.
func NewNATSForwarder(url string, opts ...nats.Option) (*NATSForwarder, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	conn, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSForwarder{conn: conn}, nil
}

// Forward publishes one event to its subjects.
func (f *NATSForwarder) Forward(event ledger.Event) error {
	if f == nil || f.conn == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := f.conn.Publish("zones."+event.ZoneID+".events", data); err != nil {
		return err
	}
	if ledger.GlobalTypes[event.Type] {
		if err := f.conn.Publish("zones.global."+event.Type, data); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the NATS connection.
func (f *NATSForwarder) Close() error {
	if f == nil || f.conn == nil {
		return nil
	}
	f.conn.Close()
	return nil
}
