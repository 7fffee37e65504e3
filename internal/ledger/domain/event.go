package ledger

import (
	"encoding/json"
	"errors"
	"time"
)

// Event type enumerators shared by push and catch-up.
const (
	TypeZoneStatusChanged = "zone_status_changed"
	TypeDeviceOnline      = "device_online"
	TypeDeviceOffline     = "device_offline"
	TypeAlertRaised       = "alert_raised"
	TypeAlertCleared      = "alert_cleared"
	TypeCommandIssued     = "command_issued"
	TypeCommandAcked      = "command_acked"
	TypeCommandFailed     = "command_failed"
	TypeRecipeApplied     = "recipe_applied"
	TypeCycleStarted      = "cycle_started"
	TypeCycleAdvanced     = "cycle_advanced"
	TypeCycleFinished     = "cycle_finished"
)

// GlobalTypes are broadcast on the cross-zone channel in addition to the
// owning zone channel.
var GlobalTypes = map[string]bool{
	TypeAlertRaised:  true,
	TypeAlertCleared: true,
}

// Event is an immutable ledger record. EventID is assigned by the store at
// insertion time from a single monotonic sequence and is the only ordering
// key; ServerTS may collide across events.
type Event struct {
	EventID    int64           `json:"event_id"`
	ZoneID     string          `json:"zone_id"`
	Type       string          `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	Message    string          `json:"message"`
	ServerTS   int64           `json:"server_ts"`
}

// AppendInput describes an event to be appended. EventID and ServerTS are
// assigned by the store.
type AppendInput struct {
	ZoneID     string
	Type       string
	EntityType string
	EntityID   string
	Payload    json.RawMessage
}

// Validate checks required append fields.
func (in AppendInput) Validate() error {
	if in.ZoneID == "" {
		return errors.New("ledger: zone_id is required")
	}
	if !ValidType(in.Type) {
		return errors.New("ledger: unknown event type")
	}
	if in.EntityType == "" || in.EntityID == "" {
		return errors.New("ledger: entity reference is required")
	}
	if len(in.Payload) > 0 && !json.Valid(in.Payload) {
		return errors.New("ledger: payload must be valid JSON")
	}
	return nil
}

// ValidType reports whether value is a known event type.
func ValidType(value string) bool {
	switch value {
	case TypeZoneStatusChanged, TypeDeviceOnline, TypeDeviceOffline,
		TypeAlertRaised, TypeAlertCleared,
		TypeCommandIssued, TypeCommandAcked, TypeCommandFailed,
		TypeRecipeApplied, TypeCycleStarted, TypeCycleAdvanced, TypeCycleFinished:
		return true
	default:
		return false
	}
}

// IsCycleType reports whether the type belongs to the growing-cycle subset
// selected by the cycle-only query filter.
func IsCycleType(value string) bool {
	switch value {
	case TypeCycleStarted, TypeCycleAdvanced, TypeCycleFinished, TypeRecipeApplied:
		return true
	default:
		return false
	}
}

// EpochMillis converts a time to the epoch-millisecond representation used in
// event records.
func EpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}
