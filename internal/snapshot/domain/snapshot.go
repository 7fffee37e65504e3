package snapshot

import "time"

// DeviceState is the online/offline view of one zone device.
type DeviceState struct {
	DeviceID   string     `json:"device_id"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// Alert is an active alert aggregate entry.
type Alert struct {
	AlertID  string    `json:"alert_id"`
	ZoneID   string    `json:"zone_id"`
	Title    string    `json:"title"`
	Severity string    `json:"severity"`
	Status   string    `json:"status"`
	RaisedAt time.Time `json:"raised_at"`
}

// TelemetryValue is the latest reading on one channel.
type TelemetryValue struct {
	Channel    string    `json:"channel"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	MeasuredAt time.Time `json:"measured_at"`
}

// CommandView is a recent command aggregate entry.
type CommandView struct {
	CommandID   string    `json:"command_id"`
	DeviceID    string    `json:"device_id"`
	CommandType string    `json:"command_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is an ephemeral point-in-time view of one zone plus a reference
// ledger position. It is produced per request and never persisted.
//
// LastEventID is read after the aggregates, so a write concurrent with
// construction may or may not show up in the aggregates but always carries an
// event_id at or above LastEventID; catch-up from LastEventID re-delivers it
// and client-side dedup absorbs the overlap.
type Snapshot struct {
	SnapshotID      string                    `json:"snapshot_id"`
	ZoneID          string                    `json:"zone_id"`
	ServerTS        int64                     `json:"server_ts"`
	LastEventID     int64                     `json:"last_event_id"`
	Devices         []DeviceState             `json:"devices_online_state"`
	ActiveAlerts    []Alert                   `json:"active_alerts"`
	LatestTelemetry map[string]TelemetryValue `json:"latest_telemetry_per_channel"`
	RecentCommands  []CommandView             `json:"commands_recent"`
}
