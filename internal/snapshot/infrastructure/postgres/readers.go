package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	snapshot "verdant-cloud/internal/snapshot/domain"
)

// Readers implements the snapshot aggregate readers against Postgres.
type Readers struct {
	db *sql.DB
}

// NewReaders constructs snapshot readers.
func NewReaders(db *sql.DB) *Readers {
	return &Readers{db: db}
}

// ZoneDevices returns the online state of all devices in a zone.
func (r *Readers) ZoneDevices(ctx context.Context, zoneID string) ([]snapshot.DeviceState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot readers: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, kind, online, last_seen_at
FROM devices
WHERE zone_id = $1
ORDER BY id ASC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []snapshot.DeviceState
	for rows.Next() {
		var device snapshot.DeviceState
		var lastSeen sql.NullTime
		if err := rows.Scan(&device.DeviceID, &device.Name, &device.Kind, &device.Online, &lastSeen); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			t := lastSeen.Time.UTC()
			device.LastSeenAt = &t
		}
		result = append(result, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ActiveAlerts returns alerts currently in active status.
func (r *Readers) ActiveAlerts(ctx context.Context, zoneID string) ([]snapshot.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot readers: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, zone_id, title, severity, status, raised_at
FROM alerts
WHERE zone_id = $1 AND status = 'active'
ORDER BY raised_at DESC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []snapshot.Alert
	for rows.Next() {
		var alert snapshot.Alert
		var raisedAt time.Time
		if err := rows.Scan(&alert.AlertID, &alert.ZoneID, &alert.Title, &alert.Severity, &alert.Status, &raisedAt); err != nil {
			return nil, err
		}
		alert.RaisedAt = raisedAt.UTC()
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestByChannel returns the latest reading for each telemetry channel.
func (r *Readers) LatestByChannel(ctx context.Context, zoneID string) (map[string]snapshot.TelemetryValue, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot readers: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT channel, value, unit, measured_at
FROM zone_telemetry_latest
WHERE zone_id = $1
ORDER BY channel ASC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]snapshot.TelemetryValue)
	for rows.Next() {
		var reading snapshot.TelemetryValue
		var value sql.NullFloat64
		var measuredAt time.Time
		if err := rows.Scan(&reading.Channel, &value, &reading.Unit, &measuredAt); err != nil {
			return nil, err
		}
		if !value.Valid {
			continue
		}
		reading.Value = value.Float64
		reading.MeasuredAt = measuredAt.UTC()
		result[reading.Channel] = reading
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecentCommands returns the most recent commands for a zone, newest first.
func (r *Readers) RecentCommands(ctx context.Context, zoneID string, limit int) ([]snapshot.CommandView, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot readers: nil db")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT command_id, device_id, command_type, status, created_at, updated_at
FROM commands
WHERE zone_id = $1
ORDER BY created_at DESC
LIMIT $2`, zoneID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []snapshot.CommandView
	for rows.Next() {
		var command snapshot.CommandView
		if err := rows.Scan(&command.CommandID, &command.DeviceID, &command.CommandType, &command.Status, &command.CreatedAt, &command.UpdatedAt); err != nil {
			return nil, err
		}
		command.CreatedAt = command.CreatedAt.UTC()
		command.UpdatedAt = command.UpdatedAt.UTC()
		result = append(result, command)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
