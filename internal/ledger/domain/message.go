package ledger

import (
	"encoding/json"
	"fmt"
)

// Summarize derives the human-readable message carried in every event record.
// It is computed from type plus payload so push and catch-up stay uniform.
func Summarize(eventType string, payload json.RawMessage) string {
	fields := map[string]any{}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &fields)
	}

	switch eventType {
	case TypeZoneStatusChanged:
		return fmt.Sprintf("Zone status changed to %s", stringField(fields, "status", "unknown"))
	case TypeDeviceOnline:
		return fmt.Sprintf("Device %s came online", stringField(fields, "device_name", stringField(fields, "device_id", "unknown")))
	case TypeDeviceOffline:
		return fmt.Sprintf("Device %s went offline", stringField(fields, "device_name", stringField(fields, "device_id", "unknown")))
	case TypeAlertRaised:
		return fmt.Sprintf("Alert raised: %s (%s)", stringField(fields, "title", "alert"), stringField(fields, "severity", "medium"))
	case TypeAlertCleared:
		return fmt.Sprintf("Alert cleared: %s", stringField(fields, "title", "alert"))
	case TypeCommandIssued:
		return fmt.Sprintf("Command %s issued", stringField(fields, "command_type", "command"))
	case TypeCommandAcked:
		return fmt.Sprintf("Command %s acknowledged", stringField(fields, "command_type", "command"))
	case TypeCommandFailed:
		reason := stringField(fields, "error", "")
		if reason == "" {
			return fmt.Sprintf("Command %s failed", stringField(fields, "command_type", "command"))
		}
		return fmt.Sprintf("Command %s failed: %s", stringField(fields, "command_type", "command"), reason)
	case TypeRecipeApplied:
		return fmt.Sprintf("Recipe %s applied", stringField(fields, "recipe_name", stringField(fields, "recipe_id", "recipe")))
	case TypeCycleStarted:
		return fmt.Sprintf("Cycle %s started", stringField(fields, "cycle_name", stringField(fields, "cycle_id", "cycle")))
	case TypeCycleAdvanced:
		return fmt.Sprintf("Cycle advanced to stage %s", stringField(fields, "stage", "next"))
	case TypeCycleFinished:
		return fmt.Sprintf("Cycle %s finished", stringField(fields, "cycle_name", stringField(fields, "cycle_id", "cycle")))
	default:
		return eventType
	}
}

func stringField(fields map[string]any, key, fallback string) string {
	if value, ok := fields[key].(string); ok && value != "" {
		return value
	}
	return fallback
}
