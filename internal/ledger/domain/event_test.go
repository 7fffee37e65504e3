package ledger

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValidateRequiresZoneAndEntity(t *testing.T) {
	valid := AppendInput{
		ZoneID:     "zone-1",
		Type:       TypeDeviceOnline,
		EntityType: "device",
		EntityID:   "dev-1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	missingZone := valid
	missingZone.ZoneID = ""
	if err := missingZone.Validate(); err == nil {
		t.Fatal("expected error for missing zone_id")
	}

	badType := valid
	badType.Type = "reactor_meltdown"
	if err := badType.Validate(); err == nil {
		t.Fatal("expected error for unknown type")
	}

	missingEntity := valid
	missingEntity.EntityID = ""
	if err := missingEntity.Validate(); err == nil {
		t.Fatal("expected error for missing entity reference")
	}

	badPayload := valid
	badPayload.Payload = json.RawMessage(`{"truncated":`)
	if err := badPayload.Validate(); err == nil {
		t.Fatal("expected error for invalid payload JSON")
	}
}

func TestIsCycleType(t *testing.T) {
	for _, eventType := range []string{TypeCycleStarted, TypeCycleAdvanced, TypeCycleFinished, TypeRecipeApplied} {
		if !IsCycleType(eventType) {
			t.Fatalf("%s should be a cycle type", eventType)
		}
	}
	if IsCycleType(TypeAlertRaised) {
		t.Fatal("alert_raised is not a cycle type")
	}
}

func TestGlobalTypesCoverAlertsOnly(t *testing.T) {
	if !GlobalTypes[TypeAlertRaised] || !GlobalTypes[TypeAlertCleared] {
		t.Fatal("alert events must be globally visible")
	}
	if GlobalTypes[TypeDeviceOnline] || GlobalTypes[TypeCycleStarted] {
		t.Fatal("non-alert events are zone-scoped")
	}
}

func TestEpochMillis(t *testing.T) {
	if EpochMillis(time.Time{}) != 0 {
		t.Fatal("zero time should map to 0")
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := EpochMillis(at); got != at.UnixMilli() {
		t.Fatalf("unexpected millis %d", got)
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		eventType string
		payload   string
		want      string
	}{
		{TypeZoneStatusChanged, `{"status":"degraded"}`, "Zone status changed to degraded"},
		{TypeDeviceOnline, `{"device_name":"ph-probe-2"}`, "Device ph-probe-2 came online"},
		{TypeDeviceOffline, `{"device_id":"dev-9"}`, "Device dev-9 went offline"},
		{TypeAlertRaised, `{"title":"High humidity","severity":"high"}`, "Alert raised: High humidity (high)"},
		{TypeAlertCleared, `{"title":"High humidity"}`, "Alert cleared: High humidity"},
		{TypeCommandIssued, `{"command_type":"set_light_level"}`, "Command set_light_level issued"},
		{TypeCommandFailed, `{"command_type":"dose_nutrient","error":"pump jammed"}`, "Command dose_nutrient failed: pump jammed"},
		{TypeRecipeApplied, `{"recipe_name":"basil-summer"}`, "Recipe basil-summer applied"},
		{TypeCycleAdvanced, `{"stage":"flowering"}`, "Cycle advanced to stage flowering"},
	}
	for _, tc := range cases {
		got := Summarize(tc.eventType, json.RawMessage(tc.payload))
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.eventType, got, tc.want)
		}
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	if got := Summarize(TypeZoneStatusChanged, nil); got != "Zone status changed to unknown" {
		t.Fatalf("empty payload fallback: %q", got)
	}
	if got := Summarize("custom_type", nil); got != "custom_type" {
		t.Fatalf("unknown type should echo: %q", got)
	}
}
