package tuner

import (
	"encoding/json"
	"testing"

	"atsc_diag/internal/status"
)

func TestSnapshotUnmarshal(t *testing.T) {
	raw := `{
		"device_id": "105E8A31",
		"tuner": "2",
		"channel": "atsc3:33:0+16",
		"lock": "atsc3",
		"status": "ch=atsc3:33 lock=atsc3 ss=100(-35dBm) snq=90(28dB) seq=100 bps=18234567 pps=1523",
		"plpinfo": "bsid=1283\n0:lock=1 mod=qam256 cod=7/15 layer=core",
		"streaminfo": "tsid=0x0503",
		"timestamp": "2026-08-30T12:00:00Z"
	}`

	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if s.DeviceID != "105E8A31" {
		t.Errorf("DeviceID = %q", s.DeviceID)
	}
	if s.Tuner != 2 {
		t.Errorf("Tuner = %d, want 2 (string form)", s.Tuner)
	}
	if !s.IsATSC3() {
		t.Error("IsATSC3() = false, want true")
	}
	if got := s.RFChannel(); got != 33 {
		t.Errorf("RFChannel() = %d, want 33", got)
	}
	if got := s.BSID(); got != 1283 {
		t.Errorf("BSID() = %d, want 1283", got)
	}
	if got := s.TSID(); got != 0x0503 {
		t.Errorf("TSID() = %d, want 1283", got)
	}
	if got := s.SignalStrengthDBm(); got != -35 {
		t.Errorf("SignalStrengthDBm() = %d, want -35", got)
	}
	if got := s.SignalQualityDB(); got != 28 {
		t.Errorf("SignalQualityDB() = %d, want 28", got)
	}
	if got := s.BitsPerSecond(); got != 18234567 {
		t.Errorf("BitsPerSecond() = %d, want 18234567", got)
	}
	if got := s.Time().Format("2006-01-02"); got != "2026-08-30" {
		t.Errorf("Time() date = %q", got)
	}
}

func TestSnapshotTunerNumeric(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"device_id":"X","tuner":1}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Tuner != 1 {
		t.Errorf("Tuner = %d, want 1 (numeric form)", s.Tuner)
	}
}

func TestSnapshotMissingFields(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"device_id":"X","tuner":0}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.IsATSC3() {
		t.Error("IsATSC3() = true for empty lock")
	}
	if got := s.BSID(); got != status.NotFound {
		t.Errorf("BSID() = %d, want NotFound", got)
	}
	if got := s.SignalStrengthDBm(); got != status.NotFound {
		t.Errorf("SignalStrengthDBm() = %d, want NotFound", got)
	}
}

func TestFlexInt64Garbage(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"tuner":"not-a-number"}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Tuner != 0 {
		t.Errorf("Tuner = %d, want 0 for garbage input", s.Tuner)
	}
}
