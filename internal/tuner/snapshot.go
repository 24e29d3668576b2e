// Package tuner provides the tuner status snapshot envelope exchanged with
// the device-I/O layer.
//
// A snapshot is one observation of one tuner: the raw diagnostic blobs the
// device returned, plus enough identity to attribute them. The device query
// itself (discovery, control connection) lives outside this repo; snapshots
// arrive as JSON over the ingest feed or as files handed to the CLI.
package tuner

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"atsc_diag/internal/status"
)

// FlexInt64 handles JSON fields that can be either string or number.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	// Try as number first
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	// Try as string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil // Silently ignore unparseable indexes
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// Snapshot is one tuner status observation.
type Snapshot struct {
	DeviceID string    `json:"device_id"` // e.g. "105E8A31"
	Tuner    FlexInt64 `json:"tuner"`     // tuner index on the device

	Channel string `json:"channel,omitempty"` // e.g. "atsc3:33:0+16"
	Lock    string `json:"lock,omitempty"`    // e.g. "atsc3", "8vsb", "none"

	// Raw diagnostic blobs, verbatim from the device.
	Status     string `json:"status,omitempty"`
	StreamInfo string `json:"streaminfo,omitempty"`
	PLPInfo    string `json:"plpinfo,omitempty"`
	L1Detail   string `json:"l1detail,omitempty"` // Base64

	Timestamp string `json:"timestamp,omitempty"` // RFC 3339
}

// Time parses the snapshot timestamp, falling back to the current time
// when it is absent or unparseable.
func (s *Snapshot) Time() time.Time {
	if t, err := time.Parse(time.RFC3339, s.Timestamp); err == nil {
		return t
	}
	return time.Now().UTC()
}

// IsATSC3 reports whether the tuner is locked to an ATSC 3.0 signal.
func (s *Snapshot) IsATSC3() bool {
	return strings.Contains(s.Lock, "atsc3")
}

// RFChannel returns the tuned RF channel number.
func (s *Snapshot) RFChannel() uint {
	return status.RFChannel(s.Channel)
}

// BSID returns the broadcast stream id from plpinfo, or status.NotFound.
func (s *Snapshot) BSID() int64 {
	return status.ParseNumeric(s.PLPInfo, "bsid=")
}

// TSID returns the transport stream id from streaminfo, or status.NotFound.
func (s *Snapshot) TSID() int64 {
	return status.ParseNumeric(s.StreamInfo, "tsid=")
}

// Signal readings from the raw status blob. Percentages come from the
// key=value form, dB readings from the parenthetical annotation; all return
// status.NotFound when the device did not report the field.

func (s *Snapshot) SignalStrengthPct() int64 { return status.ParseNumeric(s.Status, "ss=") }
func (s *Snapshot) SignalStrengthDBm() int64 { return status.ParseDB(s.Status, "ss=") }
func (s *Snapshot) SignalQualityPct() int64  { return status.ParseNumeric(s.Status, "snq=") }
func (s *Snapshot) SignalQualityDB() int64   { return status.ParseDB(s.Status, "snq=") }
func (s *Snapshot) SymbolQualityPct() int64  { return status.ParseNumeric(s.Status, "seq=") }
func (s *Snapshot) BitsPerSecond() int64     { return status.ParseNumeric(s.Status, "bps=") }
func (s *Snapshot) PacketsPerSecond() int64  { return status.ParseNumeric(s.Status, "pps=") }
