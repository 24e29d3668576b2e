// Package report assembles the ATSC 3.0 PLP / SNR detail report: tuner
// identifiers, per-PLP info annotated with required SNR, and the decoded
// L1 signaling when available.
//
// Assembly is pure formatting. The caller supplies the device blobs and
// (optionally) the already-Base64-decoded L1 bytes; persistence and
// display are its concern.
package report

import (
	"fmt"
	"strings"

	"atsc_diag/internal/l1"
	"atsc_diag/internal/modcod"
	"atsc_diag/internal/status"
)

const separator = "----------------------------------------"

// Assemble produces the ordered display lines for one diagnostics report.
//
// The BSID comes from the plpinfo blob and the TSID from streaminfo; both
// render as "Not set" when absent. Every non-bsid plpinfo line is emitted
// verbatim, followed by a required-SNR annotation when its mod=/cod=
// tokens resolve in the ModCod table. When l1Data is non-nil the L1
// signaling decode is appended after a separator; a truncated L1 decode is
// still appended in full, and never suppresses the PLP/SNR section.
func Assemble(plpinfo, streaminfo string, l1Data []byte) []string {
	lines := []string{" "}

	lines = append(lines, idLine("L1D BSID", status.ParseNumeric(plpinfo, "bsid=")))
	lines = append(lines, idLine("SLT TSID", status.ParseNumeric(streaminfo, "tsid=")))
	lines = append(lines, " ")

	for _, line := range strings.Split(plpinfo, "\n") {
		if line == "" || strings.HasPrefix(line, "bsid=") {
			continue
		}
		lines = append(lines, line)
		if snr, ok := requiredSNR(line); ok {
			lines = append(lines, snr)
		}
		lines = append(lines, " ")
	}

	if l1Data != nil {
		lines = append(lines, " ", separator, " ")
		decoded, _ := l1.Decode(l1Data) // partial output is kept as-is
		lines = append(lines, decoded...)
	}

	return lines
}

// idLine formats an identifier header such as "L1D BSID: 1283 (0x503)",
// or "Not set" for the absent-field sentinel.
func idLine(label string, v int64) string {
	if v == status.NotFound {
		return label + ": Not set"
	}
	return fmt.Sprintf("%s: %d (0x%X)", label, v, v)
}

// requiredSNR builds the SNR annotation for a plpinfo line carrying both
// mod= and cod= tokens. Lines whose modcod pair is not in the table get no
// annotation.
func requiredSNR(line string) (string, bool) {
	mod := status.Token(line, "mod=")
	cod := status.Token(line, "cod=")
	if mod == "" || cod == "" {
		return "", false
	}
	e, ok := modcod.Lookup(modcod.Normalize(mod), cod)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("  -> Required SNR: Min %.2f dB, Max %.2f dB", e.MinSNR, e.MaxSNR), true
}
