// Package status extracts values from the free-form key=value diagnostic
// blobs an HDHomeRun tuner returns (status, streaminfo, plpinfo, debug).
//
// These are substring scanners, not tokenizers: a key matches anywhere in
// the blob, including inside a longer key ("se=" matches within "base=").
// That matches the device tooling this replaces; callers pick keys that are
// unambiguous in the blobs they query.
package status

import (
	"sort"
	"strconv"
	"strings"
)

// NotFound is the sentinel returned when a key is absent from a blob. It is
// a "field not present" signal, never a real measurement; callers must check
// for it before treating the result as a value.
const NotFound int64 = -999

// ParseNumeric finds the first occurrence of key and parses the number that
// immediately follows it. Base is auto-detected: a 0x prefix means hex,
// otherwise decimal ("bps=18234567", "tsid=0x1A5B").
func ParseNumeric(blob, key string) int64 {
	i := strings.Index(blob, key)
	if i < 0 {
		return NotFound
	}
	return parseAutoInt(blob[i+len(key):])
}

// ParseDB finds key, then the next '(', and parses the decimal integer that
// follows the parenthesis. Used for readings like "ss=100(-35dBm)" where the
// dB value is the parenthetical annotation.
func ParseDB(blob, key string) int64 {
	i := strings.Index(blob, key)
	if i < 0 {
		return NotFound
	}
	j := strings.IndexByte(blob[i:], '(')
	if j < 0 {
		return NotFound
	}
	return parseDecimal(blob[i+j+1:])
}

// Token returns the value following key up to the next space or end of
// line. Empty string when the key is absent ("mod=qam256 cod=7/15" with
// key "mod=" yields "qam256").
func Token(line, key string) string {
	i := strings.Index(line, key)
	if i < 0 {
		return ""
	}
	v := line[i+len(key):]
	if j := strings.IndexAny(v, " \n"); j >= 0 {
		v = v[:j]
	}
	return v
}

// SplitChannel separates an ATSC 3.0 channel string of the form
// "atsc3:33:0+16" into the tuned channel ("atsc3:33") and the PLP list
// ("0+16"). Strings without a second colon are returned unchanged with an
// empty PLP list.
func SplitChannel(ch string) (base, plps string) {
	first := strings.IndexByte(ch, ':')
	if first < 0 {
		return ch, ""
	}
	second := strings.IndexByte(ch[first+1:], ':')
	if second < 0 {
		return ch, ""
	}
	second += first + 1
	return ch[:second], ch[second+1:]
}

// RFChannel extracts the numeric RF channel from a channel string such as
// "auto:33", "atsc3:33:0+16" or plain "33". Returns 0 when no leading
// number is found after the prefix.
func RFChannel(ch string) uint {
	s := ch
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

// PLPLines returns the non-bsid lines of a plpinfo blob, sorted by their
// leading numeric PLP id ("2:lock=1 ..."). Lines without a parseable id
// keep their relative order at the end.
func PLPLines(plpinfo string) []string {
	var lines []string
	for _, line := range strings.Split(plpinfo, "\n") {
		if line == "" || strings.HasPrefix(line, "bsid=") {
			continue
		}
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		a, aok := plpID(lines[i])
		b, bok := plpID(lines[j])
		if aok != bok {
			return aok
		}
		return a < b
	})
	return lines
}

func plpID(line string) (int, bool) {
	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 || end >= len(line) || line[end] != ':' {
		return 0, false
	}
	n, err := strconv.Atoi(line[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseAutoInt parses a leading integer with strtol(s, 0) semantics: an
// optional sign, then 0x/0X for hex, otherwise decimal. NotFound when no
// digits are present.
func parseAutoInt(s string) int64 {
	neg := false
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	base := 10
	if i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') {
		base = 16
		i += 2
	}
	start := i
	for i < len(s) && isBaseDigit(s[i], base) {
		i++
	}
	if i == start {
		// "0x" with no hex digits still parses as 0, like strtol.
		if base == 16 {
			return 0
		}
		return NotFound
	}
	n, err := strconv.ParseInt(s[start:i], base, 64)
	if err != nil {
		return NotFound
	}
	if neg {
		return -n
	}
	return n
}

// parseDecimal parses a leading optionally-signed decimal integer.
func parseDecimal(s string) int64 {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return NotFound
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return NotFound
	}
	return n
}

func isBaseDigit(c byte, base int) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	if base != 16 {
		return false
	}
	return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
