package status

import (
	"reflect"
	"testing"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		name string
		blob string
		key  string
		want int64
	}{
		{"absent key", "foo=12 bar=34", "baz=", NotFound},
		{"decimal", "bps=18234567 pps=12345", "bps=", 18234567},
		{"second key", "bps=18234567 pps=12345", "pps=", 12345},
		{"hex auto-detect", "tsid=0x1A5B", "tsid=", 0x1A5B},
		{"negative", "off=-42", "off=", -42},
		{"multiline", "bsid=1283\n0:lock=1", "bsid=", 1283},
		{"no digits after key", "lock=none", "lock=", NotFound},
		{"empty blob", "", "bps=", NotFound},
		// Substring matching is deliberate: "se=" matches inside "base=".
		{"substring match preserved", "base=77", "se=", 77},
	}
	for _, tt := range tests {
		if got := ParseNumeric(tt.blob, tt.key); got != tt.want {
			t.Errorf("%s: ParseNumeric(%q, %q) = %d, want %d", tt.name, tt.blob, tt.key, got, tt.want)
		}
	}
}

func TestParseDB(t *testing.T) {
	tests := []struct {
		name string
		blob string
		key  string
		want int64
	}{
		{"dBm annotation", "ss=100(-35dBm)", "ss=", -35},
		{"dB annotation", "snq=90(28dB)", "snq=", 28},
		{"absent key", "ss=100(-35dBm)", "seq=", NotFound},
		{"no parenthesis", "ss=100", "ss=", NotFound},
		{"paren without number", "ss=100(dBm)", "ss=", NotFound},
	}
	for _, tt := range tests {
		if got := ParseDB(tt.blob, tt.key); got != tt.want {
			t.Errorf("%s: ParseDB(%q, %q) = %d, want %d", tt.name, tt.blob, tt.key, got, tt.want)
		}
	}
}

func TestToken(t *testing.T) {
	line := "0:lock=1 mod=qam256 cod=7/15 plps=0"

	tests := []struct {
		key  string
		want string
	}{
		{"mod=", "qam256"},
		{"cod=", "7/15"},
		{"plps=", "0"}, // last token, no trailing space
		{"missing=", ""},
	}
	for _, tt := range tests {
		if got := Token(line, tt.key); got != tt.want {
			t.Errorf("Token(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSplitChannel(t *testing.T) {
	tests := []struct {
		in       string
		base     string
		plps     string
	}{
		{"atsc3:33:0+16", "atsc3:33", "0+16"},
		{"atsc3:33", "atsc3:33", ""},
		{"auto:7", "auto:7", ""},
		{"33", "33", ""},
	}
	for _, tt := range tests {
		base, plps := SplitChannel(tt.in)
		if base != tt.base || plps != tt.plps {
			t.Errorf("SplitChannel(%q) = (%q, %q), want (%q, %q)", tt.in, base, plps, tt.base, tt.plps)
		}
	}
}

func TestRFChannel(t *testing.T) {
	tests := []struct {
		in   string
		want uint
	}{
		{"atsc3:33:0+16", 33},
		{"auto:7", 7},
		{"33", 33},
		{"none", 0},
	}
	for _, tt := range tests {
		if got := RFChannel(tt.in); got != tt.want {
			t.Errorf("RFChannel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPLPLines(t *testing.T) {
	blob := "bsid=1283\n16:lock=1 mod=qam256 cod=10/15\n0:lock=1 mod=qpsk cod=3/15\n2:lock=0"

	want := []string{
		"0:lock=1 mod=qpsk cod=3/15",
		"2:lock=0",
		"16:lock=1 mod=qam256 cod=10/15",
	}
	if got := PLPLines(blob); !reflect.DeepEqual(got, want) {
		t.Errorf("PLPLines = %q, want %q", got, want)
	}
}
