package report

import (
	"strings"
	"testing"
)

const plpinfo = "bsid=1283\n" +
	"0:lock=1 mod=qam256 cod=7/15 layer=core\n" +
	"1:lock=1 mod=qpsk cod=3/15 layer=core\n" +
	"2:lock=0\n" +
	"3:lock=1 mod=qam256 cod=14/15 layer=core"

const streaminfo = "tsid=0x0503\nprogram=1: 5.1 WXYZ\n"

func TestAssemble_Headers(t *testing.T) {
	lines := Assemble(plpinfo, streaminfo, nil)

	assertContains(t, lines, "L1D BSID: 1283 (0x503)")
	assertContains(t, lines, "SLT TSID: 1283 (0x503)")
}

func TestAssemble_HeadersNotSet(t *testing.T) {
	lines := Assemble("0:lock=1\n", "", nil)

	assertContains(t, lines, "L1D BSID: Not set")
	assertContains(t, lines, "SLT TSID: Not set")
}

func TestAssemble_SNRAnnotations(t *testing.T) {
	lines := Assemble(plpinfo, streaminfo, nil)

	// bsid= line is skipped entirely.
	for _, l := range lines {
		if strings.HasPrefix(l, "bsid=") {
			t.Errorf("bsid line leaked into report: %q", l)
		}
	}

	// Each locked PLP line appears verbatim, annotated when its modcod is
	// known.
	wantAfter := map[string]string{
		"0:lock=1 mod=qam256 cod=7/15 layer=core": "  -> Required SNR: Min 10.93 dB, Max 13.51 dB",
		"1:lock=1 mod=qpsk cod=3/15 layer=core":   "  -> Required SNR: Min -4.32 dB, Max -2.97 dB",
	}
	for line, annotation := range wantAfter {
		i := index(lines, line)
		if i < 0 {
			t.Fatalf("line %q missing from report", line)
		}
		if i+1 >= len(lines) || lines[i+1] != annotation {
			t.Errorf("line after %q = %q, want %q", line, lines[i+1], annotation)
		}
	}

	// No annotation without mod/cod tokens, or for an unknown code rate.
	for _, line := range []string{"2:lock=0", "3:lock=1 mod=qam256 cod=14/15 layer=core"} {
		i := index(lines, line)
		if i < 0 {
			t.Fatalf("line %q missing from report", line)
		}
		if i+1 < len(lines) && strings.Contains(lines[i+1], "Required SNR") {
			t.Errorf("unexpected SNR annotation after %q: %q", line, lines[i+1])
		}
	}
}

func TestAssemble_WithL1(t *testing.T) {
	// A 3-byte buffer is a legal (truncated) L1 stream: the decode is
	// partial, but it still lands in the report after the separator.
	lines := Assemble(plpinfo, streaminfo, []byte{0x00, 0x00, 0x00})

	sep := index(lines, separator)
	if sep < 0 {
		t.Fatal("separator missing before L1 section")
	}
	if i := index(lines, "--- L1-Basic Signaling ---"); i < sep {
		t.Errorf("L1 section at %d, want after separator at %d", i, sep)
	}
	assertContains(t, lines, "--- Truncated ---")
	assertContains(t, lines, "L1D BSID: 1283 (0x503)") // PLP section unaffected
}

func TestAssemble_NoL1(t *testing.T) {
	for _, l := range Assemble(plpinfo, streaminfo, nil) {
		if l == separator {
			t.Fatal("separator emitted without L1 data")
		}
	}
}

func assertContains(t *testing.T, lines []string, want string) {
	t.Helper()
	if index(lines, want) < 0 {
		t.Errorf("line %q missing from report:\n%s", want, strings.Join(lines, "\n"))
	}
}

func index(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}
