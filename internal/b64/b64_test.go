package b64

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"
)

func TestDecode_RoundTrip(t *testing.T) {
	// The standard library encoder is the reference; our decoder must invert
	// it for every buffer length, including both padding cases.
	rng := rand.New(rand.NewSource(1))

	for size := 0; size <= 300; size++ {
		buf := make([]byte, size)
		rng.Read(buf)

		got, err := Decode(base64.StdEncoding.EncodeToString(buf))
		if err != nil {
			t.Fatalf("size %d: Decode: %v", size, err)
		}
		if !bytes.Equal(got, buf) {
			t.Fatalf("size %d: round trip mismatch\ngot  %x\nwant %x", size, got, buf)
		}
	}
}

func TestDecode_KnownVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Zg==", "f"},
		{"Zm8=", "fo"},
		{"Zm9v", "foo"},
		{"Zm9vYmFy", "foobar"},
		{"AAAA", "\x00\x00\x00"},
		{"//8=", "\xff\xff"},
	}
	for _, tt := range tests {
		got, err := Decode(tt.in)
		if err != nil {
			t.Errorf("Decode(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"bad length", "AAA", ErrMalformedInput},
		{"bad length 2", "AAAAA", ErrMalformedInput},
		{"invalid character", "AA$A", ErrInvalidCharacter},
		{"space", "AA A", ErrInvalidCharacter},
		{"padding mid-string", "A=AA", ErrMalformedInput},
		{"padding then data", "AA=A", ErrMalformedInput},
		{"padding in earlier quartet", "AA==AAAA", ErrMalformedInput},
		{"three pads", "A===", ErrMalformedInput},
	}
	for _, tt := range tests {
		out, err := Decode(tt.in)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Decode(%q) error = %v, want %v", tt.name, tt.in, err, tt.want)
		}
		if out != nil {
			t.Errorf("%s: Decode(%q) returned partial output %x", tt.name, tt.in, out)
		}
	}
}

func TestDecodedLen(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"AAAA", 3},
		{"AAA=", 2},
		{"AA==", 1},
		{"AAAAAA==", 4},
	}
	for _, tt := range tests {
		if got := DecodedLen(tt.in); got != tt.want {
			t.Errorf("DecodedLen(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
