package bitio

import (
	"errors"
	"testing"
)

func TestReadBits_MSBFirst(t *testing.T) {
	r := NewReader([]byte{0x80})

	want := []uint64{1, 0, 0, 0, 0, 0, 0, 0}
	for i, w := range want {
		got, err := r.ReadBits(1)
		if err != nil {
			t.Fatalf("bit %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("bit %d = %d, want %d", i, got, w)
		}
	}
}

func TestReadBits_SplitEquivalence(t *testing.T) {
	// Reading n then m bits must equal reading n+m bits split by shift/mask.
	buf := []byte{0xA5, 0x5A, 0xA5, 0x5A, 0xA5, 0x5A}

	for n := 1; n <= 16; n++ {
		for m := 1; m <= 16; m++ {
			if n+m > 32 {
				continue
			}

			r1 := NewReader(buf)
			a, err := r1.ReadBits(n)
			if err != nil {
				t.Fatalf("n=%d m=%d: %v", n, m, err)
			}
			b, err := r1.ReadBits(m)
			if err != nil {
				t.Fatalf("n=%d m=%d: %v", n, m, err)
			}

			r2 := NewReader(buf)
			combined, err := r2.ReadBits(n + m)
			if err != nil {
				t.Fatalf("n=%d m=%d: %v", n, m, err)
			}

			wantA := combined >> uint(m)
			wantB := combined & (1<<uint(m) - 1)
			if a != wantA || b != wantB {
				t.Errorf("n=%d m=%d: got (%#x, %#x), want (%#x, %#x)", n, m, a, b, wantA, wantB)
			}
		}
	}
}

func TestReadBits_AlignedWidths(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}

	tests := []struct {
		n    int
		want uint64
	}{
		{8, 0x12},
		{16, 0x1234},
		{32, 0x12345678},
		{64, 0x123456789ABCDEF0},
	}
	for _, tt := range tests {
		r := NewReader(buf)
		got, err := r.ReadBits(tt.n)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("ReadBits(%d) = %#x, want %#x", tt.n, got, tt.want)
		}
		if r.Offset() != tt.n {
			t.Errorf("Offset after ReadBits(%d) = %d, want %d", tt.n, r.Offset(), tt.n)
		}
	}
}

func TestReadBits_CrossesByteBoundary(t *testing.T) {
	// 1010 0101 0101 1010: skip 4, read 8 -> 0101 0101.
	r := NewReader([]byte{0xA5, 0x5A})
	if err := r.Skip(4); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadBits(8)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x55 {
		t.Errorf("ReadBits(8) = %#x, want 0x55", got)
	}
}

func TestReadBits_Exhaustion(t *testing.T) {
	r := NewReader([]byte{0xFF})

	if _, err := r.ReadBits(9); !errors.Is(err, ErrBufferExhausted) {
		t.Errorf("ReadBits(9) error = %v, want ErrBufferExhausted", err)
	}
	if r.Offset() != 0 {
		t.Errorf("failed read advanced offset to %d, want 0", r.Offset())
	}

	// Exact fit still works.
	if _, err := r.ReadBits(8); err != nil {
		t.Fatalf("ReadBits(8): %v", err)
	}
	if _, err := r.ReadBits(1); !errors.Is(err, ErrBufferExhausted) {
		t.Errorf("ReadBits(1) past end error = %v, want ErrBufferExhausted", err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestSkip(t *testing.T) {
	r := NewReader([]byte{0x00, 0xFF})
	if err := r.Skip(8); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadBits(4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xF {
		t.Errorf("ReadBits(4) after Skip(8) = %#x, want 0xF", got)
	}
	if err := r.Skip(5); !errors.Is(err, ErrBufferExhausted) {
		t.Errorf("Skip(5) past end error = %v, want ErrBufferExhausted", err)
	}
}
