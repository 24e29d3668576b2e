// Package b64 decodes the standard-alphabet Base64 strings returned by
// HDHomeRun tuners for the /tunerN/l1detail variable.
//
// The decoder is deliberately strict: input length must be a multiple of
// four, only the standard alphabet plus trailing '=' padding is accepted,
// and nothing is returned on failure. The quartet-wise algorithm and the
// sentinel inverse table match the upstream l1dump tooling, so device blobs
// decode byte-for-byte identically.
package b64

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput indicates a length that is not a multiple of four,
	// or '=' padding somewhere other than the last one or two positions.
	ErrMalformedInput = errors.New("b64: malformed input")

	// ErrInvalidCharacter indicates a byte outside [A-Za-z0-9+/=].
	ErrInvalidCharacter = errors.New("b64: invalid character")
)

// inverse maps ASCII codes (offset by '+', i.e. 43) to 6-bit values.
// Entries of -1 are invalid characters.
var inverse = [80]int8{
	62, -1, -1, -1, 63, 52, 53, 54, 55, 56, 57, 58,
	59, 60, 61, -1, -1, -1, -1, -1, -1, -1, 0, 1, 2, 3, 4, 5,
	6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20,
	21, 22, 23, 24, 25, -1, -1, -1, -1, -1, -1, 26, 27, 28,
	29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42,
	43, 44, 45, 46, 47, 48, 49, 50, 51,
}

// value returns the 6-bit value for c, or -1 if c is not in the alphabet.
func value(c byte) int8 {
	if c < '+' || c > 'z' {
		return -1
	}
	return inverse[c-'+']
}

// DecodedLen returns the number of bytes Decode will produce for s,
// accounting for trailing '=' padding.
func DecodedLen(s string) int {
	n := len(s) / 4 * 3
	for i := len(s) - 1; i >= 0 && s[i] == '='; i-- {
		n--
	}
	return n
}

// Decode converts a Base64 string to raw bytes. It is all-or-nothing: any
// malformed quartet fails the whole decode and no partial output is
// returned.
func Decode(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrMalformedInput, len(s))
	}
	if s == "" {
		return nil, nil
	}

	// Padding may only appear as the final one or two characters.
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			if i < len(s)-2 {
				return nil, fmt.Errorf("%w: padding at position %d", ErrMalformedInput, i)
			}
			continue
		}
		if value(c) < 0 {
			return nil, fmt.Errorf("%w: %q at position %d", ErrInvalidCharacter, c, i)
		}
	}
	if s[len(s)-2] == '=' && s[len(s)-1] != '=' {
		return nil, fmt.Errorf("%w: padding in non-terminal position", ErrMalformedInput)
	}

	out := make([]byte, 0, DecodedLen(s))
	for i := 0; i < len(s); i += 4 {
		v := uint32(value(s[i]))
		v = v<<6 | uint32(value(s[i+1]))
		if s[i+2] == '=' {
			v <<= 6
		} else {
			v = v<<6 | uint32(value(s[i+2]))
		}
		if s[i+3] == '=' {
			v <<= 6
		} else {
			v = v<<6 | uint32(value(s[i+3]))
		}

		out = append(out, byte(v>>16))
		if s[i+2] != '=' {
			out = append(out, byte(v>>8))
		}
		if s[i+3] != '=' {
			out = append(out, byte(v))
		}
	}
	return out, nil
}
