// Package vlq implements the variable-length quantity encoding used by
// Standard MIDI Files for delta-times and event lengths.
//
// A quantity is stored big-endian, seven bits per byte. Every byte except the
// last has its high bit (0x80) set.
package vlq

import "errors"

// MaxSMF is the largest value a Standard MIDI File may store in a VLQ (four bytes).
const MaxSMF = 0x0FFFFFFF

// MaxLen is the longest encoding of a 32-bit value.
const MaxLen = 5

const (
	continuation = 0x80
	payloadMask  = 0x7F
)

// ErrTruncated is returned when the data ends before a terminating byte.
var ErrTruncated = errors.New("vlq: truncated quantity")

// ErrOverflow is returned when a quantity does not fit in 32 bits.
var ErrOverflow = errors.New("vlq: quantity exceeds 32 bits")

// Len returns the number of bytes Encode(v) produces.
func Len(v uint32) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// Encode returns the minimal encoding of v. At least one byte is always returned.
func Encode(v uint32) []byte {
	return Append(make([]byte, 0, Len(v)), v)
}

// Append appends the encoding of v to dst and returns the extended slice.
func Append(dst []byte, v uint32) []byte {
	var tmp [MaxLen]byte
	i := MaxLen - 1
	tmp[i] = byte(v & payloadMask)
	for v >>= 7; v != 0; v >>= 7 {
		i--
		tmp[i] = byte(v&payloadMask) | continuation
	}
	return append(dst, tmp[i:]...)
}

// Decode reads a quantity starting at data[pos]. It returns the value and the
// number of bytes consumed, including the terminating byte.
func Decode(data []byte, pos int) (uint32, int, error) {
	var value uint32
	for n := 0; ; n++ {
		if n == MaxLen {
			return 0, n, ErrOverflow
		}
		if pos+n < 0 || pos+n >= len(data) {
			return 0, n, ErrTruncated
		}
		b := data[pos+n]
		if n == MaxLen-1 && value > (^uint32(0))>>7 {
			return 0, n + 1, ErrOverflow
		}
		value = value<<7 | uint32(b&payloadMask)
		if b&continuation == 0 {
			return value, n + 1, nil
		}
	}
}
