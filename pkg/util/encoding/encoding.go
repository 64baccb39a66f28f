// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package encoding implements order-preserving ("byte-comparable") key
// encodings. Histogram bucket boundaries are stored in this form so that
// comparisons and interpolation can be done on raw bytes without knowing the
// column type.
package encoding

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// Type markers. Every non-NULL value is prefixed with one of these so that
// values of different kinds never interleave and NULL sorts first.
const (
	encodedNull  = 0x00
	boolMarker   = 0x10
	intMarker    = 0x20
	floatMarker  = 0x30
	bytesMarker  = 0x40
	escape       = 0x00
	escapedTerm  = 0x01
	escaped00    = 0xff
	signBitMask  = uint64(1) << 63
	encodedWidth = 8
)

// EncodeNullAscending encodes a NULL value. NULL sorts before every other
// value.
func EncodeNullAscending(b []byte) []byte {
	return append(b, encodedNull)
}

// EncodeBoolAscending encodes a boolean value; false sorts before true.
func EncodeBoolAscending(b []byte, v bool) []byte {
	if v {
		return append(b, boolMarker, 1)
	}
	return append(b, boolMarker, 0)
}

// EncodeInt64Ascending encodes an int64 so that the byte order of the result
// matches the numeric order of the input.
func EncodeInt64Ascending(b []byte, v int64) []byte {
	b = append(b, intMarker)
	return binary.BigEndian.AppendUint64(b, uint64(v)^signBitMask)
}

// EncodeFloatAscending encodes a float64 so that the byte order of the result
// matches the numeric order of the input. -0 and +0 encode identically, and
// NaN sorts before all other values.
func EncodeFloatAscending(b []byte, f float64) []byte {
	b = append(b, floatMarker)
	if math.IsNaN(f) {
		return binary.BigEndian.AppendUint64(b, 0)
	}
	if f == 0 {
		f = 0
	}
	u := math.Float64bits(f)
	if f < 0 {
		u = ^u
	} else {
		u |= signBitMask
	}
	return binary.BigEndian.AppendUint64(b, u)
}

// EncodeBytesAscending encodes a byte slice. 0x00 bytes are escaped as
// 0x00 0xff and the value is terminated by 0x00 0x01, so that a value sorts
// before any value it is a proper prefix of.
func EncodeBytesAscending(b []byte, data []byte) []byte {
	b = append(b, bytesMarker)
	for _, c := range data {
		if c == escape {
			b = append(b, escape, escaped00)
			continue
		}
		b = append(b, c)
	}
	return append(b, escape, escapedTerm)
}

// EncodeStringAscending encodes a string using the bytes encoding.
func EncodeStringAscending(b []byte, s string) []byte {
	return EncodeBytesAscending(b, []byte(s))
}

// Descending returns a function that encodes with fn and inverts the
// appended bytes, reversing the sort order of the encoded values.
func Descending(fn func([]byte) []byte) func([]byte) []byte {
	return func(b []byte) []byte {
		n := len(b)
		b = fn(b)
		onesComplement(b[n:])
		return b
	}
}

// DecodeInt64Ascending decodes a value encoded by EncodeInt64Ascending.
func DecodeInt64Ascending(b []byte) (remaining []byte, v int64, err error) {
	if len(b) < 1+encodedWidth || b[0] != intMarker {
		return nil, 0, errors.Newf("invalid encoded int64 %x", b)
	}
	u := binary.BigEndian.Uint64(b[1:]) ^ signBitMask
	return b[1+encodedWidth:], int64(u), nil
}

// DecodeBytesAscending decodes a value encoded by EncodeBytesAscending.
func DecodeBytesAscending(b []byte) (remaining []byte, data []byte, err error) {
	if len(b) < 1 || b[0] != bytesMarker {
		return nil, nil, errors.Newf("invalid encoded bytes %x", b)
	}
	b = b[1:]
	for i := 0; i < len(b); i++ {
		if b[i] != escape {
			data = append(data, b[i])
			continue
		}
		if i+1 >= len(b) {
			break
		}
		switch b[i+1] {
		case escapedTerm:
			return b[i+2:], data, nil
		case escaped00:
			data = append(data, 0)
			i++
		default:
			return nil, nil, errors.Newf("invalid escape sequence %x", b[i:i+2])
		}
	}
	return nil, nil, errors.New("did not find terminator in encoded bytes")
}

// PrefixFraction maps key onto [0,1] by linear interpolation between lo and
// hi. Only the first eight bytes past the common prefix of lo and hi are
// considered. Keys outside [lo, hi] are clamped.
func PrefixFraction(lo, hi, key []byte) float64 {
	common := 0
	for common < len(lo) && common < len(hi) && lo[common] == hi[common] {
		common++
	}
	l := uint64Window(lo, common)
	h := uint64Window(hi, common)
	if h <= l {
		return 0.5
	}
	k := uint64Window(key, common)
	if len(key) < common || !hasPrefix(key, lo[:common]) {
		if string(key) < string(lo) {
			return 0
		}
		return 1
	}
	if k <= l {
		return 0
	}
	if k >= h {
		return 1
	}
	return float64(k-l) / float64(h-l)
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// uint64Window reads up to eight bytes of b starting at offset, padding with
// zeros on the right.
func uint64Window(b []byte, offset int) uint64 {
	var buf [encodedWidth]byte
	if offset < len(b) {
		copy(buf[:], b[offset:])
	}
	return binary.BigEndian.Uint64(buf[:])
}
