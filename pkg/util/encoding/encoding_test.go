// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package encoding

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeInt64Ascending(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 40, -1, 0, 1, 42, 1 << 40, math.MaxInt64}
	var last []byte
	for i, v := range values {
		enc := EncodeInt64Ascending(nil, v)
		if i > 0 && bytes.Compare(last, enc) >= 0 {
			t.Errorf("%d: expected %x < %x", v, last, enc)
		}
		rem, dec, err := DecodeInt64Ascending(enc)
		require.NoError(t, err)
		require.Empty(t, rem)
		require.Equal(t, v, dec)
		last = enc
	}
	_, _, err := DecodeInt64Ascending(EncodeNullAscending(nil))
	require.Error(t, err)
}

func TestEncodeFloatAscending(t *testing.T) {
	values := []float64{math.NaN(), math.Inf(-1), -1e10, -0.5, 0, 0.5, 1e10, math.Inf(1)}
	var last []byte
	for i, v := range values {
		enc := EncodeFloatAscending(nil, v)
		if i > 0 && bytes.Compare(last, enc) >= 0 {
			t.Errorf("%v: expected %x < %x", v, last, enc)
		}
		last = enc
	}
	require.Equal(t, EncodeFloatAscending(nil, 0), EncodeFloatAscending(nil, math.Copysign(0, -1)))
}

func TestEncodeBytesAscending(t *testing.T) {
	values := [][]byte{{}, {0}, {0, 0}, {0, 1}, {1}, []byte("a"), []byte("a\x00"), []byte("ab"), {0xff}}
	var last []byte
	for i, v := range values {
		enc := EncodeBytesAscending(nil, v)
		if i > 0 && bytes.Compare(last, enc) >= 0 {
			t.Errorf("%q: expected %x < %x", v, last, enc)
		}
		rem, dec, err := DecodeBytesAscending(append(enc, 7))
		require.NoError(t, err)
		require.Equal(t, []byte{7}, rem)
		require.Equal(t, string(v), string(dec))
		last = enc
	}

	// NULL sorts before every other value.
	require.Negative(t, bytes.Compare(EncodeNullAscending(nil), EncodeBoolAscending(nil, false)))
	require.Negative(t, bytes.Compare(EncodeBoolAscending(nil, true), EncodeInt64Ascending(nil, math.MinInt64)))
}

func TestDescending(t *testing.T) {
	desc := func(s string) []byte {
		return Descending(func(b []byte) []byte { return EncodeStringAscending(b, s) })([]byte{9})
	}
	a, b := desc("a"), desc("b")
	require.Equal(t, byte(9), a[0])
	require.Positive(t, bytes.Compare(a, b))
	// Long enough to exercise the word-at-a-time path.
	long := desc("abcdefghijklmnopqrstuvwxyz")
	require.Equal(t, EncodeStringAscending(nil, "abcdefghijklmnopqrstuvwxyz")[0], ^long[1])
}

func TestPrefixFraction(t *testing.T) {
	lo := EncodeStringAscending(nil, "a")
	hi := EncodeStringAscending(nil, "c")
	require.Equal(t, 0.0, PrefixFraction(lo, hi, EncodeStringAscending(nil, "A")))
	require.Equal(t, 1.0, PrefixFraction(lo, hi, EncodeStringAscending(nil, "d")))
	f := PrefixFraction(lo, hi, EncodeStringAscending(nil, "b"))
	require.Greater(t, f, 0.0)
	require.Less(t, f, 1.0)
	require.Equal(t, 0.5, PrefixFraction(hi, lo, EncodeStringAscending(nil, "b")))
}
