// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/util/encoding"
)

// Family identifies the type of a column or datum.
type Family int

const (
	// UnknownFamily is the type of NULL.
	UnknownFamily Family = iota
	// BoolFamily is the family of booleans.
	BoolFamily
	// IntFamily is the family of 64-bit integers.
	IntFamily
	// FloatFamily is the family of 64-bit floats.
	FloatFamily
	// DecimalFamily is the family of arbitrary precision decimals.
	DecimalFamily
	// StringFamily is the family of strings.
	StringFamily
	// BytesFamily is the family of byte strings.
	BytesFamily
)

var familyNames = [...]string{
	UnknownFamily: "unknown",
	BoolFamily:    "bool",
	IntFamily:     "int",
	FloatFamily:   "float",
	DecimalFamily: "decimal",
	StringFamily:  "string",
	BytesFamily:   "bytes",
}

func (f Family) String() string {
	if f < 0 || int(f) >= len(familyNames) {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return familyNames[f]
}

// FamilyByName returns the family with the given name.
func FamilyByName(name string) (Family, error) {
	for i, n := range familyNames {
		if n == name {
			return Family(i), nil
		}
	}
	return UnknownFamily, errors.Newf("unknown type %q", name)
}

// Datum represents a SQL value.
type Datum interface {
	// ResolvedFamily returns the family of the datum.
	ResolvedFamily() Family
	// Compare returns -1 if the receiver is less than other, 0 if receiver is
	// equal to other and +1 if receiver is greater than other. NULL sorts
	// first. Datums of different families are ordered by family.
	Compare(other Datum) int
	// EncodeKey appends the byte-comparable encoding of the datum.
	EncodeKey(b []byte, descending bool) []byte
	String() string
}

// DInt is the int Datum.
type DInt int64

// DFloat is the float Datum.
type DFloat float64

// DDecimal is the decimal Datum.
type DDecimal struct {
	apd.Decimal
}

// DString is the string Datum.
type DString string

// DBytes is the bytes Datum.
type DBytes string

// DBool is the boolean Datum.
type DBool bool

type dNull struct{}

// DNull is the NULL Datum.
var DNull Datum = dNull{}

var (
	_ Datum = DInt(0)
	_ Datum = DFloat(0)
	_ Datum = &DDecimal{}
	_ Datum = DString("")
	_ Datum = DBytes("")
	_ Datum = DBool(false)
	_ Datum = dNull{}
)

// NewDInt is a helper routine to create a DInt.
func NewDInt(d int64) Datum { return DInt(d) }

// NewDString is a helper routine to create a DString.
func NewDString(d string) Datum { return DString(d) }

// ParseDDecimal parses and returns the decimal Datum value represented by
// the provided string, or an error if parsing is unsuccessful.
func ParseDDecimal(s string) (*DDecimal, error) {
	dd := &DDecimal{}
	if _, _, err := dd.SetString(s); err != nil {
		return nil, errors.Wrapf(err, "could not parse %q as type decimal", s)
	}
	return dd, nil
}

// ParseDatum parses the string representation of a datum of the given
// family.
func ParseDatum(f Family, s string) (Datum, error) {
	if s == "NULL" {
		return DNull, nil
	}
	switch f {
	case BoolFamily:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as type bool", s)
		}
		return DBool(b), nil
	case IntFamily:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as type int", s)
		}
		return DInt(i), nil
	case FloatFamily:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as type float", s)
		}
		return DFloat(v), nil
	case DecimalFamily:
		return ParseDDecimal(s)
	case StringFamily:
		return DString(s), nil
	case BytesFamily:
		return DBytes(s), nil
	}
	return nil, errors.Newf("cannot parse datum of type %s", f)
}

func compareFamilies(a, b Datum) (int, bool) {
	fa, fb := a.ResolvedFamily(), b.ResolvedFamily()
	if fa == fb {
		return 0, false
	}
	if isNumeric(fa) && isNumeric(fb) {
		return 0, false
	}
	if fa < fb {
		return -1, true
	}
	return 1, true
}

func isNumeric(f Family) bool {
	return f == IntFamily || f == FloatFamily || f == DecimalFamily
}

// asFloat returns the numeric value of d as a float64.
func asFloat(d Datum) float64 {
	switch t := d.(type) {
	case DInt:
		return float64(t)
	case DFloat:
		return float64(t)
	case *DDecimal:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ResolvedFamily implements the Datum interface.
func (DInt) ResolvedFamily() Family { return IntFamily }

// Compare implements the Datum interface.
func (d DInt) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	if o, ok := other.(DInt); ok {
		switch {
		case d < o:
			return -1
		case d > o:
			return 1
		}
		return 0
	}
	return compareFloats(float64(d), asFloat(other))
}

// EncodeKey implements the Datum interface.
func (d DInt) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeInt64Ascending(b, int64(d))
	})
}

func (d DInt) String() string { return strconv.FormatInt(int64(d), 10) }

// ResolvedFamily implements the Datum interface.
func (DFloat) ResolvedFamily() Family { return FloatFamily }

// Compare implements the Datum interface.
func (d DFloat) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return compareFloats(float64(d), asFloat(other))
}

// EncodeKey implements the Datum interface.
func (d DFloat) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeFloatAscending(b, float64(d))
	})
}

func (d DFloat) String() string { return strconv.FormatFloat(float64(d), 'g', -1, 64) }

// ResolvedFamily implements the Datum interface.
func (*DDecimal) ResolvedFamily() Family { return DecimalFamily }

// Compare implements the Datum interface.
func (d *DDecimal) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	if o, ok := other.(*DDecimal); ok {
		return d.Cmp(&o.Decimal)
	}
	return compareFloats(asFloat(d), asFloat(other))
}

// EncodeKey implements the Datum interface. Decimals are keyed by their
// float64 approximation, which preserves order up to float precision.
func (d *DDecimal) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeFloatAscending(b, asFloat(d))
	})
}

func (d *DDecimal) String() string { return d.Decimal.String() }

// ResolvedFamily implements the Datum interface.
func (DString) ResolvedFamily() Family { return StringFamily }

// Compare implements the Datum interface.
func (d DString) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	o := other.(DString)
	switch {
	case d < o:
		return -1
	case d > o:
		return 1
	}
	return 0
}

// EncodeKey implements the Datum interface.
func (d DString) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeStringAscending(b, string(d))
	})
}

func (d DString) String() string { return strconv.Quote(string(d)) }

// ResolvedFamily implements the Datum interface.
func (DBytes) ResolvedFamily() Family { return BytesFamily }

// Compare implements the Datum interface.
func (d DBytes) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return bytes.Compare([]byte(d), []byte(other.(DBytes)))
}

// EncodeKey implements the Datum interface.
func (d DBytes) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeBytesAscending(b, []byte(d))
	})
}

func (d DBytes) String() string { return fmt.Sprintf("'\\x%x'", string(d)) }

// ResolvedFamily implements the Datum interface.
func (DBool) ResolvedFamily() Family { return BoolFamily }

// Compare implements the Datum interface.
func (d DBool) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	o := other.(DBool)
	switch {
	case d == o:
		return 0
	case !bool(d):
		return -1
	}
	return 1
}

// EncodeKey implements the Datum interface.
func (d DBool) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, func(b []byte) []byte {
		return encoding.EncodeBoolAscending(b, bool(d))
	})
}

func (d DBool) String() string { return strconv.FormatBool(bool(d)) }

// ResolvedFamily implements the Datum interface.
func (dNull) ResolvedFamily() Family { return UnknownFamily }

// Compare implements the Datum interface.
func (dNull) Compare(other Datum) int {
	if other == DNull {
		return 0
	}
	return -1
}

// EncodeKey implements the Datum interface.
func (dNull) EncodeKey(b []byte, descending bool) []byte {
	return encodeKey(b, descending, encoding.EncodeNullAscending)
}

func (dNull) String() string { return "NULL" }

func encodeKey(b []byte, descending bool, fn func([]byte) []byte) []byte {
	if descending {
		return encoding.Descending(fn)(b)
	}
	return fn(b)
}
