// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package settings implements a registry of named, typed tunables. Settings
// are registered at init time with a default; a Values instance holds the
// overrides in effect for one optimizer instance.
package settings

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Setting is the interface implemented by all typed settings.
type Setting interface {
	Key() string
	// Typ returns the short type name of the setting ("f", "b" or "i").
	Typ() string
	// String returns the value in effect in sv, formatted for display.
	String(sv *Values) string
	// DefaultString returns the default value, formatted for display.
	DefaultString() string
	// decode parses s into the setting's value type and validates it.
	decode(s string) (interface{}, error)
}

type common struct {
	key string
}

func (c common) Key() string { return c.key }

// FloatSetting is the interface of a setting variable that will be updated
// automatically when the corresponding key changes.
type FloatSetting struct {
	common
	defaultValue float64
	validate     func(float64) error
}

var _ Setting = &FloatSetting{}

// Typ returns the short (1 char) string denoting the type of setting.
func (*FloatSetting) Typ() string { return "f" }

// Get retrieves the float value in the setting.
func (f *FloatSetting) Get(sv *Values) float64 {
	if v, ok := sv.get(f.key); ok {
		return v.(float64)
	}
	return f.defaultValue
}

// Default returns the default value.
func (f *FloatSetting) Default() float64 { return f.defaultValue }

func (f *FloatSetting) String(sv *Values) string {
	return strconv.FormatFloat(f.Get(sv), 'g', -1, 64)
}

// DefaultString implements the Setting interface.
func (f *FloatSetting) DefaultString() string {
	return strconv.FormatFloat(f.defaultValue, 'g', -1, 64)
}

func (f *FloatSetting) decode(s string) (interface{}, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value for %s", f.key)
	}
	if f.validate != nil {
		if err := f.validate(v); err != nil {
			return nil, errors.Wrapf(err, "invalid value for %s", f.key)
		}
	}
	return v, nil
}

// Override sets the value of the setting in sv, bypassing parsing. It is
// intended for tests.
func (f *FloatSetting) Override(sv *Values, v float64) {
	sv.set(f.key, v)
}

// BoolSetting is the interface of a setting variable that will be updated
// automatically when the corresponding key changes.
type BoolSetting struct {
	common
	defaultValue bool
}

var _ Setting = &BoolSetting{}

// Typ returns the short (1 char) string denoting the type of setting.
func (*BoolSetting) Typ() string { return "b" }

// Get retrieves the bool value in the setting.
func (b *BoolSetting) Get(sv *Values) bool {
	if v, ok := sv.get(b.key); ok {
		return v.(bool)
	}
	return b.defaultValue
}

func (b *BoolSetting) String(sv *Values) string { return strconv.FormatBool(b.Get(sv)) }

// DefaultString implements the Setting interface.
func (b *BoolSetting) DefaultString() string { return strconv.FormatBool(b.defaultValue) }

func (b *BoolSetting) decode(s string) (interface{}, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value for %s", b.key)
	}
	return v, nil
}

// Override sets the value of the setting in sv. It is intended for tests.
func (b *BoolSetting) Override(sv *Values, v bool) {
	sv.set(b.key, v)
}

// IntSetting is the interface of a setting variable that will be updated
// automatically when the corresponding key changes.
type IntSetting struct {
	common
	defaultValue int64
	validate     func(int64) error
}

var _ Setting = &IntSetting{}

// Typ returns the short (1 char) string denoting the type of setting.
func (*IntSetting) Typ() string { return "i" }

// Get retrieves the int value in the setting.
func (i *IntSetting) Get(sv *Values) int64 {
	if v, ok := sv.get(i.key); ok {
		return v.(int64)
	}
	return i.defaultValue
}

func (i *IntSetting) String(sv *Values) string { return strconv.FormatInt(i.Get(sv), 10) }

// DefaultString implements the Setting interface.
func (i *IntSetting) DefaultString() string { return strconv.FormatInt(i.defaultValue, 10) }

func (i *IntSetting) decode(s string) (interface{}, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value for %s", i.key)
	}
	if i.validate != nil {
		if err := i.validate(v); err != nil {
			return nil, errors.Wrapf(err, "invalid value for %s", i.key)
		}
	}
	return v, nil
}

// Override sets the value of the setting in sv. It is intended for tests.
func (i *IntSetting) Override(sv *Values, v int64) {
	sv.set(i.key, v)
}

// RegisterFloatSetting defines a new setting with type float.
func RegisterFloatSetting(
	key, desc string, defaultValue float64, validate func(float64) error,
) *FloatSetting {
	if validate != nil {
		if err := validate(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	s := &FloatSetting{common: common{key: key}, defaultValue: defaultValue, validate: validate}
	register(key, desc, s)
	return s
}

// RegisterBoolSetting defines a new setting with type bool.
func RegisterBoolSetting(key, desc string, defaultValue bool) *BoolSetting {
	s := &BoolSetting{common: common{key: key}, defaultValue: defaultValue}
	register(key, desc, s)
	return s
}

// RegisterIntSetting defines a new setting with type int.
func RegisterIntSetting(
	key, desc string, defaultValue int64, validate func(int64) error,
) *IntSetting {
	if validate != nil {
		if err := validate(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	s := &IntSetting{common: common{key: key}, defaultValue: defaultValue, validate: validate}
	register(key, desc, s)
	return s
}

// NonNegativeFloat can be passed to RegisterFloatSetting.
func NonNegativeFloat(v float64) error {
	if v < 0 {
		return errors.Errorf("cannot set to a negative value: %f", v)
	}
	return nil
}

// Fraction can be passed to RegisterFloatSetting for values in
// [0, 1].
func Fraction(v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("cannot set to a value outside [0, 1]: %f", v)
	}
	return nil
}

// PositiveInt can be passed to RegisterIntSetting.
func PositiveInt(v int64) error {
	if v < 1 {
		return errors.Errorf("cannot set to a non-positive value: %d", v)
	}
	return nil
}
