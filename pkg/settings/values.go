// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"io"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Values holds the overridden values of settings. A nil or empty Values
// yields the registered defaults.
type Values struct {
	mu struct {
		sync.RWMutex
		vals map[string]interface{}
	}
}

// MakeValues returns an empty Values and freezes the registry.
func MakeValues() *Values {
	Freeze()
	sv := &Values{}
	sv.mu.vals = make(map[string]interface{})
	return sv
}

func (sv *Values) get(key string) (interface{}, bool) {
	if sv == nil {
		return nil, false
	}
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	v, ok := sv.mu.vals[key]
	return v, ok
}

func (sv *Values) set(key string, v interface{}) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.mu.vals == nil {
		sv.mu.vals = make(map[string]interface{})
	}
	sv.mu.vals[key] = v
}

// Set parses and stores the value of the named setting.
func (sv *Values) Set(key, value string) error {
	s, _, ok := Lookup(key)
	if !ok {
		return errors.Errorf("unknown setting %q", key)
	}
	v, err := s.decode(value)
	if err != nil {
		return err
	}
	sv.set(key, v)
	return nil
}

// Overridden returns the sorted keys of the settings overridden in sv.
func (sv *Values) Overridden() []string {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	res := make([]string, 0, len(sv.mu.vals))
	for k := range sv.mu.vals {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// LoadYAML reads a flat mapping of setting keys to values and applies it to
// sv. The whole document is validated before any value is applied.
func (sv *Values) LoadYAML(r io.Reader) error {
	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "parsing settings")
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	decoded := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		s, _, ok := Lookup(k)
		if !ok {
			return errors.Errorf("unknown setting %q", k)
		}
		n := doc[k]
		if n.Kind != yaml.ScalarNode {
			return errors.Errorf("setting %q: expected a scalar value", k)
		}
		v, err := s.decode(n.Value)
		if err != nil {
			return err
		}
		decoded[k] = v
	}
	for _, k := range keys {
		sv.set(k, decoded[k])
	}
	return nil
}
