package config

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrMissingKey is returned when a required dictionary entry is absent
var ErrMissingKey = errors.New("missing key")

// Dict is a nested keyword dictionary decoded from YAML. Leaf values keep
// the types yaml.v3 decodes them to (string, int, float64, bool).
type Dict map[string]any

// ParseDict decodes a YAML mapping into a Dict
func ParseDict(data []byte) (Dict, error) {
	d := Dict{}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return d, nil
}

// Lookup returns the string value of key
func (d Dict) Lookup(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", fmt.Errorf("%w %q (keys: %v)", ErrMissingKey, key, d.Keys())
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("key %q: expected a word, got %T", key, v)
	}
	return s, nil
}

// LookupOrDefault returns the string value of key, or def when absent
func (d Dict) LookupOrDefault(key, def string) string {
	s, err := d.Lookup(key)
	if err != nil {
		return def
	}
	return s
}

// LookupFloat returns the numeric value of key, or def when absent
func (d Dict) LookupFloat(key string, def float64) (float64, error) {
	v, ok := d[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("key %q: expected a number, got %T", key, v)
	}
}

// LookupInt returns the integer value of key, or def when absent
func (d Dict) LookupInt(key string, def int) (int, error) {
	v, ok := d[key]
	if !ok {
		return def, nil
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("key %q: expected an integer, got %T", key, v)
	}
	return n, nil
}

// SubDict returns the nested dictionary under key
func (d Dict) SubDict(key string) (Dict, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMissingKey, key)
	}
	switch m := v.(type) {
	case Dict:
		return m, nil
	case map[string]any:
		return Dict(m), nil
	default:
		return nil, fmt.Errorf("key %q: expected a dictionary, got %T", key, v)
	}
}

// Keys returns the sorted keys of d
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
