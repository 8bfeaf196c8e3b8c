package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidBalance is returned when the balance document cannot be flattened.
var ErrInvalidBalance = errors.New("config: invalid balance document")

// Balance is a versioned, read-only key/value view of the balance document.
// Nested YAML maps flatten to dotted keys ("battle.plunder_pct") and lists
// to indexed keys ("items.weapon.tiers.0"). Lookups never fail: a missing
// key yields the caller's default.
type Balance struct {
	version string
	values  map[string]float64
}

// NewBalance builds a Balance from already-flattened values.
func NewBalance(version string, values map[string]float64) *Balance {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Balance{version: version, values: cp}
}

// LoadBalance reads and parses a YAML balance file.
func LoadBalance(path string) (*Balance, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := ParseBalance(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseBalance parses a YAML balance document.
func ParseBalance(raw []byte) (*Balance, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("balance yaml: %w", err)
	}
	b := &Balance{values: make(map[string]float64)}
	if v, ok := doc["version"]; ok {
		b.version = fmt.Sprint(v)
		delete(doc, "version")
	}
	if err := flatten("", doc, b.values); err != nil {
		return nil, err
	}
	return b, nil
}

func flatten(prefix string, node any, out map[string]float64) error {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			if err := flatten(join(prefix, k), child, out); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range v {
			if err := flatten(join(prefix, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
	case int:
		out[prefix] = float64(v)
	case int64:
		out[prefix] = float64(v)
	case uint64:
		out[prefix] = float64(v)
	case float64:
		out[prefix] = v
	case bool:
		if v {
			out[prefix] = 1
		} else {
			out[prefix] = 0
		}
	case nil:
	default:
		return fmt.Errorf("%w: key %q has non-numeric value %v", ErrInvalidBalance, prefix, v)
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Version returns the document version string.
func (b *Balance) Version() string {
	if b == nil {
		return ""
	}
	return b.version
}

// Float returns the value at key, or def when absent. Safe on a nil Balance.
func (b *Balance) Float(key string, def float64) float64 {
	if b == nil {
		return def
	}
	if v, ok := b.values[key]; ok {
		return v
	}
	return def
}

// Int returns the value at key truncated to an integer, or def when absent.
func (b *Balance) Int(key string, def int64) int64 {
	if b == nil {
		return def
	}
	if v, ok := b.values[key]; ok {
		return int64(v)
	}
	return def
}

// Has reports whether key is present.
func (b *Balance) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b.values[key]
	return ok
}

// Keys returns every key in sorted order.
func (b *Balance) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
