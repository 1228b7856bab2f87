package query

import "strings"

// Key identifies a cached read: operation name followed by its parameters,
// e.g. Key{"ratings", "42"}.
type Key []string

// NewKey builds a key from an operation name and parameters
func NewKey(op string, args ...string) Key {
	k := make(Key, 0, len(args)+1)
	k = append(k, op)
	return append(k, args...)
}

// String renders the key for logs: (ratings,42)
func (k Key) String() string {
	return "(" + strings.Join(k, ",") + ")"
}

// id is the map index of the key. Unit separator keeps parts unambiguous.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

// Pattern selects cache keys for invalidation by structural comparison.
// An exact pattern matches one key; a wildcard pattern matches every key
// that starts with its prefix, including the prefix itself.
type Pattern struct {
	prefix   Key
	wildcard bool
}

// Exact matches exactly one key
func Exact(k Key) Pattern {
	return Pattern{prefix: k}
}

// Family matches the given parts followed by anything: Family("titles") is (titles,*)
func Family(parts ...string) Pattern {
	return Pattern{prefix: Key(parts), wildcard: true}
}

// Matches reports whether k is selected by the pattern
func (p Pattern) Matches(k Key) bool {
	if len(k) < len(p.prefix) {
		return false
	}
	if !p.wildcard && len(k) != len(p.prefix) {
		return false
	}
	for i, part := range p.prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	if !p.wildcard {
		return p.prefix.String()
	}
	parts := append(append([]string{}, p.prefix...), "*")
	return "(" + strings.Join(parts, ",") + ")"
}
