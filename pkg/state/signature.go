package state

import (
	"sort"
	"strings"

	"github.com/presage-dev/presage/internal/errors"
)

// KeyShape is one state key paired with its change shape.
type KeyShape struct {
	Key   string `json:"key"`
	Shape Shape  `json:"shape"`
}

// Signature is the canonical, order-independent encoding of a state
// change used as the forecasting cache key. It captures which keys
// changed and how, never the literal values, so structurally identical
// changes share one cache entry.
type Signature struct {
	Component string     `json:"component"`
	Keys      []KeyShape `json:"keys"`
}

// NewSignature builds the signature for a batch of changes landing in
// one component. Keys are sorted so the encoding is independent of the
// order the changes were reported in.
func NewSignature(component string, changes []Change) Signature {
	keys := make([]KeyShape, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, KeyShape{
			Key:   c.Key,
			Shape: Classify(c.OldValue, c.NewValue),
		})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Key != keys[j].Key {
			return keys[i].Key < keys[j].Key
		}
		return keys[i].Shape < keys[j].Shape
	})
	return Signature{Component: component, Keys: keys}
}

// Key returns the canonical string form, e.g.
// "Counter::count=increment". Equal signatures always produce equal
// keys, so the string is usable as a map key and wire identifier.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.Component)
	b.WriteString("::")
	for i, ks := range s.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(ks.Key)
		b.WriteByte('=')
		b.WriteString(ks.Shape.String())
	}
	return b.String()
}

// ParseSignature reverses Key: it rebuilds a Signature from its
// canonical string form. Keys arriving over the wire go through here
// before touching the store.
func ParseSignature(key string) (Signature, error) {
	component, rest, ok := strings.Cut(key, "::")
	if !ok || component == "" {
		return Signature{}, errors.New("E033").WithDetail("got %q", key)
	}

	sig := Signature{Component: component}
	if rest == "" {
		return sig, nil
	}
	for _, part := range strings.Split(rest, ",") {
		k, shapeName, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return Signature{}, errors.New("E033").WithDetail("bad key shape %q in %q", part, key)
		}
		shape, err := ParseShape(shapeName)
		if err != nil {
			return Signature{}, errors.New("E033").WithDetail("bad shape %q in %q", shapeName, key)
		}
		sig.Keys = append(sig.Keys, KeyShape{Key: k, Shape: shape})
	}
	return sig, nil
}

// Deterministic reports whether the change looks mechanically
// repeatable: exactly one key with a simple scalar shape. Deterministic
// signatures get a higher initial confidence seed than probabilistic
// ones.
func (s Signature) Deterministic() bool {
	return len(s.Keys) == 1 && s.Keys[0].Shape.Scalar()
}
