package state

import "github.com/presage-dev/presage/internal/errors"

// Change records one state key transition inside a component. Values
// carry JSON semantics: numbers are float64, plus bool, string, and
// arbitrary composites for objects and arrays.
type Change struct {
	Component string `json:"component"`
	Key       string `json:"key"`
	OldValue  any    `json:"oldValue"`
	NewValue  any    `json:"newValue"`
}

// Shape classifies the relationship between a key's old and new value.
// The forecasting cache keys on shape, never on the literal value, so
// that count 3->4 and count 7->8 land on the same entry.
type Shape uint8

const (
	// ShapeIncrement is a numeric value that grew.
	ShapeIncrement Shape = iota
	// ShapeDecrement is a numeric value that shrank.
	ShapeDecrement
	// ShapeToggle is a boolean flip.
	ShapeToggle
	// ShapeText is a string-to-string change.
	ShapeText
	// ShapeLiteral is any other change: objects, arrays, type switches,
	// or a value that did not actually change.
	ShapeLiteral
)

func (s Shape) String() string {
	switch s {
	case ShapeIncrement:
		return "increment"
	case ShapeDecrement:
		return "decrement"
	case ShapeToggle:
		return "toggle"
	case ShapeText:
		return "text"
	default:
		return "literal"
	}
}

// ParseShape reverses String.
func ParseShape(name string) (Shape, error) {
	switch name {
	case "increment":
		return ShapeIncrement, nil
	case "decrement":
		return ShapeDecrement, nil
	case "toggle":
		return ShapeToggle, nil
	case "text":
		return ShapeText, nil
	case "literal":
		return ShapeLiteral, nil
	}
	return ShapeLiteral, errors.New("E033").WithDetail("got %q", name)
}

// Scalar reports whether the shape describes a simple scalar
// transition. Scalar single-key changes get the deterministic
// confidence seed; everything else gets the probabilistic one.
func (s Shape) Scalar() bool {
	switch s {
	case ShapeIncrement, ShapeDecrement, ShapeToggle:
		return true
	}
	return false
}

// Classify determines the shape of a value transition.
func Classify(oldValue, newValue any) Shape {
	switch o := oldValue.(type) {
	case bool:
		if n, ok := newValue.(bool); ok && o != n {
			return ShapeToggle
		}
	case float64:
		if n, ok := asNumber(newValue); ok {
			switch {
			case n > o:
				return ShapeIncrement
			case n < o:
				return ShapeDecrement
			}
		}
	case int:
		return Classify(float64(o), newValue)
	case int64:
		return Classify(float64(o), newValue)
	case string:
		if _, ok := newValue.(string); ok {
			return ShapeText
		}
	}
	return ShapeLiteral
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
