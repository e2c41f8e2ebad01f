// Package eventindex implements the event-log coverage index: the compact
// bit-mask representation of which block ranges have already been fetched
// for a (contract, event, argument-filter) key, the filter algebra that
// decides whether one filter's coverage can serve another, and the
// repository that persists EventIndex rows.
package eventindex

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind tags the shape of a Value.
type Kind int

// The four shapes an argument-filter value can take.
const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindObject
)

// Value is the tagged sum used for event-argument filters: null, a JSON
// scalar, a list of values, or an object mapping string keys to values.
type Value struct {
	Kind   Kind
	Scalar interface{}
	List   []Value
	Object map[string]Value
}

// Null is the canonical null Value.
func Null() Value { return Value{Kind: KindNull} }

// NewScalar wraps a JSON scalar (string, float64, bool) as a Value.
func NewScalar(v interface{}) Value { return Value{Kind: KindScalar, Scalar: v} }

// NewList wraps a slice of values as a Value.
func NewList(vs []Value) Value { return Value{Kind: KindList, List: vs} }

// NewObject wraps a string-keyed map of values as a Value.
func NewObject(m map[string]Value) Value { return Value{Kind: KindObject, Object: m} }

// Normalize returns a fixed point of v: null becomes an empty object, object
// keys are sorted, list values are sorted (by their normalized JSON
// encoding), and every nested value is normalized recursively.
// normalize(normalize(f)) == normalize(f) for every f.
func Normalize(v Value) Value {
	switch v.Kind {
	case KindNull:
		return Value{Kind: KindObject, Object: map[string]Value{}}
	case KindObject:
		out := make(map[string]Value, len(v.Object))
		for k, sub := range v.Object {
			out[k] = Normalize(sub)
		}
		return Value{Kind: KindObject, Object: out}
	case KindList:
		out := make([]Value, len(v.List))
		for i, sub := range v.List {
			out[i] = Normalize(sub)
		}
		sort.Slice(out, func(i, j int) bool {
			return canonicalString(out[i]) < canonicalString(out[j])
		})
		return Value{Kind: KindList, List: out}
	default:
		return v
	}
}

// canonicalString renders a normalized Value's JSON so lists of composite
// values can be ordered deterministically.
func canonicalString(v Value) string {
	b, err := json.Marshal(toJSON(v))
	if err != nil {
		return ""
	}
	return string(b)
}

// toJSON converts a Value into plain interface{} data suitable for
// encoding/json or json-iterator, with object keys emitted in sorted order
// via a map (Go's json package already sorts map keys on encode).
func toJSON(v Value) interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindScalar:
		return v.Scalar
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, sub := range v.List {
			out[i] = toJSON(sub)
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, sub := range v.Object {
			out[k] = toJSON(sub)
		}
		return out
	default:
		return nil
	}
}

// FromJSON converts decoded JSON data (as produced by encoding/json or
// json-iterator's interface{} decoding) into a Value.
func FromJSON(data interface{}) Value {
	switch t := data.(type) {
	case nil:
		return Null()
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, v := range t {
			out[k] = FromJSON(v)
		}
		return NewObject(out)
	case []interface{}:
		out := make([]Value, len(t))
		for i, v := range t {
			out[i] = FromJSON(v)
		}
		return NewList(out)
	default:
		return NewScalar(t)
	}
}

// UnmarshalCanonicalJSON parses JSON-encoded filter data into a Value.
func UnmarshalCanonicalJSON(data []byte) (Value, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return FromJSON(raw), nil
}

// MarshalCanonicalJSON returns the canonical JSON encoding of Normalize(v),
// used both as the persisted args_json column and as the repo's exact-match
// lookup key.
func MarshalCanonicalJSON(v Value) ([]byte, error) {
	return json.Marshal(toJSON(Normalize(v)))
}

// IsSofterThan reports whether a is a softer filter than b: every object
// accepted by b is also accepted by a. The convention is fixed as follows
// (a query filter b, checked against a stored index's filter a):
//
//   - a = null                         => true
//   - b = null                         => true only if a normalizes to {}
//   - both objects                     => for every key k in a, k is in b
//     and IsSofterThan(a[k], b[k])
//   - both lists                       => set(b) is a subset of set(a)
//   - a a list, b a scalar             => b equals one of a's values
//   - otherwise                        => a == b
func IsSofterThan(a, b Value) bool {
	if a.Kind == KindNull {
		return true
	}
	if b.Kind == KindNull {
		return a.Kind == KindObject && len(a.Object) == 0
	}
	switch a.Kind {
	case KindObject:
		if b.Kind != KindObject {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok {
				return false
			}
			if !IsSofterThan(av, bv) {
				return false
			}
		}
		return true
	case KindList:
		if b.Kind == KindScalar {
			for _, av := range a.List {
				if scalarEqual(av, b) {
					return true
				}
			}
			return false
		}
		if b.Kind != KindList {
			return false
		}
		aSet := make(map[string]struct{}, len(a.List))
		for _, av := range a.List {
			aSet[canonicalString(Normalize(av))] = struct{}{}
		}
		for _, bv := range b.List {
			if _, ok := aSet[canonicalString(Normalize(bv))]; !ok {
				return false
			}
		}
		return true
	default:
		return scalarEqual(a, b)
	}
}

func scalarEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	ab, _ := json.Marshal(a.Scalar)
	bb, _ := json.Marshal(b.Scalar)
	return string(ab) == string(bb)
}
