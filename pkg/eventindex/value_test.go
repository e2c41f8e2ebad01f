package eventindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scalar(v interface{}) Value { return NewScalar(v) }

func TestNormalizeNullBecomesEmptyObject(t *testing.T) {
	n := Normalize(Null())
	require.Equal(t, KindObject, n.Kind)
	require.Empty(t, n.Object)
}

func TestNormalizeIsFixedPoint(t *testing.T) {
	f := NewObject(map[string]Value{
		"from": NewList([]Value{scalar("0xb"), scalar("0xa")}),
		"to":   scalar("0xc"),
	})
	once := Normalize(f)
	twice := Normalize(once)
	b1, _ := MarshalCanonicalJSON(once)
	b2, _ := MarshalCanonicalJSON(twice)
	require.Equal(t, string(b1), string(b2))
}

func TestNormalizeSortsListValues(t *testing.T) {
	f := NewList([]Value{scalar("z"), scalar("a"), scalar("m")})
	b, err := MarshalCanonicalJSON(f)
	require.NoError(t, err)
	require.JSONEq(t, `["a","m","z"]`, string(b))
}

func TestIsSofterThanNullFilterIsSofterThanEverything(t *testing.T) {
	require.True(t, IsSofterThan(Null(), NewObject(map[string]Value{"from": scalar("0xa")})))
}

func TestIsSofterThanEverythingIsSofterThanNullOnlyIfEmpty(t *testing.T) {
	require.True(t, IsSofterThan(NewObject(map[string]Value{}), Null()))
	require.False(t, IsSofterThan(NewObject(map[string]Value{"from": scalar("0xa")}), Null()))
}

func TestIsSofterThanReflexive(t *testing.T) {
	f := Normalize(NewObject(map[string]Value{"from": scalar("0xa")}))
	require.True(t, IsSofterThan(f, f))
}

func TestIsSofterThanObjectSubset(t *testing.T) {
	// stored index has no filter ({}), query filter has one key: {} is softer.
	stored := Normalize(Null())
	query := Normalize(NewObject(map[string]Value{"from": scalar("0xbeef")}))
	require.True(t, IsSofterThan(stored, query))
	require.False(t, IsSofterThan(query, stored))
}

func TestIsSofterThanListSubset(t *testing.T) {
	stored := NewObject(map[string]Value{
		"from": NewList([]Value{scalar("0xa"), scalar("0xb"), scalar("0xc")}),
	})
	query := NewObject(map[string]Value{
		"from": NewList([]Value{scalar("0xa")}),
	})
	require.True(t, IsSofterThan(stored, query))
	require.False(t, IsSofterThan(query, stored))
}

func TestIsSofterThanMissingKeyFails(t *testing.T) {
	stored := NewObject(map[string]Value{"from": scalar("0xa"), "to": scalar("0xb")})
	query := NewObject(map[string]Value{"from": scalar("0xa")})
	require.False(t, IsSofterThan(stored, query))
}

func TestIsSofterThanScalarEquality(t *testing.T) {
	a := NewObject(map[string]Value{"from": scalar("0xa")})
	b := NewObject(map[string]Value{"from": scalar("0xa")})
	c := NewObject(map[string]Value{"from": scalar("0xb")})
	require.True(t, IsSofterThan(a, b))
	require.False(t, IsSofterThan(a, c))
}
