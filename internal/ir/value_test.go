package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check via assignment
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object{
		"tags":  List{String("a"), Object{"n": Int(1)}},
		"title": String("Dune"),
	}
	cp := Clone(orig).(Object)
	require.Equal(t, orig, cp)

	cp["title"] = String("Emma")
	cp["tags"].(List)[0] = String("x")
	cp["tags"].(List)[1].(Object)["n"] = Int(2)

	assert.Equal(t, String("Dune"), orig["title"])
	assert.Equal(t, List{String("a"), Object{"n": Int(1)}}, orig["tags"])
	assert.Equal(t, Int(7), Clone(Int(7)))
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := Object{"a": Int(1), "A": Int(2), "aa": Int(3), "aA": Int(4), "Aa": Int(5), "AA": Int(6)}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogate pair D83D DE00, which sorts before U+FB01 (FB01)
	// in UTF-16 but after it in UTF-8.
	obj := Object{"\ufb01": Int(1), "\U0001F600": Int(2)}

	assert.Equal(t, []string{"\U0001F600", "\ufb01"}, obj.SortedKeys())
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		value    Value
		expected string
	}{
		{Null{}, "null"},
		{String("x"), ScalarString},
		{Int(1), ScalarInt},
		{Bool(true), ScalarBool},
		{List{}, ScalarList},
		{Object{}, ScalarMap},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeName(tt.value))
		})
	}
}

func TestFromAny(t *testing.T) {
	got, err := FromAny(map[string]any{
		"name":    "main",
		"count":   3,
		"enabled": true,
		"tags":    []any{"a", "b"},
		"nested":  map[string]any{"depth": int64(2)},
		"missing": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, Object{
		"name":    String("main"),
		"count":   Int(3),
		"enabled": Bool(true),
		"tags":    List{String("a"), String("b")},
		"nested":  Object{"depth": Int(2)},
		"missing": Null{},
	}, got)
}

func TestFromAnyRejectsFloats(t *testing.T) {
	_, err := FromAny(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = FromAny([]any{1, 2.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1]")
}

func TestFromAnyAcceptsIntegralFloats(t *testing.T) {
	got, err := FromAny(float64(7))
	require.NoError(t, err)
	assert.Equal(t, Int(7), got)
}

func TestFromAnyUnsupportedType(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := NewObject(
		O("name", String("main")),
		O("count", Int(5)),
		O("tags", List{String("x")}),
	)

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"count":5,"name":"main","tags":["x"]}`, string(data))

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestObjectUnmarshalRejectsFloats(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"ratio": 0.5}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratio")
}

func TestMarshalValueNull(t *testing.T) {
	data, err := MarshalValue(Null{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
