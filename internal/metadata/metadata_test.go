package metadata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		kind Kind
		text string
	}{
		{"string", "x", KindString, "x"},
		{"empty string", "", KindString, ""},
		{"int", 42, KindInt, "42"},
		{"uint8", uint8(7), KindInt, "7"},
		{"float", 1.5, KindFloat, "1.5"},
		{"bool", true, KindBool, "true"},
		{"date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), KindString, "2024-03-01"},
		{"timestamp", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), KindString, "2024-03-01T10:30:00Z"},
		{"list", []any{"a", 1}, KindJSON, `["a",1]`},
		{"map", map[string]any{"k": "v"}, KindJSON, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Normalize(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.String())
			assert.False(t, v.IsZero())
		})
	}

	_, ok := Normalize(nil)
	assert.False(t, ok)
}

func TestMetadataSetAndFromMap(t *testing.T) {
	m := FromMap(map[string]any{"title": "T", "id": nil, "rank": 2})
	assert.False(t, m.Has("id"))
	assert.Equal(t, "T", m.GetString("title"))
	assert.Equal(t, []string{"rank", "title"}, m.Keys())

	m.Set("title", nil)
	assert.False(t, m.Has("title"))
	assert.Equal(t, "", m.GetString("missing"))

	c := m.Clone()
	c.Set("rank", 3)
	assert.Equal(t, "2", m.GetString("rank"))
}

func TestMetadataJSON(t *testing.T) {
	m := Metadata{
		"s": String("text"),
		"i": Int(3),
		"f": Float(0.25),
		"b": Bool(false),
		"j": JSON(`{"a":1}`),
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"text","i":3,"f":0.25,"b":false,"j":"{\"a\":1}"}`, string(data))

	var back Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"s":"text","i":3,"f":0.25,"b":false,"n":null,"o":{"x":[1]}}`), &back))
	assert.Equal(t, KindString, back["s"].Kind())
	assert.Equal(t, KindInt, back["i"].Kind())
	assert.Equal(t, KindFloat, back["f"].Kind())
	assert.Equal(t, KindBool, back["b"].Kind())
	assert.Equal(t, KindJSON, back["o"].Kind())
	assert.False(t, back.Has("n"))

	plain := back.ToMap()
	assert.Equal(t, int64(3), plain["i"])
	assert.Equal(t, false, plain["b"])
}
