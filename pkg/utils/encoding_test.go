package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalJSON(t *testing.T) {
	data := map[string]interface{}{
		"name":  "test",
		"count": 42,
		"tags":  []string{"tag1", "tag2"},
	}

	encoded, err := MarshalJSON(data)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, UnmarshalJSON(encoded, &decoded))

	require.Equal(t, data["name"], decoded["name"])
	require.Equal(t, float64(data["count"].(int)), decoded["count"].(float64))
}

func TestUnmarshalJSON_Empty(t *testing.T) {
	var v interface{}
	err := UnmarshalJSON([]byte{}, &v)
	require.Error(t, err)
}

func TestUnmarshalJSON_Invalid(t *testing.T) {
	var v interface{}
	err := UnmarshalJSON([]byte("invalid json"), &v)
	require.Error(t, err)
}

func BenchmarkMarshalJSON(b *testing.B) {
	data := map[string]interface{}{"name": "test", "count": 42}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MarshalJSON(data)
	}
}

func BenchmarkUnmarshalJSON(b *testing.B) {
	data, _ := MarshalJSON(map[string]interface{}{"name": "test", "count": 42})
	var v map[string]interface{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		UnmarshalJSON(data, &v)
	}
}
