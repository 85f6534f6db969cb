package orchestration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeMap_StableAcrossKeyOrder(t *testing.T) {
	a, err := NormalizeMap(map[string]any{"goal": "cut", "days": float64(7)})
	require.NoError(t, err)
	b, err := NormalizeMap(map[string]any{"days": float64(7), "goal": "cut"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalizeMap_DifferentInputsDiffer(t *testing.T) {
	a, err := NormalizeMap(map[string]any{"goal": "cut"})
	require.NoError(t, err)
	b, err := NormalizeMap(map[string]any{"goal": "bulk"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNormalizeMap_EmptyMapIsDeterministic(t *testing.T) {
	a, err := NormalizeMap(map[string]any{})
	require.NoError(t, err)
	b, err := NormalizeMap(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
}

func TestNormalizeMap_UnmarshalableValueErrors(t *testing.T) {
	_, err := NormalizeMap(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
}
