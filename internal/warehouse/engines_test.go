package warehouse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnginesCachePerOwner(t *testing.T) {
	engines := NewEngines(newMemoryStore(), Options{})

	a := engines.For(testOwner)
	b := engines.For(testOwner)
	other := engines.For("22222222-2222-2222-2222-222222222222")

	require.Same(t, a, b)
	require.NotSame(t, a, other)
}
