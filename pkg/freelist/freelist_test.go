package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocStartsAtOneAndNeverYieldsZero(t *testing.T) {
	f := New()
	id, err := f.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint8(1), id)
}

func TestFreeThenAllocRecycles(t *testing.T) {
	f := New()
	a, _ := f.Alloc()
	b, _ := f.Alloc()
	require.NoError(t, f.Free(a))

	c, err := f.Alloc()
	require.NoError(t, err)
	require.Equal(t, a, c)
	require.NotEqual(t, b, c)
}

func TestDoubleFreeIsAnError(t *testing.T) {
	f := New()
	a, _ := f.Alloc()
	require.NoError(t, f.Free(a))
	require.Error(t, f.Free(a))
}

func TestFreeingReservedZeroIsAnError(t *testing.T) {
	f := New()
	require.Error(t, f.Free(0))
}

func TestExhaustionIsAnError(t *testing.T) {
	f := New()
	for i := 0; i < 255; i++ {
		_, err := f.Alloc()
		require.NoError(t, err)
	}
	_, err := f.Alloc()
	require.Error(t, err)
}
