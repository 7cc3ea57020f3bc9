package bitset64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndIsSet(t *testing.T) {
	var m uint64
	m = Set(m, 3)
	require.True(t, IsSet(m, 3))
	require.False(t, IsSet(m, 4))
	require.Equal(t, 1, CountSetBits(m))
}

func TestAllSet(t *testing.T) {
	require.True(t, AllSet(0, 0))
	require.False(t, AllSet(0b0110, 3))
	require.True(t, AllSet(0b0111, 3))
	require.True(t, AllSet(^uint64(0), 64))
}

func TestFirstUnsetBit(t *testing.T) {
	require.Equal(t, 0, FirstUnsetBit(0, 4))
	require.Equal(t, 2, FirstUnsetBit(0b0011, 4))
	require.Equal(t, -1, FirstUnsetBit(0b1111, 4))
}

func TestAtomFromIndex(t *testing.T) {
	received := map[uint32]bool{5: true, 7: true, 68: true}
	mask := AtomFromIndex(5, func(i uint32) bool { return received[i] })
	require.True(t, IsSet(mask, 0))
	require.True(t, IsSet(mask, 2))
	require.False(t, IsSet(mask, 1))
	require.True(t, IsSet(mask, 63))
}
