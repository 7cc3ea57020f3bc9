package ticklog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushAssignsSequentialTicks(t *testing.T) {
	l := New[string](10)
	require.Equal(t, TickId(10), l.Push("a"))
	require.Equal(t, TickId(11), l.Push("b"))
	require.Equal(t, 2, l.Len())

	front, ok := l.FrontTickId()
	require.True(t, ok)
	require.Equal(t, TickId(10), front)

	back, ok := l.BackTickId()
	require.True(t, ok)
	require.Equal(t, TickId(11), back)
}

func TestPopAdvancesCursorAndFailsWhenEmpty(t *testing.T) {
	l := New[int](0)
	l.Push(100)
	l.Push(200)

	tick, v, err := l.Pop()
	require.NoError(t, err)
	require.Equal(t, TickId(0), tick)
	require.Equal(t, 100, v)

	tick, v, err = l.Pop()
	require.NoError(t, err)
	require.Equal(t, TickId(1), tick)
	require.Equal(t, 200, v)

	_, _, err = l.Pop()
	require.Error(t, err)
}

func TestDropUpToIsIdempotentAndExclusiveOfTick(t *testing.T) {
	l := New[int](0)
	for i := 0; i < 5; i++ {
		l.Push(i)
	}
	l.DropUpTo(3)
	front, _ := l.FrontTickId()
	require.Equal(t, TickId(3), front)
	require.Equal(t, 2, l.Len())

	// Idempotent: dropping the same or earlier bound changes nothing.
	l.DropUpTo(3)
	require.Equal(t, 2, l.Len())
	l.DropUpTo(1)
	require.Equal(t, 2, l.Len())
}

func TestIterFromIndexDoesNotConsume(t *testing.T) {
	l := New[int](0)
	l.Push(1)
	l.Push(2)
	l.Push(3)

	var seen []int
	for _, v := range l.IterFromIndex(1) {
		seen = append(seen, *v)
	}
	require.Equal(t, []int{2, 3}, seen)
	require.Equal(t, 3, l.Len())
}

func TestBackTickIdAfterFullDrain(t *testing.T) {
	l := New[int](5)
	l.Push(1)
	l.Push(2)
	_, _, err := l.Pop()
	require.NoError(t, err)
	_, _, err = l.Pop()
	require.NoError(t, err)

	back, ok := l.BackTickId()
	require.True(t, ok)
	require.Equal(t, TickId(6), back)
}
