package seer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/pkg/steps"
)

type fakeGame struct {
	preTicks, postTicks int
	ticks               []steps.AuthoritativeStep[int]
	copies              int
}

func (g *fakeGame) OnPreTicks()  { g.preTicks++ }
func (g *fakeGame) OnPostTicks() { g.postTicks++ }
func (g *fakeGame) OnTick(s steps.AuthoritativeStep[int]) {
	g.ticks = append(g.ticks, s)
}
func (g *fakeGame) OnCopyFromAuthoritative()   { g.copies++ }
func (g *fakeGame) Serialize() ([]byte, error) { return nil, nil }
func (g *fakeGame) Deserialize([]byte) error   { return nil }

func step(v int) steps.AuthoritativeStep[int] {
	return steps.AuthoritativeStep[int]{0: steps.Custom(v)}
}

func TestUpdateReplaysQueueWithoutClearingIt(t *testing.T) {
	s := New[int](0)
	g := &fakeGame{}

	s.Update(g)
	require.Equal(t, 1, g.preTicks)
	require.Equal(t, 1, g.postTicks)

	s.Push(step(1))
	s.Push(step(2))
	require.Equal(t, 2, s.Len())

	s.Update(g)
	require.Len(t, g.ticks, 2)
	require.Equal(t, 2, s.Len())

	s.Update(g)
	require.Len(t, g.ticks, 4)
}

func TestReceivedAuthoritativeTrimsUpToAndIncludingTick(t *testing.T) {
	s := New[int](0)
	s.Push(step(0))
	s.Push(step(1))
	s.Push(step(2))
	require.Equal(t, 3, s.Len())

	s.ReceivedAuthoritative(1)
	require.Equal(t, 1, s.Len())
}
