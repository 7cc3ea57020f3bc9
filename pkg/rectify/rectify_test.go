package rectify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// fakeGame distinguishes authoritative from predicted ticks by whether it
// has seen the copy signal yet during the current Update call: Rectify.Update
// always runs assent replay, then OnCopyFromAuthoritative, then seer replay.
type fakeGame struct {
	authoritative []int
	predicted     []int
	copied        bool
}

func (g *fakeGame) OnPreTicks()  {}
func (g *fakeGame) OnPostTicks() {}
func (g *fakeGame) OnTick(s steps.AuthoritativeStep[int]) {
	v := int(s[0].Custom)
	if g.copied {
		g.predicted = append(g.predicted, v)
	} else {
		g.authoritative = append(g.authoritative, v)
	}
}
func (g *fakeGame) OnCopyFromAuthoritative() {
	g.copied = true
	g.predicted = nil
}
func (g *fakeGame) Serialize() ([]byte, error) { return nil, nil }
func (g *fakeGame) Deserialize([]byte) error   { return nil }

func step(v int) steps.AuthoritativeStep[int] {
	return steps.AuthoritativeStep[int]{0: steps.Custom(v)}
}

// TestSeededRectifyExpectsItsStartTickOnFirstPush reproduces a client
// joining mid-session (cmd/lockstephost/server.go hands out nonzero
// download ticks whenever the session has already produced steps): Rectify
// seeded at a nonzero, non-contiguous tick must expect exactly that tick on
// its very first authoritative push, not tick 0.
func TestSeededRectifyExpectsItsStartTickOnFirstPush(t *testing.T) {
	r := New[int](77)
	require.Equal(t, ticklog.TickId(77), r.WaitingForAuthoritativeTickId())

	err := r.PushAuthoritativeWithCheck(0, step(1))
	require.Error(t, err)

	require.NoError(t, r.PushAuthoritativeWithCheck(77, step(1)))
	end, ok := r.Assent().EndTickId()
	require.True(t, ok)
	require.Equal(t, uint32(77), uint32(end))
	require.Equal(t, ticklog.TickId(78), r.WaitingForAuthoritativeTickId())
}

func TestPushAuthoritativeWithCheckRejectsOutOfOrderTicks(t *testing.T) {
	r := New[int](0)
	require.NoError(t, r.PushAuthoritativeWithCheck(0, step(1)))
	err := r.PushAuthoritativeWithCheck(10, step(2))
	require.Error(t, err)
}

func TestUpdateCopiesAuthoritativeThenReplaysSeer(t *testing.T) {
	r := New[int](0)
	g := &fakeGame{}

	r.PushPredicted(step(100))
	r.PushPredicted(step(200))

	g.copied = false
	require.NoError(t, r.Update(g))
	require.Empty(t, g.authoritative)
	require.Equal(t, []int{100, 200}, g.predicted)

	require.NoError(t, r.PushAuthoritativeWithCheck(0, step(1)))
	g.copied = false
	require.NoError(t, r.Update(g))
	require.Equal(t, []int{1}, g.authoritative)
	// Seer trims the confirmed tick 0 (prediction 100); only the tick-1
	// prediction is replayed on top of the copied authoritative state.
	require.Equal(t, []int{200}, g.predicted)
}

// TestScenarioS5PredictedStepOvertakenByAuthoritative reproduces spec §8's
// S5: predicted steps are queued for ticks 10, 11 and 12; authoritative
// confirmation then arrives for 10 and 11 only. After Update, Seer must
// hold exactly the tick-12 prediction, replayed on top of the now-current
// authoritative state.
func TestScenarioS5PredictedStepOvertakenByAuthoritative(t *testing.T) {
	r := New[int](0)
	g := &fakeGame{}

	// Walk predicted+confirmed ticks 0 through 9 in lockstep so Seer and
	// Assent's tick counters line up, leaving both ready to assign 10 next.
	for tick := 0; tick < 10; tick++ {
		r.PushPredicted(step(tick))
		require.NoError(t, r.PushAuthoritativeWithCheck(ticklog.TickId(tick), step(tick)))
	}
	g.copied = false
	require.NoError(t, r.Update(g))
	g.authoritative = nil
	g.predicted = nil

	r.PushPredicted(step(910))
	r.PushPredicted(step(911))
	r.PushPredicted(step(912))
	require.Equal(t, 3, r.Seer().Len())

	require.NoError(t, r.PushAuthoritativeWithCheck(10, step(10)))
	require.NoError(t, r.PushAuthoritativeWithCheck(11, step(11)))
	require.Equal(t, 1, r.Seer().Len())

	g.copied = false
	require.NoError(t, r.Update(g))
	require.Equal(t, []int{10, 11}, g.authoritative)
	require.Equal(t, []int{912}, g.predicted)
}
