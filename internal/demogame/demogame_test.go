package demogame

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/pkg/rectify"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

// TestScenarioS3AuthoritativeStepsAlterBothHeads reproduces spec §8's S3
// literally: participant 255 gets [Jump, MoveLeft(-10), MoveRight(32000)],
// participant 1 gets [MoveLeft(42), Forced, Jump], base tick 0. After
// Rectify.Update, the authoritative head must read x=31968, y=3.
func TestScenarioS3AuthoritativeStepsAlterBothHeads(t *testing.T) {
	r := rectify.New[Command](0)
	g := New()

	p255 := []steps.Step[Command]{
		steps.Custom(Command{Kind: Jump}),
		steps.Custom(Command{Kind: MoveLeft, Amount: -10}),
		steps.Custom(Command{Kind: MoveRight, Amount: 32000}),
	}
	p1 := []steps.Step[Command]{
		steps.Custom(Command{Kind: MoveLeft, Amount: 42}),
		steps.Forced[Command](),
		steps.Custom(Command{Kind: Jump}),
	}

	for i := 0; i < 3; i++ {
		combined := steps.AuthoritativeStep[Command]{
			255: p255[i],
			1:   p1[i],
		}
		require.NoError(t, r.PushAuthoritativeWithCheck(ticklog.TickId(i), combined))
	}

	require.NoError(t, r.Update(g))
	require.Equal(t, int64(31968), g.Authoritative.X)
	require.Equal(t, int64(3), g.Authoritative.Y)
}

func TestCodecRoundTripsEveryCommandKind(t *testing.T) {
	c := Codec{}
	for _, cmd := range []Command{
		{Kind: Jump},
		{Kind: MoveLeft, Amount: -10},
		{Kind: MoveRight, Amount: 32000},
	} {
		w := wire.NewWriter()
		c.EncodeCustom(w, cmd)
		got, err := c.DecodeCustom(wire.NewReader(w.Bytes()))
		require.NoError(t, err)
		require.Equal(t, cmd, got)
	}
}

func TestSerializeDeserializeRoundTrips(t *testing.T) {
	g := New()
	g.Authoritative = State{X: -5, Y: 12}

	blob, err := g.Serialize()
	require.NoError(t, err)

	g2 := New()
	require.NoError(t, g2.Deserialize(blob))
	require.Equal(t, g.Authoritative, g2.Authoritative)
}
