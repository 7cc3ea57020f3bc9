// Package demogame is a minimal steps.Game[Command] implementation used by
// cmd/lockstephost and cmd/lockstepclient: a shared (x, y) world moved by
// per-participant Jump/MoveLeft/MoveRight commands, the same command set
// spec §8's worked scenario S3 uses to verify Rectify's authoritative
// replay end to end.
package demogame

import (
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/wire"
)

// CommandKind discriminates Command's cases.
type CommandKind uint8

const (
	Jump CommandKind = iota
	MoveLeft
	MoveRight
)

// Command is one participant's custom step payload (§8 S3: "MoveRight(n)
// = +n x, MoveLeft(n) = -n x, Jump = +1 y").
type Command struct {
	Kind   CommandKind
	Amount int32
}

// State is the shared world state every connected game instance keeps in
// sync via authoritative replay.
type State struct {
	X int64
	Y int64
}

// Game applies Command steps to a shared State, implementing steps.Game[Command].
//
// Rectify.Update always calls OnTick for the authoritative replay first,
// then OnCopyFromAuthoritative, then OnTick again for the predicted replay
// — Game distinguishes the two solely by that ordering, the same way
// pkg/rectify's test fakeGame tracks a "copied" flag.
type Game struct {
	Authoritative State
	Predicted     State
	copied        bool
}

var _ steps.Game[Command] = (*Game)(nil)

// New creates a Game with both heads at the origin.
func New() *Game {
	return &Game{}
}

func (g *Game) OnPreTicks() {}

// OnPostTicks closes out whichever phase just ran. It only resets copied
// back to false once the predicted-head (seer) phase finishes, so the next
// Update cycle's assent phase starts pointed at the authoritative head
// again; the assent phase's own OnPostTicks call is a no-op here since
// copied is already false at that point.
func (g *Game) OnPostTicks() {
	if g.copied {
		g.copied = false
	}
}

// OnTick applies every participant's step in the combined tick to whichever
// head is currently active: Forced counts as a +1 y "default tick" per S3
// ("two Jumps and one Forced" both contribute +1 y); WaitingForReconnect and
// Joined/Left contribute nothing to position.
func (g *Game) OnTick(combined steps.AuthoritativeStep[Command]) {
	head := &g.Authoritative
	if g.copied {
		head = &g.Predicted
	}
	for _, step := range combined {
		switch step.Kind {
		case steps.KindForced:
			head.Y++
		case steps.KindCustom:
			applyCommand(head, step.Custom)
		}
	}
}

func applyCommand(s *State, cmd Command) {
	switch cmd.Kind {
	case Jump:
		s.Y++
	case MoveLeft:
		s.X -= int64(cmd.Amount)
	case MoveRight:
		s.X += int64(cmd.Amount)
	}
}

// OnCopyFromAuthoritative snapshots the authoritative head into the
// predicted head, invoked by Rectify whenever Assent has consumed new
// ticks (§4.5), and flips OnTick over to updating the predicted head for
// the Seer replay that follows.
func (g *Game) OnCopyFromAuthoritative() {
	g.Predicted = g.Authoritative
	g.copied = true
}

// Serialize/Deserialize are the blob-transfer snapshot format: 16 bytes,
// big-endian X then Y.
func (g *Game) Serialize() ([]byte, error) {
	w := wire.NewWriter()
	w.U64(uint64(g.Authoritative.X))
	w.U64(uint64(g.Authoritative.Y))
	return w.Bytes(), nil
}

func (g *Game) Deserialize(b []byte) error {
	r := wire.NewReader(b)
	x, err := r.U64()
	if err != nil {
		return err
	}
	y, err := r.U64()
	if err != nil {
		return err
	}
	g.Authoritative = State{X: int64(x), Y: int64(y)}
	g.Predicted = g.Authoritative
	return nil
}

// Codec implements wire.StepCodec[Command]: tag byte + big-endian amount.
type Codec struct{}

var _ wire.StepCodec[Command] = Codec{}

func (Codec) EncodeCustom(w *wire.Writer, v Command) {
	w.U8(uint8(v.Kind))
	w.U32(uint32(v.Amount))
}

func (Codec) DecodeCustom(r *wire.Reader) (Command, error) {
	kind, err := r.U8()
	if err != nil {
		return Command{}, err
	}
	amount, err := r.U32()
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: CommandKind(kind), Amount: int32(amount)}, nil
}
