// Package steps defines the opaque per-tick step model shared by every
// simulation head: Step[T], AuthoritativeStep[T], ParticipantId and the
// Game[T] callback interface the core drives but never inspects (§3, §9).
package steps

// ParticipantId is an 8-bit opaque identifier assigned by the host when a
// player joins; stable for the lifetime of a participant (§3).
type ParticipantId uint8

// LocalIndex identifies one of a client's own player slots (§3).
type LocalIndex uint8

// Kind discriminates the cases of Step[T].
type Kind uint8

const (
	// KindCustom carries an opaque, game-specific step.
	KindCustom Kind = iota
	// KindForced means the host substituted nothing for this tick.
	KindForced
	// KindWaitingForReconnect means the participant's connection is
	// currently down and awaiting reconnect.
	KindWaitingForReconnect
	// KindJoined marks the tick a participant joined.
	KindJoined
	// KindLeft marks that a participant has left the game.
	KindLeft
)

// Step is a tagged value: Forced, WaitingForReconnect, Joined{TickId},
// Left, or Custom(T). The core never interprets a Custom payload — it is
// only ever framed and handed to the Game[T] callback (§3).
type Step[T any] struct {
	Kind       Kind
	JoinedTick uint32 // valid iff Kind == KindJoined
	Custom     T      // valid iff Kind == KindCustom
}

// Forced returns a Step representing a host-forced (no input) tick.
func Forced[T any]() Step[T] { return Step[T]{Kind: KindForced} }

// WaitingForReconnect returns a Step representing a disconnected participant.
func WaitingForReconnect[T any]() Step[T] { return Step[T]{Kind: KindWaitingForReconnect} }

// Joined returns a Step marking the tick a participant joined.
func Joined[T any](tick uint32) Step[T] { return Step[T]{Kind: KindJoined, JoinedTick: tick} }

// Left returns a Step marking a participant's departure.
func Left[T any]() Step[T] { return Step[T]{Kind: KindLeft} }

// Custom wraps an opaque game-specific step.
func Custom[T any](v T) Step[T] { return Step[T]{Kind: KindCustom, Custom: v} }

// AuthoritativeStep maps each currently-known ParticipantId to the Step it
// contributed (or was substituted) for a single tick (§3).
type AuthoritativeStep[T any] map[ParticipantId]Step[T]

// Game is the opaque simulation callback the core drives but never
// interprets (§9: "the game's step type T is carried through without
// inspection"). Implementations own both the authoritative and predicted
// simulation state; the core never stores a Game, only borrows one per
// call (§9, "no cyclic references").
type Game[T any] interface {
	// OnPreTicks runs once before a batch of ticks is applied.
	OnPreTicks()
	// OnTick applies one authoritative or predicted combined step.
	OnTick(AuthoritativeStep[T])
	// OnPostTicks runs once after a batch of ticks is applied.
	OnPostTicks()
	// OnCopyFromAuthoritative snapshots authoritative state into the
	// predicted state, invoked by Rectify whenever Assent has consumed new
	// ticks (§4.5).
	OnCopyFromAuthoritative()
	// Serialize produces a full state snapshot for blob transfer.
	Serialize() ([]byte, error)
	// Deserialize restores a full state snapshot received via blob
	// transfer.
	Deserialize([]byte) error
}
