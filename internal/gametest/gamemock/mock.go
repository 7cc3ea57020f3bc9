// Package gamemock is a hand-written Can*F-function-style mock of
// steps.Game[T], in the shape of luxfi-consensus's blockmock.ChainVM: every
// method has a CantX bool (fail the test if unexpectedly called) and an XF
// override (invoked instead of the default no-op when set).
package gamemock

import (
	"testing"

	"github.com/tickline/lockstep/pkg/steps"
)

// Game is a mock implementation of steps.Game[T].
type Game[T any] struct {
	T *testing.T

	CantOnPreTicks              bool
	CantOnTick                  bool
	CantOnPostTicks             bool
	CantOnCopyFromAuthoritative bool
	CantSerialize                bool
	CantDeserialize              bool

	OnPreTicksF              func()
	OnTickF                  func(steps.AuthoritativeStep[T])
	OnPostTicksF             func()
	OnCopyFromAuthoritativeF func()
	SerializeF               func() ([]byte, error)
	DeserializeF             func([]byte) error
}

var _ steps.Game[int] = (*Game[int])(nil)

// New creates a Game mock with every Cant flag set, so unexpected calls
// fail the test unless the corresponding XF override is installed.
func New[T any](t *testing.T) *Game[T] {
	return &Game[T]{
		T:                           t,
		CantOnPreTicks:              true,
		CantOnTick:                  true,
		CantOnPostTicks:             true,
		CantOnCopyFromAuthoritative: true,
		CantSerialize:               true,
		CantDeserialize:             true,
	}
}

func (g *Game[T]) OnPreTicks() {
	if g.OnPreTicksF != nil {
		g.OnPreTicksF()
		return
	}
	if g.CantOnPreTicks && g.T != nil {
		g.T.Fatal("unexpected OnPreTicks")
	}
}

func (g *Game[T]) OnTick(s steps.AuthoritativeStep[T]) {
	if g.OnTickF != nil {
		g.OnTickF(s)
		return
	}
	if g.CantOnTick && g.T != nil {
		g.T.Fatal("unexpected OnTick")
	}
}

func (g *Game[T]) OnPostTicks() {
	if g.OnPostTicksF != nil {
		g.OnPostTicksF()
		return
	}
	if g.CantOnPostTicks && g.T != nil {
		g.T.Fatal("unexpected OnPostTicks")
	}
}

func (g *Game[T]) OnCopyFromAuthoritative() {
	if g.OnCopyFromAuthoritativeF != nil {
		g.OnCopyFromAuthoritativeF()
		return
	}
	if g.CantOnCopyFromAuthoritative && g.T != nil {
		g.T.Fatal("unexpected OnCopyFromAuthoritative")
	}
}

func (g *Game[T]) Serialize() ([]byte, error) {
	if g.SerializeF != nil {
		return g.SerializeF()
	}
	if g.CantSerialize && g.T != nil {
		g.T.Fatal("unexpected Serialize")
	}
	return nil, nil
}

func (g *Game[T]) Deserialize(b []byte) error {
	if g.DeserializeF != nil {
		return g.DeserializeF(b)
	}
	if g.CantDeserialize && g.T != nil {
		g.T.Fatal("unexpected Deserialize")
	}
	return nil
}
