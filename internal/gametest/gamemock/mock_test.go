package gamemock

import (
	"testing"

	"github.com/tickline/lockstep/pkg/steps"
)

func TestOverrideIsInvokedInsteadOfFailing(t *testing.T) {
	g := New[int](t)
	called := false
	g.OnTickF = func(s steps.AuthoritativeStep[int]) { called = true }

	g.OnTick(steps.AuthoritativeStep[int]{})
	if !called {
		t.Fatal("expected OnTickF to be invoked")
	}
}

func TestSerializeDefaultOverrideRoundTrips(t *testing.T) {
	g := New[int](t)
	g.SerializeF = func() ([]byte, error) { return []byte{1, 2, 3}, nil }
	g.DeserializeF = func(b []byte) error { return nil }

	blob, err := g.Serialize()
	if err != nil || string(blob) != "\x01\x02\x03" {
		t.Fatalf("unexpected serialize result: %v %v", blob, err)
	}
	if err := g.Deserialize(blob); err != nil {
		t.Fatalf("unexpected deserialize error: %v", err)
	}
}
