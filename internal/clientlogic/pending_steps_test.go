package clientlogic

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

func TestPendingStepsDiscardUpToDropsConfirmedTicks(t *testing.T) {
	p := newPendingSteps[int]()
	require.True(t, p.isEmpty())

	p.push(ticklog.TickId(1), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(1)})
	p.push(ticklog.TickId(2), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(2)})
	p.push(ticklog.TickId(3), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(3)})
	require.Equal(t, 3, p.len())

	p.discardUpTo(ticklog.TickId(2))
	require.Equal(t, 1, p.len())
	front, ok := p.frontTickID()
	require.True(t, ok)
	require.Equal(t, ticklog.TickId(3), front)
}

func TestPendingStepsDiscardUpToBeforeFrontIsNoop(t *testing.T) {
	p := newPendingSteps[int]()
	p.push(ticklog.TickId(5), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(1)})
	p.discardUpTo(ticklog.TickId(1))
	require.Equal(t, 1, p.len())
}

func TestPendingStepsDropsOldestBeyondWindow(t *testing.T) {
	p := newPendingSteps[int]()
	for i := 0; i < pendingStepWindow+5; i++ {
		p.push(ticklog.TickId(i), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(i)})
	}
	require.Equal(t, pendingStepWindow, p.len())
	front, ok := p.frontTickID()
	require.True(t, ok)
	require.Equal(t, ticklog.TickId(5), front)
}

func TestPendingStepsFrontTickIDEmpty(t *testing.T) {
	p := newPendingSteps[int]()
	_, ok := p.frontTickID()
	require.False(t, ok)
}
