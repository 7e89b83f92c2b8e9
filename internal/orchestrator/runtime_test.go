package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrive_StopsWhenStepIsDone(t *testing.T) {
	t.Parallel()

	o := New(Deps{}, Options{MaxCycles: 3})
	s := NewSession("d1")
	calls := 0

	err := o.drive(context.Background(), &s, "hello", func(context.Context) bool {
		calls++
		return calls == 2
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDrive_BoundsStepsPerTurn(t *testing.T) {
	t.Parallel()

	o := New(Deps{}, Options{MaxCycles: 1})
	s := NewSession("d2")
	calls := 0

	err := o.drive(context.Background(), &s, "", func(context.Context) bool {
		calls++
		return false
	})

	require.NoError(t, err)
	assert.Equal(t, int(o.maxSteps()), calls)
	assert.Equal(t, 6, calls)
}
