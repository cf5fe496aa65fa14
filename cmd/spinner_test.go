package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChecksStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	errDown := errors.New("backend down")
	var ran []string
	steps := []checkStep{
		{name: "classify", run: func(context.Context) error { ran = append(ran, "classify"); return errDown }},
		{name: "narrate", run: func(context.Context) error { ran = append(ran, "narrate"); return nil }},
	}

	results, err := runChecks(context.Background(), nil, "offline", true, steps)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, []string{"classify"}, ran)
	require.Len(t, results, 1)
	assert.Equal(t, "classify", results[0].name)
}

func TestCheckModelRendersEachStepLatency(t *testing.T) {
	t.Parallel()

	steps := []checkStep{
		{name: "classify", run: func(context.Context) error { return nil }},
		{name: "narrate", run: func(context.Context) error { return nil }},
	}
	model := newCheckModel(context.Background(), "offline", steps)
	assert.Contains(t, model.View(), "classify via offline backend...")

	next, cmd := model.Update(stepDoneMsg{name: "classify", elapsed: 1234567})
	model = next.(checkModel)
	require.NotNil(t, cmd)
	assert.Contains(t, model.View(), "classify 1ms")
	assert.Contains(t, model.View(), "narrate via offline backend...")

	next, _ = model.Update(stepDoneMsg{name: "narrate", elapsed: 2500000, err: errors.New("timeout")})
	model = next.(checkModel)
	assert.True(t, model.failed())
	assert.Contains(t, model.View(), "narrate failed after 3ms")
	assert.NotContains(t, model.View(), "via offline backend")
}
