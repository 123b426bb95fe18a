package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescaleMapsIntoTranscodeWindow(t *testing.T) {
	cfg := DefaultProgressConfig()

	cases := map[float64]int{
		-5:    10,
		0:     10,
		1:     10,
		10:    17,
		50:    45,
		99.9:  79,
		100:   80,
		250.0: 80,
	}
	for in, want := range cases {
		assert.Equal(t, want, cfg.Rescale(in), "rescale(%v)", in)
	}
}

func TestSimulatorTicksToTarget(t *testing.T) {
	sim := Simulator{Start: 10, Step: 10, Interval: time.Millisecond}

	var ticks []int
	require.NoError(t, sim.Run(context.Background(), 80, func(p int) { ticks = append(ticks, p) }))

	assert.Equal(t, []int{20, 30, 40, 50, 60, 70, 80}, ticks)
}

func TestSimulatorClampsToTarget(t *testing.T) {
	sim := Simulator{Start: 10, Step: 30, Interval: time.Millisecond}

	var ticks []int
	require.NoError(t, sim.Run(context.Background(), 80, func(p int) { ticks = append(ticks, p) }))

	assert.Equal(t, []int{40, 70, 80}, ticks)
}

func TestSimulatorAlreadyAtTarget(t *testing.T) {
	sim := Simulator{Start: 80, Step: 10, Interval: time.Hour}

	called := false
	require.NoError(t, sim.Run(context.Background(), 80, func(int) { called = true }))
	assert.False(t, called)
}

func TestSimulatorStopsOnCancel(t *testing.T) {
	sim := Simulator{Start: 10, Step: 10, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.Run(ctx, 80, func(int) {})
	assert.ErrorIs(t, err, context.Canceled)
}
