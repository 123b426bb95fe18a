package usecase

import (
	"context"
	"math"
	"time"
)

// ProgressConfig holds the percentages reported to clients at each pipeline
// step and the pacing of simulated progress.
type ProgressConfig struct {
	// Start is reported once the video is confirmed as processing.
	Start int
	// TranscodeScale and TranscodeOffset map transcoder progress (0-100) into
	// the pipeline window: floor(p*TranscodeScale) + TranscodeOffset.
	TranscodeScale  float64
	TranscodeOffset int
	// TranscodeCeiling is where the transcode step ends, real or simulated.
	TranscodeCeiling int
	// Analysis is reported right before classification.
	Analysis int
	// Done is the terminal percentage.
	Done int
	// SimulationStep and SimulationInterval pace the simulated ticks that
	// replace transcoder progress when the tool fails.
	SimulationStep     int
	SimulationInterval time.Duration
}

func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Start:              10,
		TranscodeScale:     0.7,
		TranscodeOffset:    10,
		TranscodeCeiling:   80,
		Analysis:           85,
		Done:               100,
		SimulationStep:     10,
		SimulationInterval: time.Second,
	}
}

// Rescale maps a transcoder percentage into the pipeline's transcode window.
func (c ProgressConfig) Rescale(percent float64) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	// epsilon absorbs float error such as 50*0.7 = 34.999...
	p := int(math.Floor(percent*c.TranscodeScale+1e-9)) + c.TranscodeOffset
	if p > c.TranscodeCeiling {
		p = c.TranscodeCeiling
	}
	return p
}

// Simulator emits synthetic progress in place of real transcoder telemetry.
type Simulator struct {
	Start    int
	Step     int
	Interval time.Duration
}

func (c ProgressConfig) Simulator() Simulator {
	return Simulator{Start: c.Start, Step: c.SimulationStep, Interval: c.SimulationInterval}
}

// Run ticks every Interval from Start in increments of Step, calling onTick
// with each value, and returns once target is reached. Ticks never exceed target.
func (s Simulator) Run(ctx context.Context, target int, onTick func(percent int)) error {
	step := s.Step
	if step <= 0 {
		step = 1
	}
	current := s.Start
	if current >= target {
		return nil
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for current < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		current += step
		if current > target {
			current = target
		}
		onTick(current)
	}
	return nil
}
