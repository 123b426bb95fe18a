package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type Prober struct {
	ffprobePath string
	runner      commandRunner
	lookPath    func(string) (string, error)
}

func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      execRunner{},
		lookPath:    exec.LookPath,
	}
}

// Duration returns the container duration in seconds. Every failure is a *ProbeError.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := p.lookPath(p.ffprobePath); err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("%w: %s", ErrToolNotFound, p.ffprobePath)}
	}

	var out bytes.Buffer
	res, err := p.runner.Run(ctx, p.ffprobePath, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}, &out)
	if err != nil {
		return 0, &ProbeError{Path: path, Stderr: res.Stderr, Err: fmt.Errorf("ffprobe: %w", err)}
	}

	durationStr := strings.TrimSpace(out.String())
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("parse duration %q: %w", durationStr, err)}
	}
	if duration < 0 {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("negative duration %v", duration)}
	}
	return duration, nil
}
