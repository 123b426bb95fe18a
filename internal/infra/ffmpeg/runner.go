package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

const stderrTailBytes = 4096

// commandResult is what survives of a finished tool invocation.
type commandResult struct {
	ExitCode int
	Stderr   string
}

// commandRunner abstracts process execution so tests can script tool behaviour.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdout io.Writer) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, stdout io.Writer) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdout == nil {
		stdout = io.Discard
	}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := commandResult{Stderr: tail(stderr.Bytes(), stderrTailBytes)}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
