package ffmpeg

import (
	"fmt"

	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
)

// ErrToolNotFound means the configured binary is not installed or not on PATH.
var ErrToolNotFound = port.ErrToolUnavailable

// TranscodeError describes a failed ffmpeg run.
type TranscodeError struct {
	Source   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	if e.ExitCode == 0 {
		return fmt.Sprintf("transcode %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("transcode %s: %v (exit=%d)", e.Source, e.Err, e.ExitCode)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ProbeError means the duration could not be read from the file.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
