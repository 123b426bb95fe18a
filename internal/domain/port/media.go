package port

import (
	"context"
	"errors"

	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// ProgressFunc receives transcode progress in percent, 0 to 100.
type ProgressFunc func(percent float64)

type Transcoder interface {
	Transcode(ctx context.Context, sourcePath, outputPath string, onProgress ProgressFunc) error
}

type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Classifier returns exactly one verdict for a video or an error.
type Classifier interface {
	Classify(ctx context.Context, video *entity.Video, localPath string) (entity.Verdict, error)
}

// ErrToolUnavailable marks a media tool that is not installed. Callers treat it
// like any other tool failure; it only changes how the fallback is reported.
var ErrToolUnavailable = errors.New("media tool unavailable")
