package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// Streaming profile applied to every upload.
const (
	VideoCodec = "libx264"
	AudioCodec = "aac"
	CRF        = 23
	Preset     = "medium"
	Container  = "mp4"
	MovFlags   = "+faststart"
)

type Transcoder struct {
	ffmpegPath string
	prober     port.Prober
	runner     commandRunner
	lookPath   func(string) (string, error)
	remove     func(string) error
	logger     *zap.Logger
}

func NewTranscoder(ffmpegPath string, prober port.Prober, logger *zap.Logger) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		runner:     execRunner{},
		lookPath:   exec.LookPath,
		remove:     os.Remove,
		logger:     logger,
	}
}

// Transcode writes a web-optimized MP4 of sourcePath to outputPath. Progress is
// reported only when the source duration is known. A failed run leaves no
// partial file behind.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath, outputPath string, onProgress port.ProgressFunc) error {
	if _, err := t.lookPath(t.ffmpegPath); err != nil {
		return &TranscodeError{Source: sourcePath, Err: fmt.Errorf("%w: %s", ErrToolNotFound, t.ffmpegPath)}
	}

	var total float64
	if t.prober != nil {
		d, err := t.prober.Duration(ctx, sourcePath)
		if err != nil {
			t.logger.Warn("source duration unknown, transcode progress disabled",
				zap.String("source", sourcePath), zap.Error(err))
		} else {
			total = d
		}
	}

	progress := newProgressWriter(total, onProgress)
	res, err := t.runner.Run(ctx, t.ffmpegPath, buildTranscodeArgs(sourcePath, outputPath), progress)
	if err != nil {
		if rmErr := t.remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			t.logger.Warn("could not remove partial output", zap.String("output", outputPath), zap.Error(rmErr))
		}
		return &TranscodeError{
			Source:   sourcePath,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      fmt.Errorf("ffmpeg: %w", err),
		}
	}

	progress.finish()
	return nil
}

func buildTranscodeArgs(sourcePath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", sourcePath,
		"-c:v", VideoCodec,
		"-preset", Preset,
		"-crf", strconv.Itoa(CRF),
		"-c:a", AudioCodec,
		"-movflags", MovFlags,
		"-f", Container,
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}
}

// progressWriter parses the key=value stream of `ffmpeg -progress` and turns
// out_time into a monotonic percentage of the total duration.
type progressWriter struct {
	totalSeconds float64
	onProgress   port.ProgressFunc
	buf          []byte
	last         float64
}

func newProgressWriter(totalSeconds float64, onProgress port.ProgressFunc) *progressWriter {
	return &progressWriter{totalSeconds: totalSeconds, onProgress: onProgress, last: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.handleLine(bytes.TrimSpace(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line []byte) {
	key, value, ok := bytes.Cut(line, []byte("="))
	if !ok {
		return
	}
	switch string(key) {
	// both keys carry microseconds
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || us < 0 || w.totalSeconds <= 0 {
			return
		}
		w.report(float64(us) / 1e6 / w.totalSeconds * 100)
	case "progress":
		if string(value) == "end" {
			w.finish()
		}
	}
}

func (w *progressWriter) finish() {
	w.report(100)
}

func (w *progressWriter) report(percent float64) {
	if percent > 100 {
		percent = 100
	}
	if percent <= w.last || w.onProgress == nil {
		return
	}
	w.last = percent
	w.onProgress(percent)
}
