package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	run func(ctx context.Context, name string, args []string, stdout io.Writer) (commandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, stdout io.Writer) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args, stdout)
}

type fixedProber struct {
	duration float64
	err      error
}

func (p fixedProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

func found(name string) (string, error) { return "/usr/bin/" + name, nil }

func missing(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

func newTestTranscoder(runner commandRunner, prober fixedProber) *Transcoder {
	t := NewTranscoder("ffmpeg", prober, zap.NewNop())
	t.runner = runner
	t.lookPath = found
	return t
}

func TestTranscodeReportsMonotonicProgress(t *testing.T) {
	var gotArgs []string
	runner := &fakeRunner{run: func(_ context.Context, name string, args []string, stdout io.Writer) (commandResult, error) {
		gotArgs = args
		for _, chunk := range []string{
			"frame=1\nout_time_us=2500000\n",
			"out_time_us=1000000\n", // regressions are ignored
			"out_time_ms=5000",
			"000\nprogress=continue\n",
			"out_time_us=7500000\nprogress=end\n",
		} {
			_, _ = stdout.Write([]byte(chunk))
		}
		return commandResult{}, nil
	}}

	var progress []float64
	tr := newTestTranscoder(runner, fixedProber{duration: 10})
	err := tr.Transcode(context.Background(), "in.mov", "out.mp4", func(p float64) {
		progress = append(progress, p)
	})

	require.NoError(t, err)
	assert.Equal(t, []float64{25, 50, 75, 100}, progress)
	assert.Equal(t, "out.mp4", gotArgs[len(gotArgs)-1])
	assert.Contains(t, gotArgs, VideoCodec)
	assert.Contains(t, gotArgs, MovFlags)
}

func TestTranscodeWithoutDurationOnlyReportsCompletion(t *testing.T) {
	runner := &fakeRunner{run: func(_ context.Context, _ string, _ []string, stdout io.Writer) (commandResult, error) {
		_, _ = stdout.Write([]byte("out_time_us=2500000\n"))
		return commandResult{}, nil
	}}

	var progress []float64
	tr := newTestTranscoder(runner, fixedProber{err: errors.New("unreadable")})
	require.NoError(t, tr.Transcode(context.Background(), "in.mov", "out.mp4", func(p float64) {
		progress = append(progress, p)
	}))

	assert.Equal(t, []float64{100}, progress)
}

func TestTranscodeMissingToolIsDistinguishable(t *testing.T) {
	tr := newTestTranscoder(&fakeRunner{run: func(context.Context, string, []string, io.Writer) (commandResult, error) {
		t.Fatal("runner must not be called when ffmpeg is missing")
		return commandResult{}, nil
	}}, fixedProber{})
	tr.lookPath = missing

	err := tr.Transcode(context.Background(), "in.mov", "out.mp4", nil)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestTranscodeFailureRemovesPartialOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "optimized.mp4")
	runner := &fakeRunner{run: func(context.Context, string, []string, io.Writer) (commandResult, error) {
		require.NoError(t, os.WriteFile(out, []byte("partial"), 0o644))
		return commandResult{ExitCode: 1, Stderr: "Invalid data found when processing input"}, errors.New("exit status 1")
	}}

	tr := newTestTranscoder(runner, fixedProber{duration: 3})
	err := tr.Transcode(context.Background(), "in.mov", out, nil)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.ExitCode)
	assert.NotErrorIs(t, err, ErrToolNotFound)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial output should be removed")
}

func TestProberParsesDuration(t *testing.T) {
	p := NewProber("ffprobe")
	p.lookPath = found
	p.runner = &fakeRunner{run: func(_ context.Context, name string, args []string, stdout io.Writer) (commandResult, error) {
		assert.Equal(t, "ffprobe", name)
		assert.Equal(t, "a.mp4", args[len(args)-1])
		_, _ = stdout.Write([]byte("42.000000\n"))
		return commandResult{}, nil
	}}

	d, err := p.Duration(context.Background(), "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, 42.0, d)
}

func TestProberFailuresAreProbeErrors(t *testing.T) {
	cases := map[string]struct {
		lookPath func(string) (string, error)
		runner   *fakeRunner
	}{
		"tool missing": {lookPath: missing, runner: &fakeRunner{}},
		"tool fails": {lookPath: found, runner: &fakeRunner{run: func(context.Context, string, []string, io.Writer) (commandResult, error) {
			return commandResult{ExitCode: 1, Stderr: "moov atom not found"}, errors.New("exit status 1")
		}}},
		"unparseable output": {lookPath: found, runner: &fakeRunner{run: func(_ context.Context, _ string, _ []string, stdout io.Writer) (commandResult, error) {
			_, _ = stdout.Write([]byte("N/A\n"))
			return commandResult{}, nil
		}}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewProber("ffprobe")
			p.lookPath = tc.lookPath
			p.runner = tc.runner

			_, err := p.Duration(context.Background(), "broken.mp4")
			var perr *ProbeError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "broken.mp4", perr.Path)
		})
	}
}
