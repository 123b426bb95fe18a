package usecase

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/infra/classifier"
	"github.com/vidstream/vidstream-processing-service/internal/infra/eventbus"
	"github.com/vidstream/vidstream-processing-service/internal/infra/ffmpeg"
	"github.com/vidstream/vidstream-processing-service/internal/infra/localfs"
	"github.com/vidstream/vidstream-processing-service/internal/infra/memory"
	"go.uber.org/zap"
)

func TestPipelineWithRealTools(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme"), 0o755))
	source := filepath.Join(root, "acme", "1700000000-clip.mov")
	gen := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=10",
		"-c:v", "mpeg4", source)
	out, err := gen.CombinedOutput()
	require.NoError(t, err, string(out))

	repo := memory.NewVideoRepository()
	bus := eventbus.New(100)
	log := zap.NewNop()
	prober := ffmpeg.NewProber("ffprobe")

	upload := NewRegisterUploadUseCase(repo, &recordingQueue{}, bus, log)
	video, err := upload.Execute(ctx, editor, UploadInput{
		OriginalFilename: "clip.mov",
		Filename:         "1700000000-clip.mov",
		SourcePath:       "acme/1700000000-clip.mov",
		MimeType:         "video/quicktime",
		Size:             1024,
	})
	require.NoError(t, err)

	uc := NewProcessVideoUseCase(
		repo, localfs.NewStorage(root),
		ffmpeg.NewTranscoder("ffmpeg", prober, log), prober,
		classifier.NewRandom(1, 0),
		bus, nil, log,
		ProcessVideoConfig{TempDir: t.TempDir(), Progress: DefaultProgressConfig(), ClassifierAttempts: 1},
	)
	require.NoError(t, uc.Process(ctx, video.ID))

	got, err := repo.FindByID(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusCompleted, got.Status)
	assert.Equal(t, "acme/optimized-1700000000-clip.mp4", got.OutputPath)
	require.NotNil(t, got.Duration)
	assert.InDelta(t, 2.0, *got.Duration, 0.5)
	assert.FileExists(t, filepath.Join(root, "acme", "optimized-1700000000-clip.mp4"))

	var percents []int
	for _, env := range bus.Since("alice", 0) {
		if p, ok := env.Payload.(entity.ProgressEvent); ok {
			percents = append(percents, p.Progress)
		}
	}
	require.NotEmpty(t, percents)
	assert.Equal(t, 0, percents[0], "upload event comes first")
	assertIncreasingToDone(t, percents)
}
