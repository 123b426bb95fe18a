package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"github.com/vidstream/vidstream-processing-service/internal/infra/memory"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

type emitted struct {
	recipient string
	event     string
	payload   any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (n *recordingNotifier) Emit(_ context.Context, recipientID, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{recipient: recipientID, event: event, payload: payload})
	return n.err
}

func (n *recordingNotifier) named(event string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) progress() []entity.ProgressEvent {
	var out []entity.ProgressEvent
	for _, e := range n.named(entity.EventVideoProgress) {
		out = append(out, e.payload.(entity.ProgressEvent))
	}
	return out
}

func (n *recordingNotifier) percents() []int {
	var out []int
	for _, p := range n.progress() {
		out = append(out, p.Progress)
	}
	return out
}

type published struct {
	localPath   string
	location    string
	contentType string
}

type fakeStorage struct {
	mu        sync.Mutex
	fetchErr  error
	published []published
	removed   []string
	removeErr error
}

func (s *fakeStorage) Fetch(_ context.Context, location, _ string) (string, error) {
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return location, nil
}

func (s *fakeStorage) Publish(_ context.Context, localPath, location, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, published{localPath, location, contentType})
	return nil
}

func (s *fakeStorage) Remove(_ context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, location)
	return s.removeErr
}

type fakeTranscoder struct {
	transcode func(ctx context.Context, source, output string, onProgress port.ProgressFunc) error
	calls     int
}

func (f *fakeTranscoder) Transcode(ctx context.Context, source, output string, onProgress port.ProgressFunc) error {
	f.calls++
	if f.transcode == nil {
		return errors.Join(port.ErrToolUnavailable, errors.New("ffmpeg not installed"))
	}
	return f.transcode(ctx, source, output, onProgress)
}

// writingTranscoder reports the given progress and leaves an output file behind.
func writingTranscoder(progress ...float64) *fakeTranscoder {
	return &fakeTranscoder{transcode: func(_ context.Context, _, output string, onProgress port.ProgressFunc) error {
		for _, p := range progress {
			onProgress(p)
		}
		return os.WriteFile(output, []byte("mp4"), 0o644)
	}}
}

type fakeProber struct {
	duration float64
	err      error
	probed   []string
}

func (p *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	p.probed = append(p.probed, path)
	return p.duration, p.err
}

type fakeClassifier struct {
	results []classifyResult
	calls   int
	hook    func()
}

type classifyResult struct {
	verdict entity.Verdict
	err     error
}

func classifierReturning(results ...classifyResult) *fakeClassifier {
	return &fakeClassifier{results: results}
}

func (c *fakeClassifier) Classify(context.Context, *entity.Video, string) (entity.Verdict, error) {
	if c.hook != nil {
		c.hook()
	}
	r := c.results[min(c.calls, len(c.results)-1)]
	c.calls++
	return r.verdict, r.err
}

type alert struct {
	videoID string
	subject string
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []alert
}

func (a *fakeAlerter) Alert(_ context.Context, videoID, subject, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert{videoID, subject})
	return nil
}

// flakyRepo fails FindByID from the failFindFrom-th call on (1-based) and
// every Save once saveErr is set.
type flakyRepo struct {
	*memory.VideoRepository
	mu           sync.Mutex
	findCalls    int
	failFindFrom int
	saveErr      error
}

func newFlakyRepo() *flakyRepo {
	return &flakyRepo{VideoRepository: memory.NewVideoRepository()}
}

func (r *flakyRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	r.mu.Lock()
	r.findCalls++
	fail := r.failFindFrom > 0 && r.findCalls >= r.failFindFrom
	r.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return r.VideoRepository.FindByID(ctx, id)
}

func (r *flakyRepo) Save(ctx context.Context, v *entity.Video) error {
	r.mu.Lock()
	err := r.saveErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.VideoRepository.Save(ctx, v)
}

type recordingQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, id uuid.UUID, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

type pipeline struct {
	repo       *flakyRepo
	storage    *fakeStorage
	transcoder *fakeTranscoder
	prober     *fakeProber
	classifier *fakeClassifier
	notifier   *recordingNotifier
	alerter    *fakeAlerter
	tempDir    string
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	return &pipeline{
		repo:       newFlakyRepo(),
		storage:    &fakeStorage{},
		transcoder: &fakeTranscoder{},
		prober:     &fakeProber{duration: 42},
		classifier: classifierReturning(classifyResult{verdict: entity.VerdictSafe}),
		notifier:   &recordingNotifier{},
		alerter:    &fakeAlerter{},
		tempDir:    t.TempDir(),
	}
}

func (p *pipeline) useCase() *ProcessVideoUseCase {
	progress := DefaultProgressConfig()
	progress.SimulationInterval = time.Millisecond
	return NewProcessVideoUseCase(
		p.repo, p.storage, p.transcoder, p.prober, p.classifier, p.notifier, p.alerter,
		zap.NewNop(),
		ProcessVideoConfig{
			TempDir:             p.tempDir,
			Progress:            progress,
			ClassifierAttempts:  2,
			ErrorReloadAttempts: 3,
			ErrorReloadBackoff:  time.Millisecond,
		},
	)
}

func (p *pipeline) seed(t *testing.T, mutate ...func(*entity.Video)) *entity.Video {
	t.Helper()
	v := entity.NewVideo("acme", "alice", "Holiday", "a.mp4", "a.mp4", "a.mp4", "video/mp4", 2048)
	for _, m := range mutate {
		m(v)
	}
	if err := p.repo.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	return v
}
