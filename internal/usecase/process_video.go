package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"github.com/vidstream/vidstream-processing-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	MessageStarting   = "Starting optimization..."
	MessageOptimizing = "Optimizing for streaming..."
	MessageSimulating = "Simulating processing (transcoder unavailable)..."
	MessageAnalyzing  = "Running sensitivity analysis..."
	MessageSafe       = "Processing complete. Video is safe."
	MessageFlagged    = "Processing complete. Video flagged for content."
	MessageFailed     = "An error occurred during processing."

	optimizedPrefix      = "optimized-"
	optimizedContentType = "video/mp4"
	errorPathTimeout     = 30 * time.Second
)

type ProcessVideoUseCase struct {
	repo       port.VideoRepository
	storage    port.MediaStorage
	transcoder port.Transcoder
	prober     port.Prober
	classifier port.Classifier
	notifier   port.Notifier
	alerter    port.Alerter
	logger     *zap.Logger
	cfg        ProcessVideoConfig
	stat       func(string) (os.FileInfo, error)
}

type ProcessVideoConfig struct {
	TempDir  string
	Progress ProgressConfig
	// ClassifierAttempts bounds calls to the classifier before the run fails.
	ClassifierAttempts int
	// ErrorReloadAttempts bounds reloads of the video when recording a failure.
	ErrorReloadAttempts int
	ErrorReloadBackoff  time.Duration
}

func NewProcessVideoUseCase(
	repo port.VideoRepository,
	storage port.MediaStorage,
	transcoder port.Transcoder,
	prober port.Prober,
	classifier port.Classifier,
	notifier port.Notifier,
	alerter port.Alerter,
	logger *zap.Logger,
	cfg ProcessVideoConfig,
) *ProcessVideoUseCase {
	if cfg.ClassifierAttempts < 1 {
		cfg.ClassifierAttempts = 1
	}
	if cfg.ErrorReloadAttempts < 1 {
		cfg.ErrorReloadAttempts = 1
	}
	return &ProcessVideoUseCase{
		repo:       repo,
		storage:    storage,
		transcoder: transcoder,
		prober:     prober,
		classifier: classifier,
		notifier:   notifier,
		alerter:    alerter,
		logger:     logger,
		cfg:        cfg,
		stat:       os.Stat,
	}
}

// Execute decodes a queue payload and processes the video it names.
func (uc *ProcessVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	var msg entity.ProcessVideoMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return fmt.Errorf("%w: %v", port.ErrMalformedMessage, err)
	}
	if msg.VideoID == uuid.Nil {
		return fmt.Errorf("%w: missing video_id", port.ErrMalformedMessage)
	}
	return uc.Process(ctx, msg.VideoID)
}

// Process runs the pipeline for one video to a terminal status. Failures inside
// the pipeline are recorded on the video and never returned. The only error
// returned is a failure to load the video before anything was changed, which
// the queue may safely redeliver.
func (uc *ProcessVideoUseCase) Process(ctx context.Context, videoID uuid.UUID) error {
	// in-flight videos are never cancelled; shutdown waits for them
	ctx = context.WithoutCancel(ctx)

	ctx, span := otel.Tracer("usecase").Start(ctx, "ProcessVideoUseCase.Process")
	defer span.End()
	span.SetAttributes(attribute.String("video.id", videoID.String()))

	log := uc.logger.With(zap.String("video_id", videoID.String()))

	video, err := uc.repo.FindByID(ctx, videoID)
	if errors.Is(err, port.ErrVideoNotFound) {
		log.Info("video no longer exists, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load video: %w", err)
	}
	if video.Status.IsTerminal() {
		log.Info("video already finished, skipping", zap.String("status", string(video.Status)))
		return nil
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	run := &processRun{uc: uc, video: video, log: log, lastPercent: -1}
	totalTimer := time.Now()

	if err := run.execute(ctx); err != nil {
		if superseded(err) {
			log.Info("video deleted or finished elsewhere, run abandoned", zap.Error(err))
			return nil
		}
		span.RecordError(err)
		log.Error("video processing failed", zap.Error(err))
		uc.recordFailure(ctx, run, err)
		return nil
	}

	metrics.VideosFinishedTotal.WithLabelValues(string(run.video.Status)).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

// processRun carries the state of one pipeline execution.
type processRun struct {
	uc          *ProcessVideoUseCase
	video       *entity.Video
	log         *zap.Logger
	lastPercent int
}

func (r *processRun) execute(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during processing: %v", p)
		}
	}()

	uc := r.uc
	video := r.video
	tracer := otel.Tracer("usecase")

	if err := video.MarkProcessing(); err != nil {
		return err
	}
	if err := uc.repo.Save(ctx, video); err != nil {
		return fmt.Errorf("save processing status: %w", err)
	}
	r.progress(ctx, uc.cfg.Progress.Start, MessageStarting)

	workDir := filepath.Join(uc.cfg.TempDir, video.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fetchStart := time.Now()
	ctxFetch, spanFetch := tracer.Start(ctx, "fetch_source")
	sourcePath, err := uc.storage.Fetch(ctxFetch, video.SourcePath, filepath.Join(workDir, "source"+filepath.Ext(video.SourcePath)))
	spanFetch.End()
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(fetchStart).Seconds())

	optimizedName := OptimizedFilename(video.Filename)
	outputPath := filepath.Join(workDir, optimizedName)
	if err := r.transcode(ctx, sourcePath, outputPath); err != nil {
		return err
	}

	r.progress(ctx, uc.cfg.Progress.Analysis, MessageAnalyzing)
	verdict, err := r.classify(ctx, sourcePath)
	if err != nil {
		return err
	}
	if err := video.RecordVerdict(verdict); err != nil {
		return err
	}
	metrics.VerdictsTotal.WithLabelValues(string(verdict)).Inc()

	probeStart := time.Now()
	ctxProbe, spanProbe := tracer.Start(ctx, "probe_duration")
	duration, err := uc.prober.Duration(ctxProbe, sourcePath)
	spanProbe.End()
	if err != nil {
		r.log.Warn("could not extract duration, skipping", zap.Error(err))
	} else {
		video.SetDuration(duration)
	}
	metrics.StageDuration.WithLabelValues("probe").Observe(time.Since(probeStart).Seconds())

	if err := video.Finish(); err != nil {
		return err
	}

	published := ""
	if _, err := uc.stat(outputPath); err == nil {
		location := OptimizedLocation(video.SourcePath, optimizedName)
		ctxPub, spanPub := tracer.Start(ctx, "publish_output")
		err := uc.storage.Publish(ctxPub, outputPath, location, optimizedContentType)
		spanPub.End()
		if err != nil {
			return fmt.Errorf("publish optimized video: %w", err)
		}
		video.AttachOptimized(location, optimizedName)
		published = location
	}

	if err := uc.repo.Save(ctx, video); err != nil {
		// a finalized record owns the artifact at this location
		if published != "" && errors.Is(err, port.ErrVideoNotFound) {
			if rmErr := uc.storage.Remove(ctx, published); rmErr != nil {
				r.log.Warn("failed to remove orphaned optimized video", zap.String("location", published), zap.Error(rmErr))
			}
		}
		return fmt.Errorf("save final status: %w", err)
	}

	message := MessageSafe
	if video.Status == entity.VideoStatusFlagged {
		message = MessageFlagged
	}
	r.progress(ctx, uc.cfg.Progress.Done, message)
	r.emit(ctx, entity.EventVideoUpdated, entity.NewVideoView(video))

	r.log.Info("video processed",
		zap.String("status", string(video.Status)),
		zap.String("output_path", video.OutputPath),
	)
	return nil
}

// transcode never fails the run on a tool error: it falls back to simulated
// progress so classification and probing still happen.
func (r *processRun) transcode(ctx context.Context, sourcePath, outputPath string) error {
	uc := r.uc
	cfg := uc.cfg.Progress

	start := time.Now()
	ctxT, span := otel.Tracer("usecase").Start(ctx, "transcode")
	err := uc.transcoder.Transcode(ctxT, sourcePath, outputPath, func(percent float64) {
		r.progress(ctx, cfg.Rescale(percent), MessageOptimizing)
	})
	span.End()
	metrics.StageDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	reason := "error"
	if errors.Is(err, port.ErrToolUnavailable) {
		reason = "tool_unavailable"
		r.log.Warn("transcoder not available, running in simulation mode", zap.Error(err))
	} else {
		r.log.Warn("transcode failed, simulating progress", zap.Error(err))
	}
	metrics.TranscodeFallbackTotal.WithLabelValues(reason).Inc()

	return cfg.Simulator().Run(ctx, cfg.TranscodeCeiling, func(percent int) {
		r.progress(ctx, percent, MessageSimulating)
	})
}

func (r *processRun) classify(ctx context.Context, sourcePath string) (entity.Verdict, error) {
	start := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, "classify")
	defer span.End()
	defer func() {
		metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= r.uc.cfg.ClassifierAttempts; attempt++ {
		verdict, err := r.uc.classifier.Classify(ctx, r.video, sourcePath)
		if err == nil && !verdict.Valid() {
			err = fmt.Errorf("unknown verdict %q", verdict)
		}
		if err == nil {
			return verdict, nil
		}
		lastErr = err
		r.log.Warn("classification attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return "", fmt.Errorf("classify: %w", lastErr)
}

// progress emits a progress event unless it would move backwards or repeat.
func (r *processRun) progress(ctx context.Context, percent int, message string) {
	if percent <= r.lastPercent {
		return
	}
	r.lastPercent = percent
	r.emit(ctx, entity.EventVideoProgress, entity.ProgressEvent{
		VideoID:  r.video.ID,
		Status:   r.video.Status,
		Progress: percent,
		Message:  message,
	})
	metrics.ProgressEventsTotal.Inc()
}

func (r *processRun) emit(ctx context.Context, event string, payload any) {
	if err := r.uc.notifier.Emit(ctx, r.video.OwnerID, event, payload); err != nil {
		r.log.Warn("failed to notify client", zap.String("event", event), zap.Error(err))
	}
}

// recordFailure marks the video as errored. The video is reloaded because the
// in-memory copy may hold unsaved changes from the failed run.
func (uc *ProcessVideoUseCase) recordFailure(ctx context.Context, run *processRun, cause error) {
	ctx, cancel := context.WithTimeout(ctx, errorPathTimeout)
	defer cancel()

	id := run.video.ID
	var (
		video *entity.Video
		err   error
	)
	for attempt := 1; attempt <= uc.cfg.ErrorReloadAttempts; attempt++ {
		video, err = uc.repo.FindByID(ctx, id)
		if err == nil || errors.Is(err, port.ErrVideoNotFound) {
			break
		}
		run.log.Warn("reload after failure failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < uc.cfg.ErrorReloadAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(uc.cfg.ErrorReloadBackoff * time.Duration(attempt)):
			}
		}
	}

	switch {
	case errors.Is(err, port.ErrVideoNotFound):
		run.log.Info("video deleted during processing")
		return
	case err != nil:
		uc.escalate(ctx, id, cause, fmt.Errorf("reload video: %w", err), run.log)
		return
	}

	if err := video.MarkError(); err != nil {
		run.log.Warn("video not marked as errored", zap.Error(err))
		return
	}
	if err := uc.repo.Save(ctx, video); err != nil {
		if superseded(err) {
			run.log.Info("video deleted or finished elsewhere, failure not recorded", zap.Error(err))
			return
		}
		uc.escalate(ctx, id, cause, fmt.Errorf("save error status: %w", err), run.log)
		return
	}

	run.video = video
	run.progress(ctx, uc.cfg.Progress.Done, MessageFailed)
	metrics.VideosFinishedTotal.WithLabelValues(string(entity.VideoStatusError)).Inc()
}

func (uc *ProcessVideoUseCase) escalate(ctx context.Context, id uuid.UUID, cause, err error, log *zap.Logger) {
	metrics.EscalationsTotal.Inc()
	log.Error("could not record processing failure, escalating",
		zap.NamedError("cause", cause),
		zap.Error(err),
	)
	if uc.alerter == nil {
		return
	}
	detail := fmt.Sprintf("processing failed: %v\nrecording the failure failed: %v", cause, err)
	if alertErr := uc.alerter.Alert(ctx, id.String(), "video stuck in processing", detail); alertErr != nil {
		log.Error("failed to send operator alert", zap.Error(alertErr))
	}
}

// superseded reports whether a store write was rejected because the record was
// deleted or another run already finished it.
func superseded(err error) bool {
	return errors.Is(err, port.ErrVideoNotFound) || errors.Is(err, port.ErrVideoFinalized)
}

// OptimizedFilename is the name of the streaming copy of filename.
func OptimizedFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return optimizedPrefix + base + "." + "mp4"
}

// OptimizedLocation places the optimized file next to the source.
func OptimizedLocation(sourcePath, optimizedName string) string {
	return path.Join(path.Dir(filepath.ToSlash(sourcePath)), optimizedName)
}
