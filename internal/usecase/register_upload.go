package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes int64 = 100 << 20

const MessageUploaded = "Video uploaded, starting processing pipeline..."

var (
	ErrForbidden        = errors.New("forbidden")
	ErrUnsupportedMedia = errors.New("only video files are allowed")
	ErrFileTooLarge     = errors.New("file exceeds maximum upload size")
)

// UploadInput describes a file the upload handler has already stored.
type UploadInput struct {
	Title            string
	OriginalFilename string
	// Filename is the unique stored name and SourcePath its storage location.
	Filename   string
	SourcePath string
	MimeType   string
	Size       int64
}

type RegisterUploadUseCase struct {
	repo     port.VideoRepository
	queue    port.JobQueue
	notifier port.Notifier
	logger   *zap.Logger
}

func NewRegisterUploadUseCase(repo port.VideoRepository, queue port.JobQueue, notifier port.Notifier, logger *zap.Logger) *RegisterUploadUseCase {
	return &RegisterUploadUseCase{repo: repo, queue: queue, notifier: notifier, logger: logger}
}

// Execute records a stored upload and hands it to the processing queue. The
// call returns once the task is queued, not when processing ends.
func (uc *RegisterUploadUseCase) Execute(ctx context.Context, actor entity.Actor, in UploadInput) (*entity.Video, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "RegisterUploadUseCase.Execute")
	defer span.End()

	if !actor.CanUpload() {
		return nil, ErrForbidden
	}
	if !strings.HasPrefix(in.MimeType, "video/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, in.MimeType)
	}
	if in.Size > MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, in.Size)
	}

	video := entity.NewVideo(actor.TenantID, actor.UserID, in.Title, in.OriginalFilename, in.Filename, in.SourcePath, in.MimeType, in.Size)
	log := uc.logger.With(zap.String("video_id", video.ID.String()), zap.String("tenant_id", video.TenantID))

	if err := uc.repo.Create(ctx, video); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	uc.emit(ctx, log, video.OwnerID, entity.EventVideoNew, entity.NewVideoView(video))
	uc.emit(ctx, log, video.OwnerID, entity.EventVideoProgress, entity.ProgressEvent{
		VideoID:  video.ID,
		Status:   video.Status,
		Progress: 0,
		Message:  MessageUploaded,
	})

	if err := uc.queue.Enqueue(ctx, video.ID, video.TenantID); err != nil {
		log.Error("failed to enqueue video", zap.Error(err))
		if markErr := video.MarkError(); markErr == nil {
			if saveErr := uc.repo.Save(ctx, video); saveErr != nil {
				log.Error("failed to mark video as errored", zap.Error(saveErr))
			}
		}
		return video, fmt.Errorf("enqueue video: %w", err)
	}

	log.Info("video registered for processing", zap.String("source_path", video.SourcePath))
	return video, nil
}

func (uc *RegisterUploadUseCase) emit(ctx context.Context, log *zap.Logger, recipient, event string, payload any) {
	if err := uc.notifier.Emit(ctx, recipient, event, payload); err != nil {
		log.Warn("failed to notify client", zap.String("event", event), zap.Error(err))
	}
}
