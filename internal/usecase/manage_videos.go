package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// ManageVideosUseCase covers the read and delete paths around processing.
type ManageVideosUseCase struct {
	repo     port.VideoRepository
	storage  port.MediaStorage
	notifier port.Notifier
	logger   *zap.Logger
}

func NewManageVideosUseCase(repo port.VideoRepository, storage port.MediaStorage, notifier port.Notifier, logger *zap.Logger) *ManageVideosUseCase {
	return &ManageVideosUseCase{repo: repo, storage: storage, notifier: notifier, logger: logger}
}

// Delete removes a video record and its optimized artifact. A run still in
// flight for the video finishes without recreating the record.
func (uc *ManageVideosUseCase) Delete(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	video, err := uc.authorized(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	log := uc.logger.With(zap.String("video_id", id.String()))
	if video.OutputPath != "" {
		if err := uc.storage.Remove(ctx, video.OutputPath); err != nil {
			log.Warn("failed to remove optimized artifact", zap.String("location", video.OutputPath), zap.Error(err))
		}
	}
	if err := uc.notifier.Emit(ctx, video.OwnerID, entity.EventVideoDeleted, entity.DeletedEvent{VideoID: id}); err != nil {
		log.Warn("failed to notify client", zap.String("event", entity.EventVideoDeleted), zap.Error(err))
	}

	log.Info("video deleted", zap.String("by", actor.UserID))
	return nil
}

// List returns the actor's own videos, or every video of the tenant for an Admin.
func (uc *ManageVideosUseCase) List(ctx context.Context, actor entity.Actor) ([]*entity.Video, error) {
	if actor.Role == entity.RoleAdmin {
		return uc.repo.ListByTenant(ctx, actor.TenantID)
	}
	return uc.repo.ListByOwner(ctx, actor.TenantID, actor.UserID)
}

// PlaybackLocation is where a player should read the video from.
func (uc *ManageVideosUseCase) PlaybackLocation(ctx context.Context, actor entity.Actor, id uuid.UUID) (string, error) {
	video, err := uc.authorized(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return video.PlaybackPath(), nil
}

func (uc *ManageVideosUseCase) authorized(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Video, error) {
	video, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(video) {
		return nil, ErrForbidden
	}
	return video, nil
}
