package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"github.com/vidstream/vidstream-processing-service/internal/infra/metrics"
	"go.uber.org/zap"
)

// RecoverStalledUseCase re-enqueues videos left in Processing by a worker that
// died mid-run. Re-running is safe since finished videos are skipped.
type RecoverStalledUseCase struct {
	repo   port.VideoRepository
	queue  port.JobQueue
	logger *zap.Logger
	after  time.Duration
	now    func() time.Time
}

func NewRecoverStalledUseCase(repo port.VideoRepository, queue port.JobQueue, logger *zap.Logger, stalledAfter time.Duration) *RecoverStalledUseCase {
	return &RecoverStalledUseCase{repo: repo, queue: queue, logger: logger, after: stalledAfter, now: time.Now}
}

// Execute returns how many videos were re-enqueued.
func (uc *RecoverStalledUseCase) Execute(ctx context.Context) (int, error) {
	cutoff := uc.now().Add(-uc.after)
	stale, err := uc.repo.ListStale(ctx, entity.VideoStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stalled videos: %w", err)
	}

	requeued := 0
	for _, v := range stale {
		if err := uc.queue.Enqueue(ctx, v.ID, v.TenantID); err != nil {
			uc.logger.Error("failed to re-enqueue stalled video", zap.String("video_id", v.ID.String()), zap.Error(err))
			continue
		}
		requeued++
		metrics.RequeuedTotal.Inc()
	}

	if len(stale) > 0 {
		uc.logger.Info("stalled videos recovered",
			zap.Int("found", len(stale)),
			zap.Int("requeued", requeued),
			zap.Time("cutoff", cutoff),
		)
	}
	return requeued, nil
}
