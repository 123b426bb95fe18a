package asynq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// TaskProcessVideo is the asynq task type carrying a ProcessVideoMessage.
const TaskProcessVideo = "video:process"

// Queue enqueues processing tasks on Redis through an asynq client.
type Queue struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewQueue(redis asynq.RedisConnOpt, queue string, maxRetry int) *Queue {
	return &Queue{client: asynq.NewClient(redis), queue: queue, maxRetry: maxRetry}
}

func NewProcessVideoTask(videoID uuid.UUID, tenantID string) (*asynq.Task, error) {
	payload, err := json.Marshal(entity.ProcessVideoMessage{VideoID: videoID, TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessVideo, payload), nil
}

// Enqueue uses the video id as task id, so a video already waiting in the
// queue is not queued twice.
func (q *Queue) Enqueue(ctx context.Context, videoID uuid.UUID, tenantID string) error {
	task, err := NewProcessVideoTask(videoID, tenantID)
	if err != nil {
		return fmt.Errorf("build task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.TaskID(videoID.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
