package port

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMalformedMessage marks a queue payload that can never be processed.
// Queue adapters dead-letter it instead of retrying.
var ErrMalformedMessage = errors.New("malformed processing message")

// Notifier delivers events to every session of a recipient. Delivery is best-effort.
type Notifier interface {
	Emit(ctx context.Context, recipientID, event string, payload any) error
}

// JobQueue hands a video to the processing workers.
type JobQueue interface {
	Enqueue(ctx context.Context, videoID uuid.UUID, tenantID string) error
}

// Alerter escalates failures that need an operator.
type Alerter interface {
	Alert(ctx context.Context, videoID, subject, detail string) error
}
