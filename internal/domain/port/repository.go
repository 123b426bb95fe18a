package port

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

var (
	ErrVideoNotFound = errors.New("video not found")
	// ErrVideoFinalized is returned by Save when the stored record already
	// reached a terminal status. The write is discarded.
	ErrVideoFinalized = errors.New("video already finalized")
)

// VideoRepository persists video records. Save is an update by id that never
// recreates a deleted record: it returns ErrVideoNotFound when the record is
// gone and ErrVideoFinalized when the stored status is terminal.
type VideoRepository interface {
	Create(ctx context.Context, video *entity.Video) error
	Save(ctx context.Context, video *entity.Video) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, tenantID, ownerID string) ([]*entity.Video, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.Video, error)
	ListStale(ctx context.Context, status entity.VideoStatus, updatedBefore time.Time) ([]*entity.Video, error)
}
