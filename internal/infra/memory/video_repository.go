package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
)

// VideoRepository keeps videos in process memory. Records are cloned on the
// way in and out so callers never share state with the store.
type VideoRepository struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]*entity.Video
}

func NewVideoRepository() *VideoRepository {
	return &VideoRepository{videos: make(map[uuid.UUID]*entity.Video)}
}

func (r *VideoRepository) Create(_ context.Context, video *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.ID] = video.Clone()
	return nil
}

// Save overwrites an existing record that has not reached a terminal status.
func (r *VideoRepository) Save(_ context.Context, video *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.videos[video.ID]
	if !ok {
		return port.ErrVideoNotFound
	}
	if stored.Status.IsTerminal() {
		return port.ErrVideoFinalized
	}
	c := video.Clone()
	c.UpdatedAt = time.Now().UTC()
	r.videos[video.ID] = c
	return nil
}

func (r *VideoRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, port.ErrVideoNotFound
	}
	return v.Clone(), nil
}

func (r *VideoRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return port.ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

func (r *VideoRepository) ListByOwner(_ context.Context, tenantID, ownerID string) ([]*entity.Video, error) {
	return r.list(func(v *entity.Video) bool {
		return v.TenantID == tenantID && v.OwnerID == ownerID
	}), nil
}

func (r *VideoRepository) ListByTenant(_ context.Context, tenantID string) ([]*entity.Video, error) {
	return r.list(func(v *entity.Video) bool { return v.TenantID == tenantID }), nil
}

func (r *VideoRepository) ListStale(_ context.Context, status entity.VideoStatus, updatedBefore time.Time) ([]*entity.Video, error) {
	return r.list(func(v *entity.Video) bool {
		return v.Status == status && v.UpdatedAt.Before(updatedBefore)
	}), nil
}

// list returns matching videos, newest first.
func (r *VideoRepository) list(match func(*entity.Video) bool) []*entity.Video {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Video, 0)
	for _, v := range r.videos {
		if match(v) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
