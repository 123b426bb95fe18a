package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
)

const videoColumns = `
	id, tenant_id, owner_id, title, original_filename, filename,
	source_path, output_path, mime_type, size, status, sensitivity,
	duration, created_at, updated_at`

type VideoRepository struct {
	pool *pgxpool.Pool
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

func (r *VideoRepository) Create(ctx context.Context, v *entity.Video) error {
	query := `INSERT INTO videos (` + videoColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.TenantID, v.OwnerID, v.Title, v.OriginalFilename, v.Filename,
		v.SourcePath, v.OutputPath, v.MimeType, v.Size, string(v.Status), string(v.Sensitivity),
		v.Duration, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Save updates the mutable fields of an existing row. Deleted rows stay
// deleted and rows in a terminal status are left untouched.
func (r *VideoRepository) Save(ctx context.Context, v *entity.Video) error {
	query := `
		UPDATE videos SET
			title=$2, filename=$3, output_path=$4, status=$5,
			sensitivity=$6, duration=$7, updated_at=$8
		WHERE id=$1 AND status NOT IN ('Completed', 'Flagged', 'Error')`

	tag, err := r.pool.Exec(ctx, query,
		v.ID, v.Title, v.Filename, v.OutputPath, string(v.Status),
		string(v.Sensitivity), v.Duration, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id=$1)`, v.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check video: %w", err)
	}
	if !exists {
		return port.ErrVideoNotFound
	}
	return port.ErrVideoFinalized
}

func (r *VideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id=$1`

	v, err := scanVideo(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find video by id: %w", err)
	}
	return v, nil
}

func (r *VideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepository) ListByOwner(ctx context.Context, tenantID, ownerID string) ([]*entity.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE tenant_id=$1 AND owner_id=$2 ORDER BY created_at DESC`
	return r.list(ctx, query, tenantID, ownerID)
}

func (r *VideoRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE tenant_id=$1 ORDER BY created_at DESC`
	return r.list(ctx, query, tenantID)
}

func (r *VideoRepository) ListStale(ctx context.Context, status entity.VideoStatus, updatedBefore time.Time) ([]*entity.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE status=$1 AND updated_at < $2 ORDER BY updated_at`
	return r.list(ctx, query, string(status), updatedBefore)
}

func (r *VideoRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Video, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*entity.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

func scanVideo(row pgx.Row) (*entity.Video, error) {
	v := &entity.Video{}
	var status, sensitivity string
	err := row.Scan(
		&v.ID, &v.TenantID, &v.OwnerID, &v.Title, &v.OriginalFilename, &v.Filename,
		&v.SourcePath, &v.OutputPath, &v.MimeType, &v.Size, &status, &sensitivity,
		&v.Duration, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = entity.VideoStatus(status)
	v.Sensitivity = entity.Sensitivity(sensitivity)
	return v, nil
}
