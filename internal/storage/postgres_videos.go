package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipstream/internal/models"
)

func (r *postgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if params.File.IsZero() {
		return models.Video{}, fmt.Errorf("%w: video file reference is required", ErrInvalidInput)
	}
	if params.Thumbnail.IsZero() {
		return models.Video{}, fmt.Errorf("%w: thumbnail reference is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     params.OwnerID,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		File:        params.File,
		Thumbnail:   params.Thumbnail,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos (
			id, owner_id, title, description, file_url, file_storage_id,
			thumbnail_url, thumbnail_storage_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		video.ID, video.OwnerID, video.Title, video.Description,
		video.File.URL, video.File.StorageID,
		video.Thumbnail.URL, video.Thumbnail.StorageID,
		video.CreatedAt, video.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Video{}, fmt.Errorf("%w: user %s", ErrNotFound, params.OwnerID)
		}
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(ctx context.Context, id string) (models.Video, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		if noRows(err) {
			return models.Video{}, false, nil
		}
		return models.Video{}, false, fmt.Errorf("select video: %w", err)
	}
	return video, true, nil
}

func (r *postgresRepository) UpdateVideoDetails(ctx context.Context, id string, update VideoDetailsUpdate) (models.Video, error) {
	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return models.Video{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		args = append(args, title)
		set = append(set, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Description != nil {
		args = append(args, strings.TrimSpace(*update.Description))
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE videos SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), videoColumns)

	video, err := scanVideo(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if noRows(err) {
			return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
		}
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) SetVideoThumbnail(ctx context.Context, id string, ref models.AssetReference) (models.Video, error) {
	if ref.IsZero() {
		return models.Video{}, fmt.Errorf("%w: thumbnail reference is required", ErrInvalidInput)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE videos SET thumbnail_url = $1, thumbnail_storage_id = $2, updated_at = $3
		WHERE id = $4 RETURNING `+videoColumns,
		ref.URL, ref.StorageID, time.Now().UTC(), id)
	video, err := scanVideo(row)
	if err != nil {
		if noRows(err) {
			return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
		}
		return models.Video{}, fmt.Errorf("update thumbnail: %w", err)
	}
	return video, nil
}

// DeleteVideo removes the record and returns it so callers can release the
// underlying storage objects.
func (r *postgresRepository) DeleteVideo(ctx context.Context, id string) (models.Video, error) {
	row := r.pool.QueryRow(ctx,
		`DELETE FROM videos WHERE id = $1 RETURNING `+videoColumns, id)
	video, err := scanVideo(row)
	if err != nil {
		if noRows(err) {
			return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
		}
		return models.Video{}, fmt.Errorf("delete video: %w", err)
	}
	return video, nil
}
