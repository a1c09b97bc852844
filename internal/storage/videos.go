package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clipstream/internal/models"
)

// CreateVideo persists a published video. Both the file and thumbnail
// references must already point at durably stored objects.
func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if params.OwnerID == "" {
		return models.Video{}, fmt.Errorf("%w: ownerID is required", ErrInvalidInput)
	}
	if params.File.IsZero() || params.Thumbnail.IsZero() {
		return models.Video{}, fmt.Errorf("%w: file and thumbnail references are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, fmt.Errorf("%w: user %s", ErrNotFound, params.OwnerID)
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:          generateID(),
		OwnerID:     params.OwnerID,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		File:        params.File,
		Thumbnail:   params.Thumbnail,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, err
	}
	s.data = updated
	return video, nil
}

func (s *Storage) GetVideo(ctx context.Context, id string) (models.Video, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok, nil
}

func (s *Storage) UpdateVideoDetails(ctx context.Context, id string, update VideoDetailsUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return models.Video{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		video.Title = title
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	return s.saveVideo(video)
}

func (s *Storage) SetVideoThumbnail(ctx context.Context, id string, ref models.AssetReference) (models.Video, error) {
	if ref.IsZero() {
		return models.Video{}, fmt.Errorf("%w: thumbnail reference is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	video.Thumbnail = ref
	return s.saveVideo(video)
}

// DeleteVideo removes the record and returns it so the caller can release
// the external objects it owned.
func (s *Storage) DeleteVideo(ctx context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	updated := cloneDataset(s.data)
	delete(updated.Videos, id)
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, err
	}
	s.data = updated
	return video, nil
}

func (s *Storage) saveVideo(video models.Video) (models.Video, error) {
	video.UpdatedAt = time.Now().UTC()
	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, err
	}
	s.data = updated
	return video, nil
}
