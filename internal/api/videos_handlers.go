package api

import (
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/assets"
	"clipstream/internal/models"
	"clipstream/internal/storage"
)

// Videos handles the collection route: POST publishes a new video from a
// multipart form carrying the media file and its thumbnail. Both objects
// must upload before the record is inserted; an insert failure deletes both.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	form, err := h.parseMultipartForm(r, "videoFile", "thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer form.cleanup()

	title := form.field("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}
	file := form.file("videoFile")
	thumbnail := form.file("thumbnail")
	if file == nil || thumbnail == nil {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("%w: videoFile and thumbnail are required", assets.ErrMissingAsset))
		return
	}

	files := []assets.FileUpload{
		{Source: file.source(), Kind: models.AssetKindVideo},
		{Source: thumbnail.source(), Kind: models.AssetKindThumbnail},
	}

	var video models.Video
	_, err = h.Assets.CreateOwned(r.Context(), files, func(refs []models.AssetReference) error {
		created, createErr := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
			OwnerID:     user.ID,
			Title:       title,
			Description: form.field("description"),
			File:        refs[0],
			Thumbnail:   refs[1],
		})
		if createErr != nil {
			return createErr
		}
		video = created
		return nil
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.Logger.Info("video published", "videoId", video.ID, "ownerId", user.ID)
	writeJSON(w, http.StatusCreated, newVideoResponse(video))
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// VideoByID routes /api/videos/{id} and /api/videos/{id}/thumbnail.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}
	videoID := parts[0]

	if len(parts) == 2 && parts[1] == "thumbnail" {
		h.updateVideoThumbnail(w, r, videoID)
		return
	}
	if len(parts) > 1 {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown video path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		video, ok, err := h.Store.GetVideo(r.Context(), videoID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(video))
	case http.MethodPatch:
		video, ok := h.requireVideoOwner(w, r, videoID)
		if !ok {
			return
		}
		var req updateVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Title == nil && req.Description == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("nothing to update"))
			return
		}
		updated, err := h.Store.UpdateVideoDetails(r.Context(), video.ID, storage.VideoDetailsUpdate{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(updated))
	case http.MethodDelete:
		video, ok := h.requireVideoOwner(w, r, videoID)
		if !ok {
			return
		}
		// The record goes first; the binary objects are released afterwards
		// best-effort so a storage hiccup never resurrects the record.
		deleted, err := h.Store.DeleteVideo(r.Context(), video.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.Assets.Remove(r.Context(), deleted.File, deleted.Thumbnail)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "GET, PATCH, DELETE")
	}
}

func (h *Handler) updateVideoThumbnail(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	video, ok := h.requireVideoOwner(w, r, videoID)
	if !ok {
		return
	}

	form, err := h.parseMultipartForm(r, "thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer form.cleanup()

	media := form.file("thumbnail")
	if media == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("thumbnail file is required"))
		return
	}

	var updated models.Video
	_, err = h.Assets.Replace(r.Context(), video.Thumbnail, media.source(), models.AssetKindThumbnail,
		func(ref models.AssetReference) error {
			result, updateErr := h.Store.SetVideoThumbnail(r.Context(), video.ID, ref)
			if updateErr != nil {
				return updateErr
			}
			updated = result
			return nil
		})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVideoResponse(updated))
}

func (h *Handler) requireVideoOwner(w http.ResponseWriter, r *http.Request, videoID string) (models.Video, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.Video{}, false
	}
	video, exists, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeServiceError(w, err)
		return models.Video{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return models.Video{}, false
	}
	if video.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return models.Video{}, false
	}
	return video, true
}
