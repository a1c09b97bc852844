package assets

import (
	"context"
	"errors"

	"clipstream/internal/models"
)

var (
	// ErrMissingAsset is returned when a required file is absent from the
	// request before anything has been uploaded.
	ErrMissingAsset = errors.New("required asset file missing")

	// ErrUploadFailed is returned when the external store rejects or fails
	// an upload. Nothing has been persisted when it is surfaced from the
	// creation path.
	ErrUploadFailed = errors.New("asset upload failed")
)

// FileSource names a local file staged for upload, typically a temp file
// written from a multipart part.
type FileSource struct {
	Path         string
	ContentType  string
	OriginalName string
}

// Client uploads and deletes binary objects in an external content store.
// Upload returns a stable reference carrying both the public URL and the
// opaque storage identifier needed to delete the object later.
type Client interface {
	Upload(ctx context.Context, src FileSource, kind models.AssetKind) (models.AssetReference, error)
	Delete(ctx context.Context, storageID string) error
}
