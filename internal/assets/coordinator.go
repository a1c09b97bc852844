package assets

import (
	"context"
	"fmt"
	"log/slog"

	"clipstream/internal/models"
)

// FileUpload pairs a staged local file with the logical role its object will
// play. Optional uploads are allowed to fail without aborting the operation.
type FileUpload struct {
	Source   FileSource
	Kind     models.AssetKind
	Optional bool
}

// Coordinator sequences uploads against the external store and persistence of
// the owning record so the two never disagree. The database and the object
// store fail independently, so every multi-step operation here is a saga:
// later steps assume earlier postconditions, and failures trigger best-effort
// compensating deletes rather than leaving orphans or dangling references.
type Coordinator struct {
	client Client
	logger *slog.Logger
}

func NewCoordinator(client Client, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{client: client, logger: logger}
}

// CreateOwned uploads the given files and then persists the owning record via
// the callback, which receives references positionally matching files. A
// failed optional upload yields a zero reference at its position and the
// operation proceeds. A failed required upload deletes every object uploaded
// so far and returns ErrUploadFailed. A failed persist deletes every uploaded
// object; compensation failures are logged and never mask the persist error.
func (c *Coordinator) CreateOwned(ctx context.Context, files []FileUpload, persist func(refs []models.AssetReference) error) ([]models.AssetReference, error) {
	refs := make([]models.AssetReference, len(files))
	for idx, file := range files {
		if file.Source.Path == "" {
			if file.Optional {
				continue
			}
			c.compensate(ctx, refs)
			return nil, fmt.Errorf("%w: %s", ErrMissingAsset, file.Kind)
		}
		ref, err := c.client.Upload(ctx, file.Source, file.Kind)
		if err != nil {
			if file.Optional {
				c.logger.Warn("optional asset upload failed",
					"kind", string(file.Kind), "error", err)
				continue
			}
			c.compensate(ctx, refs)
			return nil, fmt.Errorf("%w: %s: %v", ErrUploadFailed, file.Kind, err)
		}
		refs[idx] = ref
	}
	if err := persist(refs); err != nil {
		c.compensate(ctx, refs)
		return nil, err
	}
	return refs, nil
}

// Replace swaps the object behind an existing reference. The order is fixed:
// upload the new object, persist the new reference, and only then delete the
// old object. Deleting the old object first would leave a live record
// pointing at nothing if the persist step failed, so the record resolves to
// an intact asset at every point in the sequence.
func (c *Coordinator) Replace(ctx context.Context, old models.AssetReference, src FileSource, kind models.AssetKind, persist func(models.AssetReference) error) (models.AssetReference, error) {
	if src.Path == "" {
		return models.AssetReference{}, fmt.Errorf("%w: %s", ErrMissingAsset, kind)
	}
	next, err := c.client.Upload(ctx, src, kind)
	if err != nil {
		return models.AssetReference{}, fmt.Errorf("%w: %s: %v", ErrUploadFailed, kind, err)
	}
	if err := persist(next); err != nil {
		c.deleteBestEffort(ctx, next)
		return models.AssetReference{}, err
	}
	if !old.IsZero() {
		c.deleteBestEffort(ctx, old)
	}
	return next, nil
}

// Remove deletes the objects behind the given references, logging failures.
// Used after a record deletion has been persisted.
func (c *Coordinator) Remove(ctx context.Context, refs ...models.AssetReference) {
	c.compensate(ctx, refs)
}

func (c *Coordinator) compensate(ctx context.Context, refs []models.AssetReference) {
	for _, ref := range refs {
		if !ref.IsZero() {
			c.deleteBestEffort(ctx, ref)
		}
	}
}

func (c *Coordinator) deleteBestEffort(ctx context.Context, ref models.AssetReference) {
	if err := c.client.Delete(ctx, ref.StorageID); err != nil {
		c.logger.Warn("asset delete failed, object may be orphaned",
			"kind", string(ref.Kind), "storage_id", ref.StorageID, "error", err)
	}
}
