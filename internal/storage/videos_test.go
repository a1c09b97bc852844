package storage

import (
	"context"
	"errors"
	"testing"

	"clipstream/internal/models"
)

func videoRefs() (models.AssetReference, models.AssetReference) {
	file := models.AssetReference{URL: "https://cdn.example/v1", StorageID: "v1", Kind: models.AssetKindVideo}
	thumb := models.AssetReference{URL: "https://cdn.example/t1", StorageID: "t1", Kind: models.AssetKindThumbnail}
	return file, thumb
}

func createTestVideo(t *testing.T, store *Storage, ownerID string) models.Video {
	t.Helper()
	file, thumb := videoRefs()
	video, err := store.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:     ownerID,
		Title:       "My Clip",
		Description: "first upload",
		File:        file,
		Thumbnail:   thumb,
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func TestCreateVideoRequiresExistingOwner(t *testing.T) {
	store := newTestStorage(t)
	file, thumb := videoRefs()
	_, err := store.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:   "missing",
		Title:     "My Clip",
		File:      file,
		Thumbnail: thumb,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for a missing owner", err)
	}
}

func TestCreateVideoValidation(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "casey", "casey@example.com")
	file, thumb := videoRefs()

	cases := []struct {
		name   string
		params CreateVideoParams
	}{
		{"missing title", CreateVideoParams{OwnerID: owner.ID, Title: "  ", File: file, Thumbnail: thumb}},
		{"missing owner", CreateVideoParams{Title: "x", File: file, Thumbnail: thumb}},
		{"missing file", CreateVideoParams{OwnerID: owner.ID, Title: "x", Thumbnail: thumb}},
		{"missing thumbnail", CreateVideoParams{OwnerID: owner.ID, Title: "x", File: file}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.CreateVideo(context.Background(), tc.params)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("CreateVideo returned %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestVideoLifecycle(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "casey", "casey@example.com")
	ctx := context.Background()

	video := createTestVideo(t, store, owner.ID)

	got, ok, err := store.GetVideo(ctx, video.ID)
	if err != nil || !ok {
		t.Fatalf("GetVideo: ok=%v err=%v", ok, err)
	}
	if got.Title != "My Clip" || got.OwnerID != owner.ID {
		t.Fatalf("stored video %+v", got)
	}

	title := "Renamed"
	desc := ""
	updated, err := store.UpdateVideoDetails(ctx, video.ID, VideoDetailsUpdate{Title: &title, Description: &desc})
	if err != nil {
		t.Fatalf("UpdateVideoDetails: %v", err)
	}
	if updated.Title != "Renamed" || updated.Description != "" {
		t.Fatalf("update result %+v", updated)
	}

	empty := " "
	if _, err := store.UpdateVideoDetails(ctx, video.ID, VideoDetailsUpdate{Title: &empty}); err == nil {
		t.Fatal("UpdateVideoDetails accepted a blank title")
	}

	thumb := models.AssetReference{URL: "https://cdn.example/t2", StorageID: "t2", Kind: models.AssetKindThumbnail}
	updated, err = store.SetVideoThumbnail(ctx, video.ID, thumb)
	if err != nil {
		t.Fatalf("SetVideoThumbnail: %v", err)
	}
	if updated.Thumbnail != thumb {
		t.Fatalf("thumbnail not replaced: %+v", updated.Thumbnail)
	}

	deleted, err := store.DeleteVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if deleted.File.StorageID != "v1" || deleted.Thumbnail.StorageID != "t2" {
		t.Fatalf("deleted record missing asset references: %+v", deleted)
	}
	if _, ok, _ := store.GetVideo(ctx, video.ID); ok {
		t.Fatal("video still readable after delete")
	}
	if _, err := store.DeleteVideo(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete returned %v, want ErrNotFound", err)
	}
}

func TestDeleteVideoPersistFailureKeepsRecord(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "casey", "casey@example.com")
	video := createTestVideo(t, store, owner.ID)
	ctx := context.Background()

	store.persistOverride = func(dataset) error { return errors.New("disk full") }
	if _, err := store.DeleteVideo(ctx, video.ID); err == nil {
		t.Fatal("delete succeeded despite a persist failure")
	}
	store.persistOverride = nil

	if _, ok, _ := store.GetVideo(ctx, video.ID); !ok {
		t.Fatal("record vanished after a failed persist")
	}
}
