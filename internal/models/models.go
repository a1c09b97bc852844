package models

import (
	"strings"
	"time"
)

// AssetKind names the logical role of a stored binary object.
type AssetKind string

const (
	AssetKindAvatar    AssetKind = "avatar"
	AssetKindCover     AssetKind = "cover"
	AssetKindVideo     AssetKind = "video"
	AssetKindThumbnail AssetKind = "thumbnail"
)

// AssetReference points at a binary object held in external storage. The
// StorageID is the opaque key required to delete or replace the object later;
// the URL is what clients resolve. A zero reference means "no asset".
type AssetReference struct {
	URL       string    `json:"url"`
	StorageID string    `json:"storageId"`
	Kind      AssetKind `json:"kind"`
}

// IsZero reports whether the reference names no object.
func (a AssetReference) IsZero() bool {
	return a.StorageID == "" && a.URL == ""
}

// User represents an account. Username and Email are stored case-folded and
// are globally unique. PasswordHash is the only persisted form of the
// password. RefreshToken holds the single currently valid refresh token for
// the account; empty means no active session.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"displayName"`
	PasswordHash string         `json:"passwordHash,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	Avatar       AssetReference `json:"avatar"`
	Cover        AssetReference `json:"cover"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// MatchesLogin reports whether the provided login identifies this user by
// handle or email, ignoring case.
func (u User) MatchesLogin(login string) bool {
	folded := strings.ToLower(strings.TrimSpace(login))
	return folded != "" && (u.Username == folded || u.Email == folded)
}

// Video represents a published video and the two external objects it owns.
type Video struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	File        AssetReference `json:"file"`
	Thumbnail   AssetReference `json:"thumbnail"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
