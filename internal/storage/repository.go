package storage

import (
	"context"

	"clipstream/internal/models"
)

// Repository exposes the datastore operations required by the API handlers
// and the session service. Uniqueness violations surface as ErrConflict and
// unknown identifiers as ErrNotFound, regardless of backend.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, bool, error)
	FindUserByLogin(ctx context.Context, login string) (models.User, bool, error)
	UpdateUserDetails(ctx context.Context, id string, update UserDetailsUpdate) (models.User, error)
	SetUserPassword(ctx context.Context, id, passwordHash string) error
	SetUserAvatar(ctx context.Context, id string, ref models.AssetReference) (models.User, error)
	SetUserCover(ctx context.Context, id string, ref models.AssetReference) (models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, bool, error)
	UpdateVideoDetails(ctx context.Context, id string, update VideoDetailsUpdate) (models.Video, error)
	SetVideoThumbnail(ctx context.Context, id string, ref models.AssetReference) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) (models.Video, error)
}

// CreateUserParams carries a registration record. The password must already
// be hashed; this layer never sees cleartext credentials.
type CreateUserParams struct {
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	Avatar       models.AssetReference
	Cover        models.AssetReference
}

// UserDetailsUpdate applies a partial update; nil fields are left unchanged.
type UserDetailsUpdate struct {
	Username    *string
	DisplayName *string
}

type CreateVideoParams struct {
	OwnerID     string
	Title       string
	Description string
	File        models.AssetReference
	Thumbnail   models.AssetReference
}

// VideoDetailsUpdate applies a partial update; nil fields are left unchanged.
type VideoDetailsUpdate struct {
	Title       *string
	Description *string
}

var _ Repository = (*Storage)(nil)
