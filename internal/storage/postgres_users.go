package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipstream/internal/models"
)

func (r *postgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username := normalizeHandle(params.Username)
	if username == "" {
		return models.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email := normalizeEmail(params.Email)
	if email == "" || !validEmail(email) {
		return models.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.User{}, fmt.Errorf("%w: displayName is required", ErrInvalidInput)
	}
	if params.PasswordHash == "" {
		return models.User{}, fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	if params.Avatar.IsZero() {
		return models.User{}, fmt.Errorf("%w: avatar reference is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: params.PasswordHash,
		Avatar:       params.Avatar,
		Cover:        params.Cover,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, username, email, display_name, password_hash, refresh_token,
			avatar_url, avatar_storage_id, cover_url, cover_storage_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, '', $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Username, user.Email, user.DisplayName, user.PasswordHash,
		user.Avatar.URL, user.Avatar.StorageID,
		user.Cover.URL, user.Cover.StorageID,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: username or email already in use", ErrConflict)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetUser(ctx context.Context, id string) (models.User, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if noRows(err) {
			return models.User{}, false, nil
		}
		return models.User{}, false, fmt.Errorf("select user: %w", err)
	}
	return user, true, nil
}

func (r *postgresRepository) FindUserByLogin(ctx context.Context, login string) (models.User, bool, error) {
	folded := strings.ToLower(strings.TrimSpace(login))
	if folded == "" {
		return models.User{}, false, nil
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`, folded)
	user, err := scanUser(row)
	if err != nil {
		if noRows(err) {
			return models.User{}, false, nil
		}
		return models.User{}, false, fmt.Errorf("select user by login: %w", err)
	}
	return user, true, nil
}

func (r *postgresRepository) UpdateUserDetails(ctx context.Context, id string, update UserDetailsUpdate) (models.User, error) {
	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	if update.Username != nil {
		username := normalizeHandle(*update.Username)
		if username == "" {
			return models.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		args = append(args, username)
		set = append(set, fmt.Sprintf("username = $%d", len(args)))
	}
	if update.DisplayName != nil {
		displayName := strings.TrimSpace(*update.DisplayName)
		if displayName == "" {
			return models.User{}, fmt.Errorf("%w: displayName is required", ErrInvalidInput)
		}
		args = append(args, displayName)
		set = append(set, fmt.Sprintf("display_name = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if noRows(err) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: username already in use", ErrConflict)
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

func (r *postgresRepository) SetUserAvatar(ctx context.Context, id string, ref models.AssetReference) (models.User, error) {
	if ref.IsZero() {
		return models.User{}, fmt.Errorf("%w: avatar reference is required", ErrInvalidInput)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET avatar_url = $1, avatar_storage_id = $2, updated_at = $3
		WHERE id = $4 RETURNING `+userColumns,
		ref.URL, ref.StorageID, time.Now().UTC(), id)
	user, err := scanUser(row)
	if err != nil {
		if noRows(err) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return models.User{}, fmt.Errorf("update avatar: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) SetUserCover(ctx context.Context, id string, ref models.AssetReference) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET cover_url = $1, cover_storage_id = $2, updated_at = $3
		WHERE id = $4 RETURNING `+userColumns,
		ref.URL, ref.StorageID, time.Now().UTC(), id)
	user, err := scanUser(row)
	if err != nil {
		if noRows(err) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return models.User{}, fmt.Errorf("update cover: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

// RotateRefreshToken performs the swap in a single guarded UPDATE, so the
// database adjudicates concurrent rotations.
func (r *postgresRepository) RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = $2
		 WHERE id = $3 AND refresh_token = $4`,
		next, time.Now().UTC(), id, current)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Distinguish a lost race from a missing identity.
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return false, nil
}

func (r *postgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = '', updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}
