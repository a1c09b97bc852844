package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clipstream/internal/models"
)

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}

// CreateUser registers an account. The avatar reference is required: an
// identity never exists without a resolvable avatar object.
func (s *Storage) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.data.Users {
		if user.Username == username {
			return models.User{}, fmt.Errorf("%w: username %s already in use", ErrConflict, username)
		}
		if user.Email == email {
			return models.User{}, fmt.Errorf("%w: email %s already in use", ErrConflict, email)
		}
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           generateID(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: params.PasswordHash,
		Avatar:       params.Avatar,
		Cover:        params.Cover,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	updated := cloneDataset(s.data)
	updated.Users[user.ID] = user
	if err := s.persistDataset(updated); err != nil {
		return models.User{}, err
	}
	s.data = updated
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	return user, ok, nil
}

// FindUserByLogin resolves a handle or an email, ignoring case.
func (s *Storage) FindUserByLogin(ctx context.Context, login string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.data.Users {
		if user.MatchesLogin(login) {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

func (s *Storage) UpdateUserDetails(ctx context.Context, id string, update UserDetailsUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}

	if update.Username != nil {
		username := normalizeHandle(*update.Username)
		if username == "" {
			return models.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		for otherID, other := range s.data.Users {
			if otherID != id && other.Username == username {
				return models.User{}, fmt.Errorf("%w: username %s already in use", ErrConflict, username)
			}
		}
		user.Username = username
	}
	if update.DisplayName != nil {
		displayName := strings.TrimSpace(*update.DisplayName)
		if displayName == "" {
			return models.User{}, fmt.Errorf("%w: displayName is required", ErrInvalidInput)
		}
		user.DisplayName = displayName
	}

	return s.saveUser(user)
}

func (s *Storage) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	user.PasswordHash = passwordHash
	_, err := s.saveUser(user)
	return err
}

func (s *Storage) SetUserAvatar(ctx context.Context, id string, ref models.AssetReference) (models.User, error) {
	if ref.IsZero() {
		return models.User{}, fmt.Errorf("%w: avatar reference is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	user.Avatar = ref
	return s.saveUser(user)
}

func (s *Storage) SetUserCover(ctx context.Context, id string, ref models.AssetReference) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	user.Cover = ref
	return s.saveUser(user)
}

func (s *Storage) SetRefreshToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	user.RefreshToken = token
	_, err := s.saveUser(user)
	return err
}

// RotateRefreshToken swaps the stored refresh token only if it still equals
// current, so concurrent rotations for one account admit a single winner.
func (s *Storage) RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return false, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	if _, err := s.saveUser(user); err != nil {
		return false, err
	}
	return true, nil
}

// ClearRefreshToken revokes the account's session. Clearing an already empty
// slot succeeds.
func (s *Storage) ClearRefreshToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if user.RefreshToken == "" {
		return nil
	}
	user.RefreshToken = ""
	_, err := s.saveUser(user)
	return err
}

// saveUser persists the mutated user via clone-and-swap. Callers hold the
// write lock.
func (s *Storage) saveUser(user models.User) (models.User, error) {
	user.UpdatedAt = time.Now().UTC()
	updated := cloneDataset(s.data)
	updated.Users[user.ID] = user
	if err := s.persistDataset(updated); err != nil {
		return models.User{}, err
	}
	s.data = updated
	return user, nil
}
