package auth

import (
	"context"
	"errors"
	"testing"

	"clipstream/internal/models"
)

// fakeIdentityStore keeps one user in memory and implements the same
// compare-and-set rotation semantics the real repositories do.
type fakeIdentityStore struct {
	user      models.User
	haveUser  bool
	rotations int
	findErr   error
}

func (f *fakeIdentityStore) GetUser(_ context.Context, id string) (models.User, bool, error) {
	if !f.haveUser || f.user.ID != id {
		return models.User{}, false, nil
	}
	return f.user, true, nil
}

func (f *fakeIdentityStore) FindUserByLogin(_ context.Context, login string) (models.User, bool, error) {
	if f.findErr != nil {
		return models.User{}, false, f.findErr
	}
	if !f.haveUser || (f.user.Username != login && f.user.Email != login) {
		return models.User{}, false, nil
	}
	return f.user, true, nil
}

func (f *fakeIdentityStore) SetRefreshToken(_ context.Context, id, token string) error {
	if !f.haveUser || f.user.ID != id {
		return errors.New("no such user")
	}
	f.user.RefreshToken = token
	return nil
}

func (f *fakeIdentityStore) RotateRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	if !f.haveUser || f.user.ID != id {
		return false, errors.New("no such user")
	}
	if f.user.RefreshToken != current {
		return false, nil
	}
	f.user.RefreshToken = next
	f.rotations++
	return true, nil
}

func (f *fakeIdentityStore) ClearRefreshToken(_ context.Context, id string) error {
	if f.haveUser && f.user.ID == id {
		f.user.RefreshToken = ""
	}
	return nil
}

func newTestSessionService(t *testing.T, store IdentityStore) *SessionService {
	t.Helper()
	return NewSessionService(newTestIssuer(t), store, nil)
}

func storeWithUser(t *testing.T, password string) *fakeIdentityStore {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &fakeIdentityStore{
		user: models.User{
			ID:           "user-1",
			Username:     "casey",
			Email:        "casey@example.com",
			PasswordHash: hash,
		},
		haveUser: true,
	}
}

func TestLoginIssuesAndStoresRefreshToken(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	user, pair, err := svc.Login(context.Background(), "casey", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("Login returned user %q", user.ID)
	}
	if pair.RefreshToken == "" {
		t.Fatal("Login returned an empty refresh token")
	}
	if store.user.RefreshToken != pair.RefreshToken {
		t.Fatal("issued refresh token was not persisted on the account")
	}
}

func TestLoginAcceptsEmailAsLogin(t *testing.T) {
	svc := newTestSessionService(t, storeWithUser(t, "opensesame"))
	if _, _, err := svc.Login(context.Background(), "casey@example.com", "opensesame"); err != nil {
		t.Fatalf("Login by email: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	if _, _, err := svc.Login(context.Background(), "casey", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password returned %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody", "opensesame"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown login returned %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "casey", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password returned %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginPropagatesStoreFailure(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	store.findErr = errors.New("disk unhappy")
	svc := newTestSessionService(t, store)

	_, _, err := svc.Login(context.Background(), "casey", "opensesame")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store failure surfaced as %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	_, first, err := svc.Login(context.Background(), "casey", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("Refresh returned the same refresh token instead of rotating")
	}
	if store.user.RefreshToken != second.RefreshToken {
		t.Fatal("rotated token was not persisted")
	}
	if store.rotations != 1 {
		t.Fatalf("rotation count = %d, want 1", store.rotations)
	}
}

func TestRefreshRejectsReusedToken(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	_, first, err := svc.Login(context.Background(), "casey", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), first.RefreshToken); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("reused token returned %v, want ErrTokenRevoked", err)
	}
}

func TestRefreshRejectsAfterLogout(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	_, pair, err := svc.Login(context.Background(), "casey", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), "user-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("post-logout refresh returned %v, want ErrTokenRevoked", err)
	}
}

func TestRefreshRejectsUnknownAccount(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	_, pair, err := svc.Login(context.Background(), "casey", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.haveUser = false
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("refresh for a deleted account returned %v, want ErrIdentityNotFound", err)
	}
}

func TestRefreshRejectsMalformedToken(t *testing.T) {
	svc := newTestSessionService(t, storeWithUser(t, "opensesame"))
	if _, _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("malformed token returned %v, want ErrInvalidToken", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := storeWithUser(t, "opensesame")
	svc := newTestSessionService(t, store)

	if err := svc.Logout(context.Background(), "user-1"); err != nil {
		t.Fatalf("Logout with no session: %v", err)
	}
	if err := svc.Logout(context.Background(), "user-1"); err != nil {
		t.Fatalf("repeated Logout: %v", err)
	}
}
