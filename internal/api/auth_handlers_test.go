package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipstream/internal/models"
)

func TestRegisterCreatesAccountWithAssets(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"fullName": "Casey Jones",
		"password": "opensesame",
	}, map[string]string{"avatar": "avatar.png", "coverImage": "cover.png"})
	res := httptest.NewRecorder()
	env.handler.Register(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("Register returned %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody[userResponse](t, res)
	if body.Username != "casey" || body.AvatarURL == "" || body.CoverURL == "" {
		t.Fatalf("register response %+v", body)
	}
	if len(env.client.uploads) != 2 {
		t.Fatalf("uploaded %d objects, want avatar and cover", len(env.client.uploads))
	}
	if len(env.client.deletes) != 0 {
		t.Fatalf("unexpected compensating deletes: %v", env.client.deletes)
	}
}

func TestRegisterRequiresAvatar(t *testing.T) {
	env := newTestEnv(t)
	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"fullName": "Casey Jones",
		"password": "opensesame",
	}, nil)
	res := httptest.NewRecorder()
	env.handler.Register(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("Register without avatar returned %d", res.Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	env := newTestEnv(t)
	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"fullName": "Casey Jones",
		"password": "short",
	}, map[string]string{"avatar": "avatar.png"})
	res := httptest.NewRecorder()
	env.handler.Register(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("Register with a short password returned %d", res.Code)
	}
}

func TestRegisterDuplicateCompensatesUploads(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")
	uploadsBefore := len(env.client.uploads)

	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "second@example.com",
		"fullName": "Another Casey",
		"password": "opensesame",
	}, map[string]string{"avatar": "avatar.png"})
	res := httptest.NewRecorder()
	env.handler.Register(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate registration returned %d: %s", res.Code, res.Body.String())
	}
	if got := errorCode(t, res); got != "conflict" {
		t.Fatalf("error code %q, want conflict", got)
	}
	uploaded := len(env.client.uploads) - uploadsBefore
	if uploaded != 1 || len(env.client.deletes) != 1 {
		t.Fatalf("orphan not compensated: uploads=%d deletes=%v", uploaded, env.client.deletes)
	}
}

func TestRegisterMalformedEmailIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "not-an-email",
		"fullName": "Casey Jones",
		"password": "opensesame",
	}, map[string]string{"avatar": "avatar.png"})
	res := httptest.NewRecorder()
	env.handler.Register(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("malformed email returned %d: %s", res.Code, res.Body.String())
	}
	if got := errorCode(t, res); got != "validation" {
		t.Fatalf("error code %q, want validation", got)
	}
	if len(env.client.uploads) != 1 || len(env.client.deletes) != 1 {
		t.Fatalf("avatar not compensated: uploads=%d deletes=%v",
			len(env.client.uploads), env.client.deletes)
	}
	if _, ok, _ := env.store.FindUserByLogin(context.Background(), "casey"); ok {
		t.Fatal("account record created despite the rejected email")
	}
}

func TestRegisterUploadFailureLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	env.client.failUploads = map[models.AssetKind]error{
		models.AssetKindAvatar: errors.New("store unavailable"),
	}

	req := multipartRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"fullName": "Casey Jones",
		"password": "opensesame",
	}, map[string]string{"avatar": "avatar.png"})
	res := httptest.NewRecorder()
	env.handler.Register(res, req)

	if res.Code != http.StatusBadGateway {
		t.Fatalf("upload failure returned %d", res.Code)
	}
	if got := errorCode(t, res); got != "upload_failed" {
		t.Fatalf("error code %q, want upload_failed", got)
	}
	if _, ok, _ := env.store.FindUserByLogin(context.Background(), "casey"); ok {
		t.Fatal("account record created despite the failed upload")
	}
}

func TestLoginSetsSessionCookies(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "opensesame"}))

	if res.Code != http.StatusOK {
		t.Fatalf("Login returned %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody[authResponse](t, res)
	if body.AccessToken == "" || body.RefreshToken == "" {
		t.Fatalf("login response missing tokens: %+v", body)
	}

	cookies := res.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	for _, name := range []string{"accessToken", "refreshToken"} {
		cookie, ok := byName[name]
		if !ok {
			t.Fatalf("cookie %s not set", name)
		}
		if !cookie.HttpOnly {
			t.Fatalf("cookie %s is not HttpOnly", name)
		}
		if cookie.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s SameSite = %v", name, cookie.SameSite)
		}
		if cookie.Path != "/" {
			t.Fatalf("cookie %s path = %q", name, cookie.Path)
		}
		if cookie.Secure {
			t.Fatalf("cookie %s marked Secure on a plain HTTP request", name)
		}
	}
}

func TestLoginMarksCookiesSecureBehindTLSProxy(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	req := jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "opensesame"})
	req.Header.Set("X-Forwarded-Proto", "https")
	res := httptest.NewRecorder()
	env.handler.Login(res, req)

	for _, cookie := range res.Result().Cookies() {
		if !cookie.Secure {
			t.Fatalf("cookie %s not Secure behind an https proxy", cookie.Name)
		}
	}
}

func TestLoginByEmail(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "casey@example.com", "password": "opensesame"}))
	if res.Code != http.StatusOK {
		t.Fatalf("login by email returned %d: %s", res.Code, res.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "wrong-password"}))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("bad password returned %d", res.Code)
	}
	if got := errorCode(t, res); got != "invalid_credentials" {
		t.Fatalf("error code %q, want invalid_credentials", got)
	}
}

func loginCookies(t *testing.T, env *testEnv, username string) []*http.Cookie {
	t.Helper()
	res := httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "opensesame"}))
	if res.Code != http.StatusOK {
		t.Fatalf("Login returned %d: %s", res.Code, res.Body.String())
	}
	return res.Result().Cookies()
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")
	cookies := loginCookies(t, env, "casey")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	env.handler.RefreshTokens(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("refresh returned %d: %s", res.Code, res.Body.String())
	}
	first := decodeBody[authResponse](t, res)

	// Replaying the original cookie after rotation must be rejected.
	replay := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	for _, c := range cookies {
		replay.AddCookie(c)
	}
	res = httptest.NewRecorder()
	env.handler.RefreshTokens(res, replay)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh returned %d", res.Code)
	}
	if got := errorCode(t, res); got != "token_revoked" {
		t.Fatalf("error code %q, want token_revoked", got)
	}

	// The rotated token keeps working.
	next := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	next.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.RefreshToken})
	res = httptest.NewRecorder()
	env.handler.RefreshTokens(res, next)
	if res.Code != http.StatusOK {
		t.Fatalf("rotated token refresh returned %d: %s", res.Code, res.Body.String())
	}
}

func TestRefreshAcceptsBodyToken(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	loginRes := httptest.NewRecorder()
	env.handler.Login(loginRes, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "opensesame"}))
	pair := decodeBody[authResponse](t, loginRes)

	req := jsonRequest(t, http.MethodGet, "/api/auth/refresh-tokens",
		map[string]string{"refreshToken": pair.RefreshToken})
	res := httptest.NewRecorder()
	env.handler.RefreshTokens(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("body-token refresh returned %d: %s", res.Code, res.Body.String())
	}
}

func TestRefreshReadsBodyTokenAmongOtherFields(t *testing.T) {
	env := newTestEnv(t)
	registerAccount(t, env, "casey")

	loginRes := httptest.NewRecorder()
	env.handler.Login(loginRes, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "opensesame"}))
	pair := decodeBody[authResponse](t, loginRes)

	req := jsonRequest(t, http.MethodGet, "/api/auth/refresh-tokens",
		map[string]string{"refreshToken": pair.RefreshToken, "client": "web"})
	res := httptest.NewRecorder()
	env.handler.RefreshTokens(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("refresh with extra body fields returned %d: %s", res.Code, res.Body.String())
	}
}

func TestRefreshWithoutTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	res := httptest.NewRecorder()
	env.handler.RefreshTokens(res, httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without token returned %d", res.Code)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "garbage"})
	res := httptest.NewRecorder()
	env.handler.RefreshTokens(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token returned %d", res.Code)
	}
	if got := errorCode(t, res); got != "invalid_token" {
		t.Fatalf("error code %q, want invalid_token", got)
	}
}

func TestLogoutRevokesSessionAndClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	user := registerAccount(t, env, "casey")
	cookies := loginCookies(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.Logout(res, asUser(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), user))
	if res.Code != http.StatusNoContent {
		t.Fatalf("Logout returned %d", res.Code)
	}
	for _, cookie := range res.Result().Cookies() {
		if cookie.MaxAge != -1 {
			t.Fatalf("cookie %s not expired on logout: MaxAge=%d", cookie.Name, cookie.MaxAge)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	env.handler.RefreshTokens(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout returned %d", res.Code)
	}
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	env := newTestEnv(t)
	user := registerAccount(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.Logout(res, asUser(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), user))
	if res.Code != http.StatusNoContent {
		t.Fatalf("logout without an active session returned %d", res.Code)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := registerAccount(t, env, "casey")

	res := httptest.NewRecorder()
	env.handler.ChangePassword(res, asUser(jsonRequest(t, http.MethodPost, "/api/auth/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "newsecret99"}), user))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password returned %d", res.Code)
	}

	res = httptest.NewRecorder()
	env.handler.ChangePassword(res, asUser(jsonRequest(t, http.MethodPost, "/api/auth/change-password",
		map[string]string{"oldPassword": "opensesame", "newPassword": "short"}), user))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("short new password returned %d", res.Code)
	}

	res = httptest.NewRecorder()
	env.handler.ChangePassword(res, asUser(jsonRequest(t, http.MethodPost, "/api/auth/change-password",
		map[string]string{"oldPassword": "opensesame", "newPassword": "newsecret99"}), user))
	if res.Code != http.StatusNoContent {
		t.Fatalf("change password returned %d: %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "opensesame"}))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted after change: %d", res.Code)
	}
	res = httptest.NewRecorder()
	env.handler.Login(res, jsonRequest(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "casey", "password": "newsecret99"}))
	if res.Code != http.StatusOK {
		t.Fatalf("new password rejected: %d %s", res.Code, res.Body.String())
	}
}

func TestAuthEndpointsRejectWrongMethods(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name    string
		handler http.HandlerFunc
		method  string
	}{
		{"register", env.handler.Register, http.MethodGet},
		{"login", env.handler.Login, http.MethodGet},
		{"logout", env.handler.Logout, http.MethodGet},
		{"refresh", env.handler.RefreshTokens, http.MethodPost},
		{"change-password", env.handler.ChangePassword, http.MethodGet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			tc.handler(res, httptest.NewRequest(tc.method, "/api/auth/"+tc.name, nil))
			if res.Code != http.StatusMethodNotAllowed {
				t.Fatalf("got %d, want 405", res.Code)
			}
			if res.Header().Get("Allow") == "" {
				t.Fatal("Allow header not set")
			}
		})
	}
}
