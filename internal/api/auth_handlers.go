package api

import (
	"fmt"
	"net/http"

	"clipstream/internal/assets"
	"clipstream/internal/auth"
	"clipstream/internal/models"
	"clipstream/internal/storage"
)

const minPasswordLength = 8

// Register creates an account from a multipart form. The avatar file is
// mandatory; registration without a resolvable avatar object must not leave
// a record behind, so persistence runs inside the coordinator saga and a
// failed insert deletes whatever was uploaded.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	form, err := h.parseMultipartForm(r, "avatar", "coverImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer form.cleanup()

	username := form.field("username")
	email := form.field("email")
	displayName := form.field("fullName")
	password := form.field("password")
	if username == "" || email == "" || displayName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("username, email and fullName are required"))
		return
	}
	if len(password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, fmt.Errorf("password must be at least %d characters", minPasswordLength))
		return
	}
	avatar := form.file("avatar")
	if avatar == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: avatar file is required", assets.ErrMissingAsset))
		return
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	files := []assets.FileUpload{
		{Source: avatar.source(), Kind: models.AssetKindAvatar},
	}
	if cover := form.file("coverImage"); cover != nil {
		files = append(files, assets.FileUpload{
			Source:   cover.source(),
			Kind:     models.AssetKindCover,
			Optional: true,
		})
	}

	var user models.User
	_, err = h.Assets.CreateOwned(r.Context(), files, func(refs []models.AssetReference) error {
		params := storage.CreateUserParams{
			Username:     username,
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: passwordHash,
			Avatar:       refs[0],
		}
		if len(refs) > 1 {
			params.Cover = refs[1]
		}
		created, createErr := h.Store.CreateUser(r.Context(), params)
		if createErr != nil {
			return createErr
		}
		user = created
		return nil
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.Logger.Info("account registered", "userId", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req loginRequest) identifier() string {
	if req.Login != "" {
		return req.Login
	}
	if req.Username != "" {
		return req.Username
	}
	return req.Email
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	login := req.identifier()
	if login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("login and password are required"))
		return
	}

	user, pair, err := h.Sessions.Login(r.Context(), login, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, newAuthResponse(user, pair))
}

// Logout revokes the stored refresh token and clears both cookies. Logging
// out an account with no active session succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.Logout(r.Context(), user.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.ClearSessionCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshTokens rotates the presented refresh token into a fresh pair. A
// token that verifies but no longer matches the stored slot has been revoked
// or already rotated and is rejected.
func (h *Handler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	presented := extractRefreshToken(r)
	if presented == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("missing refresh token"))
		return
	}

	user, pair, err := h.Sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, newAuthResponse(user, pair))
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, fmt.Errorf("password must be at least %d characters", minPasswordLength))
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.OldPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := h.Store.SetUserPassword(r.Context(), user.ID, passwordHash); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
