package api

import (
	"errors"
	"net/http"

	"clipstream/internal/assets"
	"clipstream/internal/auth"
	"clipstream/internal/storage"
)

// classifyError maps service-layer sentinels onto an HTTP status and a
// machine-readable code. Anything unrecognized is an internal failure and
// its message is not echoed back.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, "token_revoked"
	case errors.Is(err, auth.ErrIdentityNotFound):
		return http.StatusUnauthorized, "account_not_found"
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, assets.ErrMissingAsset):
		return http.StatusBadRequest, "missing_asset"
	case errors.Is(err, assets.ErrUploadFailed):
		return http.StatusBadGateway, "upload_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "error", err)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
