package api

import (
	"context"
	"fmt"
	"net/http"

	"clipstream/internal/models"
	"clipstream/internal/storage"
)

type updateUserRequest struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"fullName"`
}

// Me serves the authenticated account: GET returns it, PATCH updates the
// mutable detail fields.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newUserResponse(user))
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Username == nil && req.DisplayName == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("nothing to update"))
			return
		}
		updated, err := h.Store.UpdateUserDetails(r.Context(), user.ID, storage.UserDetailsUpdate{
			Username:    req.Username,
			DisplayName: req.DisplayName,
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(updated))
	default:
		methodNotAllowed(w, r, "GET, PATCH")
	}
}

// UpdateAvatar swaps the account avatar. The new object is uploaded first,
// the record updated, and only then is the previous object deleted, so a
// failure at any step never leaves the record pointing at nothing.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceUserAsset(w, r, "avatar", models.AssetKindAvatar,
		func(user models.User) models.AssetReference { return user.Avatar },
		h.Store.SetUserAvatar,
	)
}

// UpdateCoverImage swaps the profile cover with the same replacement saga.
func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceUserAsset(w, r, "coverImage", models.AssetKindCover,
		func(user models.User) models.AssetReference { return user.Cover },
		h.Store.SetUserCover,
	)
}

func (h *Handler) replaceUserAsset(
	w http.ResponseWriter,
	r *http.Request,
	fieldName string,
	kind models.AssetKind,
	current func(models.User) models.AssetReference,
	update func(ctx context.Context, id string, ref models.AssetReference) (models.User, error),
) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	form, err := h.parseMultipartForm(r, fieldName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer form.cleanup()

	media := form.file(fieldName)
	if media == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s file is required", fieldName))
		return
	}

	var updated models.User
	_, err = h.Assets.Replace(r.Context(), current(user), media.source(), kind,
		func(ref models.AssetReference) error {
			result, updateErr := update(r.Context(), user.ID, ref)
			if updateErr != nil {
				return updateErr
			}
			updated = result
			return nil
		})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}
