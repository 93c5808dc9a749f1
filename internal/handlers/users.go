package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/internal/services"
	"github.com/tick42/quicksilver/internal/storage"
	pkghttp "github.com/tick42/quicksilver/pkg/http"
)

type UserHandler struct {
	users      *services.UserService
	auth       *services.AuthService
	extensions *services.ExtensionService
	assets     storage.AssetStore
	logger     *slog.Logger
}

func NewUserHandler(
	users *services.UserService,
	authService *services.AuthService,
	extensions *services.ExtensionService,
	assets storage.AssetStore,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:      users,
		auth:       authService,
		extensions: extensions,
		assets:     assets,
		logger:     logger,
	}
}

// Register handles POST /api/users/register. The body is either plain JSON
// or a multipart form with a "user" JSON part and an optional "image"
// upload for the profile picture.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest

	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if isMultipart {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			pkghttp.WriteBadRequest(w, "invalid multipart form")
			return
		}

		if err := json.Unmarshal([]byte(r.FormValue("user")), &req); err != nil {
			pkghttp.WriteBadRequest(w, "invalid user payload")
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	// Validate before touching storage, so a rejected request never
	// leaves an orphaned object behind.
	if err := checkStruct(req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	var profileImage *string
	if isMultipart {
		key, err := uploadFormFile(r, h.assets, "image", "profiles")
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		profileImage = key
	}

	user, err := h.users.Register(r.Context(), services.RegisterSpec{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		ProfileImage:    profileImage,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, newUserResponse(user))
}

// RegisterAdmin handles POST /api/users/auth/registerAdmin, admin-only.
func (h *UserHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := checkStruct(req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	user, err := h.users.RegisterAdmin(r.Context(), services.RegisterSpec{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, newUserResponse(user))
}

// Login handles POST /api/users/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := checkStruct(req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  newUserResponse(user),
	})
}

// GetProfile handles GET /api/users/{id}: the account plus the extensions
// it owns. Strangers only see the published ones.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	caller := auth.IdentityFromContext(r.Context())

	user, err := h.users.FindByID(r.Context(), id, caller)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	owned, err := h.extensions.FindByOwner(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	visible := owned
	if caller == nil || (caller.UserID != id && !caller.IsAdmin()) {
		visible = make([]*models.Extension, 0, len(owned))
		for _, ext := range owned {
			if ext.State == models.ExtensionStatePublished {
				visible = append(visible, ext)
			}
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, profileResponse{
		userResponse: newUserResponse(user),
		Extensions:   newExtensionResponses(visible),
	})
}

// SetState handles PATCH /api/users/auth/setState/{id}/{state}, admin-only.
func (h *UserHandler) SetState(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	user, err := h.users.SetState(r.Context(), id, chi.URLParam(r, "state"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// ChangePassword handles PATCH /api/users/auth/changePassword for the
// authenticated account.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := checkStruct(req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	err := h.users.ChangePassword(r.Context(), caller.UserID, services.ChangePasswordSpec{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAll handles GET /api/users/auth/all for the admin console.
func (h *UserHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	responses := make([]userResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, newUserResponse(user))
	}

	pkghttp.WriteJSON(w, http.StatusOK, responses)
}

// uploadFormFile stores an optional multipart file and returns its asset
// key, or nil when the field is absent.
func uploadFormFile(r *http.Request, assets storage.AssetStore, field, prefix string) (*string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, models.ErrBadRequest
	}
	defer file.Close()

	key := storage.NewAssetKey(prefix, header.Filename)
	contentType := header.Header.Get("Content-Type")
	if err := assets.Upload(r.Context(), key, file, contentType); err != nil {
		return nil, err
	}

	return &key, nil
}
