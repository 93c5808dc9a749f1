package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/internal/services"
	"github.com/tick42/quicksilver/internal/storage"
	pkghttp "github.com/tick42/quicksilver/pkg/http"
)

type ExtensionHandler struct {
	extensions *services.ExtensionService
	catalog    *services.CatalogService
	assets     storage.AssetStore
	logger     *slog.Logger
}

func NewExtensionHandler(
	extensions *services.ExtensionService,
	catalog *services.CatalogService,
	assets storage.AssetStore,
	logger *slog.Logger,
) *ExtensionHandler {
	return &ExtensionHandler{
		extensions: extensions,
		catalog:    catalog,
		assets:     assets,
		logger:     logger,
	}
}

// Create handles POST /api/extensions. The body is either plain JSON or a
// multipart form with an "extension" JSON part and optional "logo",
// "cover" and "file" uploads.
func (h *ExtensionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createExtensionRequest
	spec := services.CreateExtensionSpec{}

	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if isMultipart {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			pkghttp.WriteBadRequest(w, "invalid multipart form")
			return
		}

		if err := json.Unmarshal([]byte(r.FormValue("extension")), &req); err != nil {
			pkghttp.WriteBadRequest(w, "invalid extension payload")
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

	if isMultipart {
		for field, target := range map[string]**string{
			"logo":  &spec.Logo,
			"cover": &spec.Cover,
			"file":  &spec.File,
		} {
			key, err := uploadFormFile(r, h.assets, field, "extensions")
			if err != nil {
				respondError(w, h.logger, err)
				return
			}
			*target = key
		}
	}

	spec.Name = req.Name
	spec.Description = req.Description
	spec.Version = req.Version
	spec.GitHubLink = req.GithubLink

	ext, err := h.extensions.Create(r.Context(), spec, caller.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, newExtensionResponse(ext))
}

// Get handles GET /api/extensions/{id}.
func (h *ExtensionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	caller := auth.IdentityFromContext(r.Context())

	ext, err := h.extensions.FindByID(r.Context(), id, caller)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponse(ext))
}

// Update handles PATCH /api/extensions/{id}, a field-level merge. Like
// Create, the body is either plain JSON or a multipart form whose "logo",
// "cover" and "file" uploads replace the stored assets.
func (h *ExtensionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req updateExtensionRequest
	spec := services.UpdateExtensionSpec{}

	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if isMultipart {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			pkghttp.WriteBadRequest(w, "invalid multipart form")
			return
		}

		// The JSON part is optional on an assets-only update.
		if payload := r.FormValue("extension"); payload != "" {
			if err := json.Unmarshal([]byte(payload), &req); err != nil {
				pkghttp.WriteBadRequest(w, "invalid extension payload")
				return
			}
		}
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := checkStruct(req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if isMultipart {
		for field, target := range map[string]**string{
			"logo":  &spec.Logo,
			"cover": &spec.Cover,
			"file":  &spec.File,
		} {
			key, err := uploadFormFile(r, h.assets, field, "extensions")
			if err != nil {
				respondError(w, h.logger, err)
				return
			}
			*target = key
		}
	}

	spec.Name = req.Name
	spec.Description = req.Description
	spec.Version = req.Version
	spec.GitHubLink = req.GithubLink

	ext, err := h.extensions.Update(r.Context(), id, spec, caller)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponse(ext))
}

// Delete handles DELETE /api/extensions/{id}.
func (h *ExtensionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := h.extensions.Delete(r.Context(), id, caller); err != nil {
		respondError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func catalogQueryFromRequest(r *http.Request) services.CatalogQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))

	return services.CatalogQuery{
		Name:    q.Get("name"),
		OrderBy: q.Get("orderBy"),
		Page:    page,
		PerPage: perPage,
	}
}

// Filter handles GET /api/extensions/filter, the public paginated catalog.
func (h *ExtensionHandler) Filter(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.FindAll(r.Context(), catalogQueryFromRequest(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionPage(page))
}

// Featured handles GET /api/extensions/featured.
func (h *ExtensionHandler) Featured(w http.ResponseWriter, r *http.Request) {
	featured, err := h.catalog.FindFeatured(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponses(featured))
}

// Unpublished handles GET /api/extensions/unpublished, the admin approval
// queue.
func (h *ExtensionHandler) Unpublished(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.FindPending(r.Context(), catalogQueryFromRequest(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionPage(page))
}

// SetStatus handles PATCH /api/extensions/{id}/status/{state}, admin-only.
func (h *ExtensionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	ext, err := h.extensions.SetPublishedState(r.Context(), id, chi.URLParam(r, "state"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponse(ext))
}

// SetFeatured handles PATCH /api/extensions/{id}/featured/{state},
// admin-only. The state segment must be "true" or "false".
func (h *ExtensionHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	featured, err := strconv.ParseBool(chi.URLParam(r, "state"))
	if err != nil {
		respondError(w, h.logger, models.ErrInvalidState)
		return
	}

	ext, err := h.extensions.SetFeaturedState(r.Context(), id, featured)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponse(ext))
}

// Download handles POST /api/extensions/{id}/download: counts the download
// and returns the fresh record so the client can follow the file
// reference.
func (h *ExtensionHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	ext, err := h.extensions.RecordDownload(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newExtensionResponse(ext))
}
