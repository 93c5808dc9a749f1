package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenauth "github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/internal/services"
)

func newTestExtensionHandler(extRepo *services.MockExtensionRepository) (*ExtensionHandler, *stubAssetStore) {
	logger := slog.Default()
	assets := &stubAssetStore{}

	return NewExtensionHandler(
		services.NewExtensionService(extRepo, assets, logger),
		services.NewCatalogService(extRepo, logger),
		assets,
		logger,
	), assets
}

func extensionRouter(handler *ExtensionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/extensions", handler.Create)
	r.Get("/api/extensions/filter", handler.Filter)
	r.Get("/api/extensions/featured", handler.Featured)
	r.Get("/api/extensions/unpublished", handler.Unpublished)
	r.Get("/api/extensions/{id}", handler.Get)
	r.Patch("/api/extensions/{id}", handler.Update)
	r.Delete("/api/extensions/{id}", handler.Delete)
	r.Patch("/api/extensions/{id}/status/{state}", handler.SetStatus)
	r.Patch("/api/extensions/{id}/featured/{state}", handler.SetFeatured)
	r.Post("/api/extensions/{id}/download", handler.Download)
	return r
}

func doRoute(t *testing.T, handler *ExtensionHandler, method, target string, body any, identity *models.Identity) *httptest.ResponseRecorder {
	t.Helper()
	rec := doRouteJSON(extensionRouter(handler), method, target, body, identity)
	return rec
}

func doRouteJSON(router http.Handler, method, target string, body any, identity *models.Identity) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		encoded, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(encoded))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	if identity != nil {
		req = req.WithContext(tokenauth.ContextWithIdentity(req.Context(), identity))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// doMultipartRoute sends a multipart form with one JSON field and any number
// of file parts.
func doMultipartRoute(router http.Handler, method, target, jsonField, payload string, files map[string]string, identity *models.Identity) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != "" {
		_ = mw.WriteField(jsonField, payload)
	}
	for field, filename := range files {
		part, _ := mw.CreateFormFile(field, filename)
		_, _ = part.Write([]byte("file-bytes"))
	}
	_ = mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if identity != nil {
		req = req.WithContext(tokenauth.ContextWithIdentity(req.Context(), identity))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestExtensionHandler_Create(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		CreateFunc: func(ctx context.Context, ext *models.Extension) (*models.Extension, error) {
			ext.ID = 42
			return ext, nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodPost, "/api/extensions", map[string]string{
		"name":        "clipboard-sync",
		"version":     "1.0.0",
		"github_link": "https://github.com/tick42/clipboard-sync",
	}, asIdentity(7, models.RoleUser))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp extensionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ExtensionStateUnpublished, resp.State)
	assert.Equal(t, int64(7), resp.OwnerID)
}

func TestExtensionHandler_Create_Unauthenticated(t *testing.T) {
	handler, _ := newTestExtensionHandler(&services.MockExtensionRepository{})

	rec := doRoute(t, handler, http.MethodPost, "/api/extensions", map[string]string{
		"name":    "clipboard-sync",
		"version": "1.0.0",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtensionHandler_Create_InvalidGithubLink(t *testing.T) {
	handler, _ := newTestExtensionHandler(&services.MockExtensionRepository{})

	rec := doRoute(t, handler, http.MethodPost, "/api/extensions", map[string]string{
		"name":        "clipboard-sync",
		"version":     "1.0.0",
		"github_link": "not a url",
	}, asIdentity(7, models.RoleUser))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
}

func TestExtensionHandler_Create_Multipart(t *testing.T) {
	var created *models.Extension
	extRepo := &services.MockExtensionRepository{
		CreateFunc: func(ctx context.Context, ext *models.Extension) (*models.Extension, error) {
			ext.ID = 42
			created = ext
			return ext, nil
		},
	}
	handler, assets := newTestExtensionHandler(extRepo)

	rec := doMultipartRoute(extensionRouter(handler), http.MethodPost, "/api/extensions",
		"extension", `{"name":"clipboard-sync","version":"1.0.0"}`,
		map[string]string{"logo": "logo.png", "file": "bundle.zip"},
		asIdentity(7, models.RoleUser))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, assets.uploaded, 2)
	require.NotNil(t, created.Logo)
	require.NotNil(t, created.File)
	assert.Contains(t, assets.uploaded, *created.Logo)
	assert.Contains(t, assets.uploaded, *created.File)
}

func TestExtensionHandler_Create_ValidationFailureUploadsNothing(t *testing.T) {
	handler, assets := newTestExtensionHandler(&services.MockExtensionRepository{})

	// Version is missing, so the request is rejected. The logo part must
	// not have reached storage.
	rec := doMultipartRoute(extensionRouter(handler), http.MethodPost, "/api/extensions",
		"extension", `{"name":"clipboard-sync"}`,
		map[string]string{"logo": "logo.png"},
		asIdentity(7, models.RoleUser))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, assets.uploaded)
}

func TestExtensionHandler_Update_MultipartReplacesAssets(t *testing.T) {
	var updated *models.Extension
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return services.NewTestExtension(42, 7, "clipboard-sync"), nil
		},
		UpdateFunc: func(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error) {
			updated = ext
			return ext, nil
		},
	}
	handler, assets := newTestExtensionHandler(extRepo)

	rec := doMultipartRoute(extensionRouter(handler), http.MethodPatch, "/api/extensions/42",
		"extension", `{"name":"renamed"}`,
		map[string]string{"logo": "logo-v2.png"},
		asIdentity(7, models.RoleUser))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, assets.uploaded, 1)
	assert.Equal(t, "renamed", updated.Name)
	require.NotNil(t, updated.Logo)
	assert.Equal(t, assets.uploaded[0], *updated.Logo)
}

func TestExtensionHandler_Update_MultipartAssetsOnly(t *testing.T) {
	var updated *models.Extension
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return services.NewTestExtension(42, 7, "clipboard-sync"), nil
		},
		UpdateFunc: func(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error) {
			updated = ext
			return ext, nil
		},
	}
	handler, assets := newTestExtensionHandler(extRepo)

	rec := doMultipartRoute(extensionRouter(handler), http.MethodPatch, "/api/extensions/42",
		"extension", "",
		map[string]string{"cover": "cover.png"},
		asIdentity(7, models.RoleUser))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, assets.uploaded, 1)
	assert.Equal(t, "clipboard-sync", updated.Name)
	require.NotNil(t, updated.Cover)
}

func TestExtensionHandler_Update_ValidationFailureUploadsNothing(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return services.NewTestExtension(42, 7, "clipboard-sync"), nil
		},
	}
	handler, assets := newTestExtensionHandler(extRepo)

	rec := doMultipartRoute(extensionRouter(handler), http.MethodPatch, "/api/extensions/42",
		"extension", `{"github_link":"not a url"}`,
		map[string]string{"logo": "logo.png"},
		asIdentity(7, models.RoleUser))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, assets.uploaded)
}

func TestExtensionHandler_Update_StrangerForbidden(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return services.NewTestExtension(42, 7, "clipboard-sync"), nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodPatch, "/api/extensions/42", map[string]string{
		"name": "hijacked",
	}, asIdentity(8, models.RoleUser))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExtensionHandler_Delete_NotFound(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return nil, models.ErrNotFound
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodDelete, "/api/extensions/42", nil, asIdentity(7, models.RoleUser))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtensionHandler_Get_UnpublishedHiddenFromAnonymous(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return services.NewTestExtension(42, 7, "clipboard-sync"), nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodGet, "/api/extensions/42", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtensionHandler_Filter(t *testing.T) {
	published := services.NewTestExtension(1, 7, "clipboard-sync")
	published.State = models.ExtensionStatePublished
	extRepo := &services.MockExtensionRepository{
		ListFunc: func(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, error) {
			return []*models.Extension{published}, 11, nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodGet, "/api/extensions/filter?name=clip&orderBy=downloads&page=2&perPage=5", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var page models.PageResult[extensionResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 11, page.TotalResults)
	require.Len(t, page.Items, 1)
}

func TestExtensionHandler_Filter_UnrecognizedOrderBy(t *testing.T) {
	handler, _ := newTestExtensionHandler(&services.MockExtensionRepository{})

	rec := doRoute(t, handler, http.MethodGet, "/api/extensions/filter?orderBy=popularity", nil, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
}

func TestExtensionHandler_SetStatus(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		SetPublishedStateFunc: func(ctx context.Context, id int64, state string) (*models.Extension, error) {
			ext := services.NewTestExtension(id, 7, "clipboard-sync")
			ext.State = state
			return ext, nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodPatch, "/api/extensions/42/status/PUBLISHED", nil, asIdentity(1, models.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp extensionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ExtensionStatePublished, resp.State)
}

func TestExtensionHandler_SetFeatured_BadSegment(t *testing.T) {
	handler, _ := newTestExtensionHandler(&services.MockExtensionRepository{})

	rec := doRoute(t, handler, http.MethodPatch, "/api/extensions/42/featured/maybe", nil, asIdentity(1, models.RoleAdmin))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtensionHandler_SetFeatured_UnpublishedRejected(t *testing.T) {
	extRepo := &services.MockExtensionRepository{
		SetFeaturedFunc: func(ctx context.Context, id int64, featured bool) (*models.Extension, error) {
			return nil, models.ErrInvalidState
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodPatch, "/api/extensions/42/featured/true", nil, asIdentity(1, models.RoleAdmin))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtensionHandler_Download(t *testing.T) {
	ext := services.NewTestExtension(42, 7, "clipboard-sync")
	ext.State = models.ExtensionStatePublished
	extRepo := &services.MockExtensionRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			return ext, nil
		},
		IncrementDownloadsFunc: func(ctx context.Context, id int64) (*models.Extension, error) {
			ext.Downloads++
			return ext, nil
		},
	}
	handler, _ := newTestExtensionHandler(extRepo)

	rec := doRoute(t, handler, http.MethodPost, "/api/extensions/42/download", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp extensionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Downloads)
}
