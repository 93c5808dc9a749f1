package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/config"
	"github.com/tick42/quicksilver/internal/database"
	"github.com/tick42/quicksilver/internal/handlers"
	"github.com/tick42/quicksilver/internal/middleware"
	"github.com/tick42/quicksilver/internal/models"
	pkghttp "github.com/tick42/quicksilver/pkg/http"
)

type Dependencies struct {
	Config           *config.Config
	DB               *database.DB
	Guard            *auth.Guard
	UserHandler      *handlers.UserHandler
	ExtensionHandler *handlers.ExtensionHandler
	Logger           *slog.Logger
}

// NewRouter assembles the HTTP surface: ambient middleware, the public
// catalog reads, and the role-gated account and extension mutations.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.NewCORSConfig(deps.Config.Server.AllowedOrigins)))
	r.Use(middleware.RateLimitByIP(300, time.Minute))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.HealthCheck(req.Context()); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.With(middleware.LoginRateLimit()).Post("/register", deps.UserHandler.Register)
		r.With(middleware.LoginRateLimit()).Post("/login", deps.UserHandler.Login)

		r.With(auth.Optional(deps.Guard)).Get("/{id}", deps.UserHandler.GetProfile)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.Required(deps.Guard, models.RoleUser, models.RoleAdmin))
				r.Patch("/changePassword", deps.UserHandler.ChangePassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Required(deps.Guard, models.RoleAdmin))
				r.Post("/registerAdmin", deps.UserHandler.RegisterAdmin)
				r.Patch("/setState/{id}/{state}", deps.UserHandler.SetState)
				r.Get("/all", deps.UserHandler.ListAll)
			})
		})
	})

	r.Route("/api/extensions", func(r chi.Router) {
		r.Get("/filter", deps.ExtensionHandler.Filter)
		r.Get("/featured", deps.ExtensionHandler.Featured)
		r.With(auth.Optional(deps.Guard)).Get("/{id}", deps.ExtensionHandler.Get)
		r.Post("/{id}/download", deps.ExtensionHandler.Download)

		r.Group(func(r chi.Router) {
			r.Use(auth.Required(deps.Guard, models.RoleUser, models.RoleAdmin))
			r.Post("/", deps.ExtensionHandler.Create)
			r.Patch("/{id}", deps.ExtensionHandler.Update)
			r.Delete("/{id}", deps.ExtensionHandler.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Required(deps.Guard, models.RoleAdmin))
			r.Get("/unpublished", deps.ExtensionHandler.Unpublished)
			r.Patch("/{id}/status/{state}", deps.ExtensionHandler.SetStatus)
			r.Patch("/{id}/featured/{state}", deps.ExtensionHandler.SetFeatured)
		})
	})

	return r
}
