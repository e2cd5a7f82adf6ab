package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter assembles the API surface. lookup may be nil when no GeoIP
// database is configured.
func NewRouter(app *handlers.App, cfg *infra.Config, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/stories", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/", app.StoriesCreate)
		r.Get("/", app.StoriesList)
		r.Get("/{id}", app.StoryGet)
		r.Delete("/{id}", app.StoryDelete)
		r.Post("/{id}/generate", app.StoryGenerate)
		r.Get("/{id}/audio", app.StoryAudio)
	})

	// Filesystem-backed audio is served from the static route the store's
	// public URLs point at.
	if cfg.StorageProvider == infra.StorageFilesystem {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
