package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

// GenerationRunner drives one story through the pipeline.
type GenerationRunner interface {
	Run(ctx context.Context, storyID string) error
}

// App bundles the dependencies the HTTP handlers need. Authentication is
// handled by the upstream gateway; handlers trust the X-User-ID header it
// injects.
type App struct {
	Repo    domain.StoryRepository
	Runner  GenerationRunner
	Spawner *pipeline.Spawner
	Store   storage.AudioStore
	Logger  infra.Logger
	Cfg     *infra.Config
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{
			"code":    slug,
			"message": message,
		},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}
