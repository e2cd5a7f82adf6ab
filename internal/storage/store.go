package storage

import (
	"context"
	"fmt"
	"net/http"

	"server/internal/infra"
)

// AudioStore persists generated story audio and serves back a URL the
// player can stream from. Implementations are chosen once at startup and
// injected into the pipeline.
type AudioStore interface {
	// UploadAudio stores the WAV bytes under the story's filename and
	// returns the public URL of the stored object. metadata tags the
	// artifact with the story and owning user; backends persist what
	// they can and ignore the rest.
	UploadAudio(ctx context.Context, storyID, filename string, data []byte, metadata map[string]string) (string, error)
	// DeleteAudio removes the stored object. Missing objects are not an
	// error; deletion is best effort cleanup.
	DeleteAudio(ctx context.Context, storyID, filename string) error
	ProviderName() string
}

// Options carries the configuration slice each backend needs. Only the
// fields for the selected provider are consulted.
type Options struct {
	Provider infra.StorageProvider

	// filesystem
	BasePath string
	BaseURL  string

	// supabase
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
	HTTPClient     *http.Client

	// database
	SQL           infra.SQLExecutor
	AudioBasePath string

	Logger *infra.Logger
}

// New builds the store for the configured provider.
func New(opts Options) (AudioStore, error) {
	switch opts.Provider {
	case infra.StorageFilesystem:
		return NewFileStore(opts.BasePath, opts.BaseURL)
	case infra.StorageSupabase:
		return NewSupabaseStore(SupabaseOptions{
			ProjectURL: opts.SupabaseURL,
			ServiceKey: opts.SupabaseKey,
			Bucket:     opts.SupabaseBucket,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		})
	case infra.StorageDatabase:
		return NewDBBlobStore(opts.SQL, opts.AudioBasePath)
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", opts.Provider)
	}
}
