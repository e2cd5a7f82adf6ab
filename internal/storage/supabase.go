package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// SupabaseOptions configures a SupabaseStore.
type SupabaseOptions struct {
	ProjectURL string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// SupabaseStore uploads audio into a Supabase Storage bucket over its HTTP
// API and hands out the bucket's public object URLs.
type SupabaseStore struct {
	projectURL string
	serviceKey string
	bucket     string
	httpClient *http.Client
	logger     infra.Logger
}

func NewSupabaseStore(opts SupabaseOptions) (*SupabaseStore, error) {
	if strings.TrimSpace(opts.ProjectURL) == "" || strings.TrimSpace(opts.ServiceKey) == "" {
		return nil, errors.New("storage: supabase url and service key are required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: supabase bucket is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &SupabaseStore{
		projectURL: strings.TrimRight(opts.ProjectURL, "/"),
		serviceKey: opts.ServiceKey,
		bucket:     opts.Bucket,
		httpClient: client,
		logger:     logger,
	}, nil
}

func (s *SupabaseStore) ProviderName() string { return "supabase" }

// UploadAudio upserts the object and returns its public URL. The bucket API
// carries no per-object metadata, so the tags only reach the upload log.
func (s *SupabaseStore) UploadAudio(ctx context.Context, storyID, filename string, data []byte, metadata map[string]string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.projectURL, url.PathEscape(s.bucket), url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: supabase upload: %w", domain.ErrStorageFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: supabase upload status %d: %s", domain.ErrStorageFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.logger.Info().
		Str("story_id", storyID).
		Str("user_id", metadata["user_id"]).
		Str("bucket", s.bucket).
		Str("object", filename).
		Int("bytes", len(data)).
		Msg("storage: audio uploaded")

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.projectURL, url.PathEscape(s.bucket), url.PathEscape(filename)), nil
}

// DeleteAudio removes the object; a 404 from the bucket is not an error.
func (s *SupabaseStore) DeleteAudio(ctx context.Context, storyID, filename string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.projectURL, url.PathEscape(s.bucket), url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("storage: create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: supabase delete: %w", domain.ErrStorageFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: supabase delete status %d: %s", domain.ErrStorageFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var _ AudioStore = (*SupabaseStore)(nil)
