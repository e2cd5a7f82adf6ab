package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// DBBlobStore keeps audio inside the database itself, one bytea row per
// story, streamed back out by the API's audio route. It trades object
// storage for a zero-dependency deployment.
type DBBlobStore struct {
	sql      infra.SQLExecutor
	basePath string
}

// NewDBBlobStore builds a store over the shared SQL runner. basePath is the
// public prefix of the audio streaming route; the default serves relative
// API paths.
func NewDBBlobStore(sql infra.SQLExecutor, basePath string) (*DBBlobStore, error) {
	if sql == nil {
		return nil, errors.New("storage: sql executor is required")
	}
	if basePath == "" {
		basePath = "/v1/stories"
	}
	return &DBBlobStore{
		sql:      sql,
		basePath: strings.TrimRight(basePath, "/"),
	}, nil
}

func (s *DBBlobStore) ProviderName() string { return "database" }

// UploadAudio upserts the story's blob row and returns the streaming URL.
// The caller's metadata tags (story and owning user) land in the jsonb
// column next to the size and content type.
func (s *DBBlobStore) UploadAudio(ctx context.Context, storyID, filename string, data []byte, metadata map[string]string) (string, error) {
	meta := map[string]any{
		"size_bytes":   len(data),
		"content_type": "audio/wav",
	}
	for k, v := range metadata {
		meta[k] = v
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("storage: marshal metadata: %w", err)
	}

	var id string
	row := s.sql.QueryRow(ctx, sqlinline.QInsertAudioBlob, storyID, filename, "audio/wav", data, encoded)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("%w: insert audio blob: %w", domain.ErrStorageFailure, err)
	}
	return fmt.Sprintf("%s/%s/audio", s.basePath, storyID), nil
}

// DeleteAudio removes the story's blob row if present.
func (s *DBBlobStore) DeleteAudio(ctx context.Context, storyID, filename string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteAudioBlobByStoryID, storyID); err != nil {
		return fmt.Errorf("%w: delete audio blob: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// AudioBlob is a stored audio object read back for streaming.
type AudioBlob struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GetAudio reads the story's blob for the streaming route.
func (s *DBBlobStore) GetAudio(ctx context.Context, storyID string) (*AudioBlob, error) {
	var blob AudioBlob
	row := s.sql.QueryRow(ctx, sqlinline.QGetAudioBlobByStoryID, storyID)
	if err := row.Scan(&blob.Filename, &blob.ContentType, &blob.Data); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrStoryNotFound
		}
		return nil, fmt.Errorf("%w: read audio blob: %w", domain.ErrStorageFailure, err)
	}
	return &blob, nil
}

var _ AudioStore = (*DBBlobStore)(nil)
