package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/infra"
)

func TestFileStoreUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	url, err := store.UploadAudio(context.Background(), "story-1", "story-1-123.wav", []byte("RIFFdata"), nil)
	if err != nil {
		t.Fatalf("UploadAudio returned error: %v", err)
	}
	if url != "http://localhost:8080/static/audio/story-1-123.wav" {
		t.Fatalf("url = %q", url)
	}

	onDisk := filepath.Join(dir, "audio", "story-1-123.wav")
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Fatalf("stored data = %q", data)
	}

	if err := store.DeleteAudio(context.Background(), "story-1", "story-1-123.wav"); err != nil {
		t.Fatalf("DeleteAudio returned error: %v", err)
	}
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Fatal("file still present after delete")
	}

	// deleting again is not an error
	if err := store.DeleteAudio(context.Background(), "story-1", "story-1-123.wav"); err != nil {
		t.Fatalf("second delete returned error: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := store.UploadAudio(context.Background(), "s", "../../etc/passwd", []byte("x"), nil); err == nil {
		t.Fatal("expected error for traversal key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSupabaseStoreUpload(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotUpsert string
	var gotBody []byte
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotMethod = req.Method
		gotPath = req.URL.Path
		gotAuth = req.Header.Get("Authorization")
		gotUpsert = req.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(req.Body)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"Key":"ok"}`))}, nil
	})}

	store, err := NewSupabaseStore(SupabaseOptions{
		ProjectURL: "https://proj.supabase.co",
		ServiceKey: "service-role",
		Bucket:     "story-audio",
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewSupabaseStore returned error: %v", err)
	}

	url, err := store.UploadAudio(context.Background(), "story-1", "story-1-123.wav", []byte("RIFF"), map[string]string{"user_id": "user-1"})
	if err != nil {
		t.Fatalf("UploadAudio returned error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %q", gotMethod)
	}
	if gotPath != "/storage/v1/object/story-audio/story-1-123.wav" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-role" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Fatalf("x-upsert = %q", gotUpsert)
	}
	if string(gotBody) != "RIFF" {
		t.Fatalf("body = %q", gotBody)
	}
	if url != "https://proj.supabase.co/storage/v1/object/public/story-audio/story-1-123.wav" {
		t.Fatalf("url = %q", url)
	}
}

func TestSupabaseStoreDeleteIgnoresNotFound(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(`{"error":"not found"}`))}, nil
	})}
	store, err := NewSupabaseStore(SupabaseOptions{
		ProjectURL: "https://proj.supabase.co",
		ServiceKey: "service-role",
		Bucket:     "story-audio",
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewSupabaseStore returned error: %v", err)
	}
	if err := store.DeleteAudio(context.Background(), "story-1", "gone.wav"); err != nil {
		t.Fatalf("DeleteAudio returned error: %v", err)
	}
}

type fakeSQL struct {
	queryRowArgs []any
}

func (f *fakeSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeSQL) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.queryRowArgs = args
	return idRow{}
}

func (f *fakeSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type idRow struct{}

func (idRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if p, ok := dest[0].(*string); ok {
			*p = "blob-1"
		}
	}
	return nil
}

func TestDBBlobStorePersistsMetadataTags(t *testing.T) {
	sql := &fakeSQL{}
	store, err := NewDBBlobStore(sql, "")
	if err != nil {
		t.Fatalf("NewDBBlobStore returned error: %v", err)
	}

	url, err := store.UploadAudio(context.Background(), "story-1", "story-1-123.wav", []byte("RIFF"), map[string]string{
		"story_id": "story-1",
		"user_id":  "user-1",
	})
	if err != nil {
		t.Fatalf("UploadAudio returned error: %v", err)
	}
	if url != "/v1/stories/story-1/audio" {
		t.Fatalf("url = %q", url)
	}

	if len(sql.queryRowArgs) != 5 {
		t.Fatalf("args = %d, want 5", len(sql.queryRowArgs))
	}
	encoded, ok := sql.queryRowArgs[4].([]byte)
	if !ok {
		t.Fatalf("metadata arg type = %T", sql.queryRowArgs[4])
	}
	var meta map[string]any
	if err := json.Unmarshal(encoded, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta["user_id"] != "user-1" || meta["story_id"] != "story-1" {
		t.Fatalf("metadata = %v, want story and user tags", meta)
	}
	if meta["size_bytes"] != float64(4) {
		t.Fatalf("size_bytes = %v", meta["size_bytes"])
	}
}

func TestFactorySelectsProvider(t *testing.T) {
	store, err := New(Options{
		Provider: infra.StorageFilesystem,
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/static",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if store.ProviderName() != "filesystem" {
		t.Fatalf("provider = %q", store.ProviderName())
	}

	if _, err := New(Options{Provider: infra.StorageProvider("mega")}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
