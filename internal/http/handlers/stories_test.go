package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

type fakeRepo struct {
	mu      sync.Mutex
	stories map[string]*domain.Story
	nextID  int
	count   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stories: map[string]*domain.Story{}}
}

func (r *fakeRepo) Create(_ context.Context, s *domain.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = fmt.Sprintf("story-%d", r.nextID)
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	r.stories[s.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) ClaimForGeneration(_ context.Context, id string) (*domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	if s.Terminal() || s.GenerationStartedAt != nil {
		return nil, domain.ErrInvalidStoryState
	}
	now := time.Now()
	s.GenerationStartedAt = &now
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, id string, upd domain.StoryUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stories[id]
	if !ok {
		return domain.ErrStoryNotFound
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.AudioURL != nil {
		s.AudioURL = upd.AudioURL
	}
	return nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Story
	for _, s := range r.stories {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stories[id]
	if !ok || s.UserID != userID {
		return domain.ErrStoryNotFound
	}
	delete(r.stories, id)
	return nil
}

func (r *fakeRepo) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, nil
}

type recordingRunner struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingRunner) Run(_ context.Context, storyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, storyID)
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	blob    *storage.AudioBlob
}

func (s *fakeStore) UploadAudio(context.Context, string, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (s *fakeStore) DeleteAudio(_ context.Context, storyID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storyID+"/"+filename)
	return nil
}

func (s *fakeStore) ProviderName() string { return "fake" }

func (s *fakeStore) GetAudio(_ context.Context, storyID string) (*storage.AudioBlob, error) {
	if s.blob == nil {
		return nil, domain.ErrStoryNotFound
	}
	return s.blob, nil
}

type testEnv struct {
	app    *App
	repo   *fakeRepo
	runner *recordingRunner
	store  *fakeStore
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:   newFakeRepo(),
		runner: &recordingRunner{},
		store:  &fakeStore{},
	}
	env.app = &App{
		Repo:    env.repo,
		Runner:  env.runner,
		Spawner: pipeline.NewSpawner(nil, time.Second),
		Store:   env.store,
		Logger:  zerolog.New(io.Discard),
		Cfg:     &infra.Config{MonthlyStoryQuota: 30},
	}
	r := chi.NewRouter()
	r.Post("/v1/stories", env.app.StoriesCreate)
	r.Get("/v1/stories", env.app.StoriesList)
	r.Get("/v1/stories/{id}", env.app.StoryGet)
	r.Delete("/v1/stories/{id}", env.app.StoryDelete)
	r.Post("/v1/stories/{id}/generate", env.app.StoryGenerate)
	r.Get("/v1/stories/{id}/audio", env.app.StoryAudio)
	env.router = r
	return env
}

func (e *testEnv) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func validRequest() domain.StoryRequest {
	return domain.StoryRequest{
		ChildName:   "Zosia",
		ChildAge:    5,
		StoryGenre:  "klasyczna_basn",
		StoryTone:   "relaksacyjny_usypiajacy",
		StoryLesson: "odwaga",
	}
}

func TestStoriesCreateAcceptsAndSpawns(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/stories", "user-1", validRequest())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", rec.Code, rec.Body)
	}

	var resp storyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "generating" {
		t.Fatalf("status = %q, want generating", resp.Status)
	}
	if resp.ID == "" {
		t.Fatal("response missing story id")
	}

	env.app.Spawner.Wait()
	if len(env.runner.ids) != 1 || env.runner.ids[0] != resp.ID {
		t.Fatalf("runner ids = %v, want [%s]", env.runner.ids, resp.ID)
	}
}

func TestStoriesCreateRequiresUserContext(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/v1/stories", "", validRequest())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestStoriesCreateValidatesForm(t *testing.T) {
	env := newTestEnv(t)
	req := validRequest()
	req.ChildAge = 17

	rec := env.do(http.MethodPost, "/v1/stories", "user-1", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "child_age") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestStoriesCreateEnforcesQuota(t *testing.T) {
	env := newTestEnv(t)
	env.repo.count = 30

	rec := env.do(http.MethodPost, "/v1/stories", "user-1", validRequest())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quota_exceeded") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestStoryGetHidesOtherUsersStories(t *testing.T) {
	env := newTestEnv(t)
	story := &domain.Story{UserID: "user-1", Request: validRequest(), Status: domain.StatusGenerating}
	_ = env.repo.Create(context.Background(), story)

	rec := env.do(http.MethodGet, "/v1/stories/"+story.ID, "user-2", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = env.do(http.MethodGet, "/v1/stories/"+story.ID, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStoryGenerateRejectsTerminalStory(t *testing.T) {
	env := newTestEnv(t)
	story := &domain.Story{UserID: "user-1", Request: validRequest(), Status: domain.StatusGenerating}
	_ = env.repo.Create(context.Background(), story)
	status := domain.StatusCompleted
	_ = env.repo.Update(context.Background(), story.ID, domain.StoryUpdate{Status: &status})

	rec := env.do(http.MethodPost, "/v1/stories/"+story.ID+"/generate", "user-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	env.app.Spawner.Wait()
	if len(env.runner.ids) != 0 {
		t.Fatalf("runner ids = %v, want none", env.runner.ids)
	}
}

func TestStoryGenerateRetriggersPending(t *testing.T) {
	env := newTestEnv(t)
	story := &domain.Story{UserID: "user-1", Request: validRequest(), Status: domain.StatusGenerating}
	_ = env.repo.Create(context.Background(), story)

	rec := env.do(http.MethodPost, "/v1/stories/"+story.ID+"/generate", "user-1", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	env.app.Spawner.Wait()
	if len(env.runner.ids) != 1 {
		t.Fatalf("runner ids = %v, want one", env.runner.ids)
	}
}

func TestStoryDeleteCleansUpAudio(t *testing.T) {
	env := newTestEnv(t)
	story := &domain.Story{UserID: "user-1", Request: validRequest(), Status: domain.StatusGenerating}
	_ = env.repo.Create(context.Background(), story)
	audioURL := "https://cdn.example.com/story-1-12345.wav"
	_ = env.repo.Update(context.Background(), story.ID, domain.StoryUpdate{AudioURL: &audioURL})

	rec := env.do(http.MethodDelete, "/v1/stories/"+story.ID, "user-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(env.store.deleted) != 1 || !strings.HasSuffix(env.store.deleted[0], "story-1-12345.wav") {
		t.Fatalf("deleted = %v", env.store.deleted)
	}
	if _, err := env.repo.GetByID(context.Background(), story.ID); err == nil {
		t.Fatal("story still present after delete")
	}
}

func TestStoryAudioStreamsBlob(t *testing.T) {
	env := newTestEnv(t)
	story := &domain.Story{UserID: "user-1", Request: validRequest(), Status: domain.StatusGenerating}
	_ = env.repo.Create(context.Background(), story)
	env.store.blob = &storage.AudioBlob{
		Filename:    "story-1.wav",
		ContentType: "audio/wav",
		Data:        []byte("RIFFdata"),
	}

	rec := env.do(http.MethodGet, "/v1/stories/"+story.ID+"/audio", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content-type = %q", ct)
	}
	if rec.Body.String() != "RIFFdata" {
		t.Fatalf("body = %q", rec.Body)
	}
}
