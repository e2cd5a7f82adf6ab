package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/providers/speech"
)

type storyResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	ChildName                 string  `json:"child_name"`
	ChildAge                  int     `json:"child_age"`
	StoryGenre                string  `json:"story_genre"`
	StoryTone                 string  `json:"story_tone"`
	StoryLesson               string  `json:"story_lesson"`
	SiblingsFriends           *string `json:"siblings_friends,omitempty"`
	PetMascot                 *string `json:"pet_mascot,omitempty"`
	FavoriteFoodPlace         *string `json:"favorite_food_place,omitempty"`
	CurrentEmotionalChallenge *string `json:"current_emotional_challenge,omitempty"`
	RequestDialogHumor        bool    `json:"request_dialog_humor"`

	StoryText            *string    `json:"story_text,omitempty"`
	AudioURL             *string    `json:"audio_url,omitempty"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	AIModel              *string    `json:"ai_model,omitempty"`
	GenerationDurationMS *int64     `json:"generation_duration_ms,omitempty"`
	EstimatedSeconds     int        `json:"estimated_duration_seconds,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toStoryResponse(s *domain.Story) storyResponse {
	resp := storyResponse{
		ID:                        s.ID,
		Status:                    string(s.Status),
		ChildName:                 s.Request.ChildName,
		ChildAge:                  s.Request.ChildAge,
		StoryGenre:                s.Request.StoryGenre,
		StoryTone:                 s.Request.StoryTone,
		StoryLesson:               s.Request.StoryLesson,
		SiblingsFriends:           s.Request.SiblingsFriends,
		PetMascot:                 s.Request.PetMascot,
		FavoriteFoodPlace:         s.Request.FavoriteFoodPlace,
		CurrentEmotionalChallenge: s.Request.CurrentEmotionalChallenge,
		RequestDialogHumor:        s.Request.RequestDialogHumor,
		StoryText:                 s.StoryText,
		AudioURL:                  s.AudioURL,
		ErrorMessage:              s.ErrorMessage,
		AIModel:                   s.AIModel,
		GenerationDurationMS:      s.GenerationDurationMS,
		CompletedAt:               s.CompletedAt,
		CreatedAt:                 s.CreatedAt,
		UpdatedAt:                 s.UpdatedAt,
	}
	if s.Status == domain.StatusCompleted && s.StoryText != nil {
		resp.EstimatedSeconds = speech.EstimateDuration(*s.StoryText)
	}
	return resp
}

// StoriesCreate validates the personalization form, persists the record in
// generating status, spawns the pipeline and answers 202 immediately.
func (a *App) StoriesCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req domain.StoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if quota := a.Cfg.MonthlyStoryQuota; quota > 0 {
		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		count, err := a.Repo.CountCreatedSince(r.Context(), userID, monthStart)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
			return
		}
		if count >= quota {
			a.error(w, http.StatusForbidden, "quota_exceeded", "monthly story quota exceeded")
			return
		}
	}

	story := &domain.Story{UserID: userID, Request: req, Status: domain.StatusGenerating}
	if err := a.Repo.Create(r.Context(), story); err != nil {
		a.Logger.Error().Err(err).Msg("stories: create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create story")
		return
	}

	a.spawnGeneration(story.ID)
	a.json(w, http.StatusAccepted, toStoryResponse(story))
}

// StoryGenerate re-triggers generation for an existing record, for clients
// recovering from a lost response. The claim guard makes duplicates safe.
func (a *App) StoryGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	story, ok := a.loadStoryForUser(w, r, userID)
	if !ok {
		return
	}
	if story.Terminal() {
		a.error(w, http.StatusConflict, "invalid_state", "story already reached a terminal state")
		return
	}

	a.spawnGeneration(story.ID)
	a.json(w, http.StatusAccepted, map[string]string{
		"id":     story.ID,
		"status": string(domain.StatusGenerating),
	})
}

func (a *App) StoryGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	story, ok := a.loadStoryForUser(w, r, userID)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toStoryResponse(story))
}

func (a *App) StoriesList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	stories, err := a.Repo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("stories: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list stories")
		return
	}

	items := make([]storyResponse, 0, len(stories))
	for i := range stories {
		items = append(items, toStoryResponse(&stories[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// StoryDelete removes the record and, best effort, its stored audio.
func (a *App) StoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	story, ok := a.loadStoryForUser(w, r, userID)
	if !ok {
		return
	}

	if story.AudioURL != nil && a.Store != nil {
		if err := a.Store.DeleteAudio(r.Context(), story.ID, audioFilename(*story.AudioURL)); err != nil {
			a.Logger.Warn().Err(err).Str("story_id", story.ID).Msg("stories: audio cleanup failed")
		}
	}

	if err := a.Repo.Delete(r.Context(), story.ID, userID); err != nil {
		if errors.Is(err, domain.ErrStoryNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "story not found")
			return
		}
		a.Logger.Error().Err(err).Str("story_id", story.ID).Msg("stories: delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete story")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) loadStoryForUser(w http.ResponseWriter, r *http.Request, userID string) (*domain.Story, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "story id required")
		return nil, false
	}

	story, err := a.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrStoryNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "story not found")
			return nil, false
		}
		a.Logger.Error().Err(err).Str("story_id", id).Msg("stories: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load story")
		return nil, false
	}
	if story.UserID != userID {
		// ownership mismatches are indistinguishable from absence
		a.error(w, http.StatusNotFound, "not_found", "story not found")
		return nil, false
	}
	return story, true
}

func (a *App) spawnGeneration(storyID string) {
	a.Spawner.Spawn("story-generation", storyID, func(ctx context.Context) error {
		err := a.Runner.Run(ctx, storyID)
		if errors.Is(err, domain.ErrInvalidStoryState) {
			// duplicate trigger lost the claim; the winning run owns the record
			return nil
		}
		return err
	})
}

// audioFilename extracts the stored object name from a public audio URL.
func audioFilename(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return path.Base(audioURL)
	}
	return path.Base(u.Path)
}
