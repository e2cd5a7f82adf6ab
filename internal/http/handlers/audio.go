package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/storage"
)

// audioReader is implemented by stores that keep the bytes themselves (the
// database blob variant). Object-store backends serve audio by URL instead.
type audioReader interface {
	GetAudio(ctx context.Context, storyID string) (*storage.AudioBlob, error)
}

// StoryAudio streams stored audio for database-backed storage.
func (a *App) StoryAudio(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	story, ok := a.loadStoryForUser(w, r, userID)
	if !ok {
		return
	}

	reader, ok := a.Store.(audioReader)
	if !ok {
		if story.AudioURL != nil {
			http.Redirect(w, r, *story.AudioURL, http.StatusTemporaryRedirect)
			return
		}
		a.error(w, http.StatusNotFound, "not_found", "audio not available")
		return
	}

	blob, err := reader.GetAudio(r.Context(), story.ID)
	if err != nil {
		if errors.Is(err, domain.ErrStoryNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "audio not available")
			return
		}
		a.Logger.Error().Err(err).Str("story_id", story.ID).Msg("audio: read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read audio")
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(blob.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", blob.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
