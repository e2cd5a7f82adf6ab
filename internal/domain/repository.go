package domain

import (
	"context"
	"time"
)

// StoryUpdate is a partial update of a story record. Nil fields are left
// untouched so the pipeline can persist partial progress (generated text
// before audio exists) without clobbering other columns.
type StoryUpdate struct {
	Status               *StoryStatus
	StoryText            *string
	AIModel              *string
	AudioURL             *string
	ErrorMessage         *string
	GenerationDurationMS *int64
	CompletedAt          *time.Time
}

// StoryRepository defines persistence for story records. The orchestrator is
// the exclusive writer of every transition after creation.
type StoryRepository interface {
	Create(ctx context.Context, story *Story) error
	GetByID(ctx context.Context, id string) (*Story, error)
	// ClaimForGeneration atomically marks a generating, unstarted story as
	// started and returns it. ErrInvalidStoryState is returned when the
	// record exists but is terminal or already claimed; ErrStoryNotFound
	// when it does not exist.
	ClaimForGeneration(ctx context.Context, id string) (*Story, error)
	Update(ctx context.Context, id string, upd StoryUpdate) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Story, error)
	Delete(ctx context.Context, id, userID string) error
	// CountCreatedSince supports the monthly quota read; plan limits
	// themselves live with the external billing collaborator.
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
}
