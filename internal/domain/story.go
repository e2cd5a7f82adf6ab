package domain

import "time"

// StoryStatus enumerates the lifecycle states of a story generation job.
// A record is created in StatusGenerating by the API layer; the pipeline is
// the only writer of the terminal states and never reverts a terminal record
// back to generating.
type StoryStatus string

const (
	StatusGenerating StoryStatus = "generating"
	StatusCompleted  StoryStatus = "completed"
	StatusFailed     StoryStatus = "failed"
)

// Age band boundaries used by the prompt builder.
const (
	MinChildAge = 1
	MaxChildAge = 12
)

// StoryRequest captures the personalization form a parent fills in. It is
// immutable once generation starts; optional fields are pointers so that an
// absent value never leaks an empty placeholder into the prompt.
type StoryRequest struct {
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
}

// Story is the persistent record of one generation job and its outcome.
type Story struct {
	ID      string
	UserID  string
	Request StoryRequest

	Status       StoryStatus
	StoryText    *string
	AudioURL     *string
	ErrorMessage *string
	AIModel      *string

	GenerationDurationMS *int64
	GenerationStartedAt  *time.Time
	CompletedAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the story has reached a final state.
func (s *Story) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Validate checks the request against the form constraints enforced by the
// storefront.
func (r StoryRequest) Validate() error {
	if r.ChildName == "" {
		return ErrInvalidRequest("child_name is required")
	}
	if r.ChildAge < MinChildAge || r.ChildAge > MaxChildAge {
		return ErrInvalidRequest("child_age must be between 1 and 12")
	}
	if r.StoryGenre == "" {
		return ErrInvalidRequest("story_genre is required")
	}
	if r.StoryTone == "" {
		return ErrInvalidRequest("story_tone is required")
	}
	if r.StoryLesson == "" {
		return ErrInvalidRequest("story_lesson is required")
	}
	return nil
}
