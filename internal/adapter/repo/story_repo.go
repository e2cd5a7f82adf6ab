package repo

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// StoryRepo implements domain.StoryRepository over the shared SQL runner.
type StoryRepo struct {
	sql infra.SQLExecutor
}

func NewStoryRepo(sql infra.SQLExecutor) *StoryRepo {
	return &StoryRepo{sql: sql}
}

// Create inserts a new story in generating status and fills in the
// database-assigned id and timestamps.
func (r *StoryRepo) Create(ctx context.Context, story *domain.Story) error {
	req := story.Request
	row := r.sql.QueryRow(ctx, sqlinline.QInsertStory,
		story.UserID,
		req.ChildName,
		req.ChildAge,
		req.StoryGenre,
		req.StoryTone,
		req.StoryLesson,
		req.SiblingsFriends,
		req.PetMascot,
		req.FavoriteFoodPlace,
		req.CurrentEmotionalChallenge,
		req.RequestDialogHumor,
	)
	if err := row.Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt); err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	story.Status = domain.StatusGenerating
	return nil
}

func (r *StoryRepo) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QGetStoryByID, id)
	story, err := scanStory(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrStoryNotFound
		}
		return nil, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

// ClaimForGeneration atomically marks a generating, unstarted story as
// started. The lookup runs first so a missing record and a lost race
// surface as distinct errors; terminal records are never written to.
func (r *StoryRepo) ClaimForGeneration(ctx context.Context, id string) (*domain.Story, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Terminal() || existing.GenerationStartedAt != nil {
		return nil, domain.ErrInvalidStoryState
	}

	row := r.sql.QueryRow(ctx, sqlinline.QClaimStory, id)
	story, err := scanStory(row)
	if err != nil {
		if infra.IsNoRows(err) {
			// another run claimed it between the lookup and the update
			return nil, domain.ErrInvalidStoryState
		}
		return nil, fmt.Errorf("claim story: %w", err)
	}
	return story, nil
}

func (r *StoryRepo) Update(ctx context.Context, id string, upd domain.StoryUpdate) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateStory,
		id,
		upd.Status,
		upd.StoryText,
		upd.AIModel,
		upd.AudioURL,
		upd.ErrorMessage,
		upd.GenerationDurationMS,
		upd.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

func (r *StoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.sql.Query(ctx, sqlinline.QListStoriesByUser, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

func (r *StoryRepo) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteStory, id, userID)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

func (r *StoryRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	row := r.sql.QueryRow(ctx, sqlinline.QCountStoriesSince, userID, since)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count stories: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStory(row scannable) (*domain.Story, error) {
	var s domain.Story
	var status string
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Request.ChildName,
		&s.Request.ChildAge,
		&s.Request.StoryGenre,
		&s.Request.StoryTone,
		&s.Request.StoryLesson,
		&s.Request.SiblingsFriends,
		&s.Request.PetMascot,
		&s.Request.FavoriteFoodPlace,
		&s.Request.CurrentEmotionalChallenge,
		&s.Request.RequestDialogHumor,
		&status,
		&s.StoryText,
		&s.AudioURL,
		&s.ErrorMessage,
		&s.AIModel,
		&s.GenerationDurationMS,
		&s.GenerationStartedAt,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.StoryStatus(status)
	return &s, nil
}

var _ domain.StoryRepository = (*StoryRepo)(nil)
