package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/notify"
	"server/internal/providers/speech"
	"server/internal/providers/story"
	"server/internal/storage"
)

// TextGenerator produces the story text and reports which model made it.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.StoryRequest) (*story.Result, error)
}

// AudioSynthesizer turns story text into a single WAV file.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Options wires an Orchestrator.
type Options struct {
	Repo        domain.StoryRepository
	Generator   TextGenerator
	Synthesizer AudioSynthesizer
	Store       storage.AudioStore
	Notifier    notify.Notifier
	Logger      *infra.Logger
	Now         func() time.Time
}

// Orchestrator drives one story through text generation, speech synthesis,
// artifact upload and the status state machine. It is the only writer of
// the completed and failed states.
type Orchestrator struct {
	repo     domain.StoryRepository
	gen      TextGenerator
	synth    AudioSynthesizer
	store    storage.AudioStore
	notifier notify.Notifier
	logger   infra.Logger
	now      func() time.Time
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Repo == nil || opts.Generator == nil || opts.Synthesizer == nil || opts.Store == nil {
		return nil, fmt.Errorf("pipeline: repo, generator, synthesizer and store are required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		repo:     opts.Repo,
		gen:      opts.Generator,
		synth:    opts.Synthesizer,
		store:    opts.Store,
		notifier: notifier,
		logger:   logger,
		now:      now,
	}, nil
}

// Run processes one story end to end. Claim errors (missing record, already
// terminal, lost race) return without touching the record; any later error
// lands in exactly one failed-state write plus a best-effort admin alert,
// and is returned to the caller unchanged.
func (o *Orchestrator) Run(ctx context.Context, storyID string) error {
	start := o.now()

	st, err := o.repo.ClaimForGeneration(ctx, storyID)
	if err != nil {
		o.logger.Warn().Err(err).Str("story_id", storyID).Msg("pipeline: claim rejected")
		return err
	}

	o.logger.Info().
		Str("story_id", st.ID).
		Str("child_name", st.Request.ChildName).
		Int("child_age", st.Request.ChildAge).
		Msg("pipeline: story claimed")

	if err := o.generate(ctx, st, start); err != nil {
		o.fail(ctx, st, err)
		return err
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, st *domain.Story, start time.Time) error {
	res, err := o.gen.Generate(ctx, st.Request)
	if err != nil {
		return err
	}
	o.logger.Info().
		Str("story_id", st.ID).
		Str("model", res.Model).
		Int("chars", len(res.Text)).
		Msg("pipeline: text generated")

	// The text is persisted before synthesis so a later failure never
	// loses a finished story.
	if err := o.repo.Update(ctx, st.ID, domain.StoryUpdate{
		StoryText: &res.Text,
		AIModel:   &res.Model,
	}); err != nil {
		return err
	}

	audio, err := o.synth.Synthesize(ctx, res.Text)
	if err != nil {
		return err
	}
	o.logger.Info().
		Str("story_id", st.ID).
		Int("bytes", len(audio)).
		Int("est_seconds", speech.EstimateDuration(res.Text)).
		Msg("pipeline: audio synthesized")

	filename := fmt.Sprintf("story-%s-%d.wav", st.ID, o.now().UnixMilli())
	metadata := map[string]string{
		"story_id": st.ID,
		"user_id":  st.UserID,
	}
	audioURL, err := o.store.UploadAudio(ctx, st.ID, filename, audio, metadata)
	if err != nil {
		return err
	}
	o.logger.Info().
		Str("story_id", st.ID).
		Str("provider", o.store.ProviderName()).
		Str("audio_url", audioURL).
		Msg("pipeline: audio uploaded")

	completedAt := o.now()
	duration := completedAt.Sub(start).Milliseconds()
	status := domain.StatusCompleted
	if err := o.repo.Update(ctx, st.ID, domain.StoryUpdate{
		Status:               &status,
		AudioURL:             &audioURL,
		GenerationDurationMS: &duration,
		CompletedAt:          &completedAt,
	}); err != nil {
		return err
	}

	o.logger.Info().
		Str("story_id", st.ID).
		Int64("duration_ms", duration).
		Msg("pipeline: story completed")

	o.notifier.SendSuccessNotification(ctx, st.ID, duration)
	return nil
}

// failWriteTimeout bounds the terminal failed-state write and alert. They
// run on a context detached from the run itself: when the run died of a
// timeout or cancellation, the record must still reach a terminal state.
const failWriteTimeout = 30 * time.Second

// fail records the terminal failed state and alerts the admin. Both writes
// are best effort: the original error is what the caller sees.
func (o *Orchestrator) fail(ctx context.Context, st *domain.Story, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	o.logger.Error().Err(cause).Str("story_id", st.ID).Msg("pipeline: story failed")

	completedAt := o.now()
	status := domain.StatusFailed
	msg := cause.Error()
	if err := o.repo.Update(ctx, st.ID, domain.StoryUpdate{
		Status:       &status,
		ErrorMessage: &msg,
		CompletedAt:  &completedAt,
	}); err != nil {
		o.logger.Error().Err(err).Str("story_id", st.ID).Msg("pipeline: failed-state write failed")
	}

	o.notifier.SendAdminAlert(ctx, notify.AdminAlert{
		Subject: "Story Generation Failed: " + st.ID,
		Body: fmt.Sprintf(
			"Story Generation Error Report\n==============================\n\nStory ID: %s\nUser ID: %s\nChild Name: %s\nChild Age: %d\nTime: %s\n\nError Message:\n%s\n\nPlease check the application logs for more details.",
			st.ID, st.UserID, st.Request.ChildName, st.Request.ChildAge,
			completedAt.UTC().Format(time.RFC3339), msg,
		),
		StoryID: st.ID,
		UserID:  st.UserID,
	})
}
