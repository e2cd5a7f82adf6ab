package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// defaultRunTimeout bounds one background generation run. Text plus chunked
// synthesis for a full-length story stays well under this.
const defaultRunTimeout = 10 * time.Minute

// Spawner supervises fire-and-forget generation runs. Every run gets its
// own bounded context, panics are recovered, and errors end up in the log
// instead of vanishing with the goroutine.
type Spawner struct {
	logger  infra.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewSpawner(logger *infra.Logger, timeout time.Duration) *Spawner {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Spawner{logger: l, timeout: timeout}
}

// Spawn launches fn in the background. The HTTP handler that called it has
// already responded; outcomes are observable only through the log and the
// story record.
func (s *Spawner) Spawn(name, storyID string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Interface("panic", r).
					Str("task", name).
					Str("story_id", storyID).
					Msg("spawner: task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Error().
				Err(err).
				Str("task", name).
				Str("story_id", storyID).
				Msg("spawner: task failed")
			return
		}
		s.logger.Debug().
			Str("task", name).
			Str("story_id", storyID).
			Msg("spawner: task finished")
	}()
}

// Wait blocks until every spawned task has finished. Called on shutdown so
// in-flight generations can reach a terminal state.
func (s *Spawner) Wait() {
	s.wg.Wait()
}
