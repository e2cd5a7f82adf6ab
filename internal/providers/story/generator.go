package story

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
)

// Sampling and acceptance parameters for story generation. Output shorter
// than minStoryChars is rejected as a truncated or refused response.
const (
	minStoryChars   = 500
	maxOutputTokens = 4096
	temperature     = 0.9
	topP            = 0.95
	topK            = 40
)

// TextClient is the slice of the Gemini client the generator needs.
type TextClient interface {
	GenerateText(ctx context.Context, req genai.TextRequest) (string, error)
}

// Options configures a Generator.
type Options struct {
	Client        TextClient
	PrimaryModel  string
	FallbackModel string
	Retry         infra.RetryPolicy
	Logger        *infra.Logger
}

// Generator produces the story text. It tries the primary model with the
// retry policy; if the primary's attempt budget is exhausted on overload it
// switches to the fallback model once.
type Generator struct {
	client   TextClient
	primary  string
	fallback string
	retry    infra.RetryPolicy
	logger   infra.Logger
}

// Result is a generated story with the model that produced it.
type Result struct {
	Text  string
	Model string
}

func NewGenerator(opts Options) (*Generator, error) {
	if opts.Client == nil {
		return nil, errors.New("text client is required")
	}
	if opts.PrimaryModel == "" {
		return nil, errors.New("primary model is required")
	}

	retry := opts.Retry
	retry.Retryable = domain.IsRetryable

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Generator{
		client:   opts.Client,
		primary:  opts.PrimaryModel,
		fallback: opts.FallbackModel,
		retry:    retry,
		logger:   logger,
	}, nil
}

// Generate runs the model chain and returns the accepted story text.
func (g *Generator) Generate(ctx context.Context, req domain.StoryRequest) (*Result, error) {
	text, err := g.generateWithModel(ctx, g.primary, req)
	if err == nil {
		return &Result{Text: text, Model: g.primary}, nil
	}
	if g.fallback == "" || !errors.Is(err, domain.ErrServiceOverloaded) {
		return nil, err
	}

	g.logger.Warn().
		Str("primary_model", g.primary).
		Str("fallback_model", g.fallback).
		Msg("story: primary model overloaded, switching to fallback")

	text, err = g.generateWithModel(ctx, g.fallback, req)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Model: g.fallback}, nil
}

func (g *Generator) generateWithModel(ctx context.Context, model string, req domain.StoryRequest) (string, error) {
	system := BuildSystemPrompt(req.ChildAge)
	user := BuildUserPrompt(req)

	var text string
	err := g.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		g.logger.Info().
			Str("model", model).
			Int("attempt", attempt).
			Msg("story: generating")

		out, err := g.client.GenerateText(ctx, genai.TextRequest{
			Model:        model,
			SystemPrompt: system,
			UserPrompt:   user,
			Config: genai.GenerationConfig{
				MaxOutputTokens: maxOutputTokens,
				Temperature:     temperature,
				TopP:            topP,
				TopK:            topK,
			},
		})
		if err != nil {
			if genai.IsOverloaded(err) {
				return fmt.Errorf("%w: %w", domain.ErrServiceOverloaded, err)
			}
			return fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
		}
		if len(out) < minStoryChars {
			return fmt.Errorf("%w (%d chars)", domain.ErrStoryTooShort, len(out))
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}

	g.logger.Info().
		Str("model", model).
		Int("chars", len(text)).
		Msg("story: generated")
	return text, nil
}
