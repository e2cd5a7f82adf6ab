package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
)

const (
	// The model accepts roughly 5000 bytes per request; 2000 keeps a wide
	// safety margin for the styled narrator prefix.
	maxChunkBytes = 2000

	minTextChars = 100

	// Narration pace of the storyteller voice.
	wordsPerMinute = 110
)

// narratorInstruction steers the voice toward a calm bedtime storyteller.
// It is prepended to every chunk sent to the model.
const narratorInstruction = "Przeczytaj tę bajkę głosem profesjonalnego lektora bajek dla dzieci - ciepło, spokojnie, z odpowiednią melodią i emocją. Czytaj jak rodzic czytający dziecku bajkę na dobranoc:\n\n"

// SpeechClient is the slice of the Gemini client the synthesizer needs.
type SpeechClient interface {
	SynthesizeSpeech(ctx context.Context, req genai.SpeechRequest) ([]byte, error)
}

// Options configures a Synthesizer.
type Options struct {
	Client SpeechClient
	Model  string
	Voice  string
	Logger *infra.Logger
}

// Synthesizer turns story text into a single WAV file. Long texts are split
// on sentence boundaries, synthesized chunk by chunk in order, and merged
// into one container.
type Synthesizer struct {
	client SpeechClient
	model  string
	voice  string
	logger infra.Logger
}

func NewSynthesizer(opts Options) (*Synthesizer, error) {
	if opts.Client == nil {
		return nil, errors.New("speech client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("tts model is required")
	}
	if opts.Voice == "" {
		return nil, errors.New("tts voice is required")
	}

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Synthesizer{
		client: opts.Client,
		model:  opts.Model,
		voice:  opts.Voice,
		logger: logger,
	}, nil
}

// Synthesize produces WAV audio for the full story text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if len(text) < minTextChars {
		return nil, fmt.Errorf("%w: text is too short for audio (%d chars)", domain.ErrStoryTooShort, len(text))
	}

	if len(text) <= maxChunkBytes {
		s.logger.Info().Int("bytes", len(text)).Msg("speech: single request")
		return s.synthesizeChunk(ctx, text)
	}

	chunks := SplitText(text, maxChunkBytes)
	s.logger.Info().
		Int("bytes", len(text)).
		Int("chunks", len(chunks)).
		Msg("speech: chunked synthesis")

	files := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		s.logger.Debug().
			Int("chunk", i+1).
			Int("total", len(chunks)).
			Int("chars", len(chunk)).
			Msg("speech: synthesizing chunk")
		wav, err := s.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		files = append(files, wav)
	}

	out, err := ConcatWAV(files)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("bytes", len(out)).Msg("speech: audio assembled")
	return out, nil
}

func (s *Synthesizer) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	pcm, err := s.client.SynthesizeSpeech(ctx, genai.SpeechRequest{
		Model: s.model,
		Voice: s.voice,
		Text:  narratorInstruction + text,
	})
	if err != nil {
		if genai.IsOverloaded(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrServiceOverloaded, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
	}
	return EncodeWAV(pcm), nil
}

// EstimateDuration reports the approximate narration length in seconds at
// the storyteller pace.
func EstimateDuration(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / wordsPerMinute * 60))
}
