package story

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
)

type call struct {
	model string
}

type stubTextClient struct {
	calls     []call
	responses []func() (string, error)
}

func (s *stubTextClient) GenerateText(_ context.Context, req genai.TextRequest) (string, error) {
	s.calls = append(s.calls, call{model: req.Model})
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next()
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func overloaded() func() (string, error) {
	return func() (string, error) {
		return "", &genai.StatusError{Code: http.StatusServiceUnavailable, Message: "model overloaded"}
	}
}

func badRequest() func() (string, error) {
	return func() (string, error) {
		return "", &genai.StatusError{Code: http.StatusBadRequest, Message: "invalid argument"}
	}
}

func testRequest() domain.StoryRequest {
	return domain.StoryRequest{
		ChildName:   "Zosia",
		ChildAge:    5,
		StoryGenre:  "klasyczna_basn",
		StoryTone:   "relaksacyjny_usypiajacy",
		StoryLesson: "odwaga",
	}
}

func newTestGenerator(t *testing.T, client TextClient) *Generator {
	t.Helper()
	g, err := NewGenerator(Options{
		Client:        client,
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		Retry:         infra.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond},
	})
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	return g
}

func longStory() string {
	return strings.Repeat("Dawno, dawno temu za siedmioma górami żyła dzielna Zosia. ", 20)
}

func TestGenerateRecoversFromTransientOverload(t *testing.T) {
	client := &stubTextClient{responses: []func() (string, error){
		overloaded(),
		overloaded(),
		ok(longStory()),
	}}

	res, err := newTestGenerator(t, client).Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Model != "primary-model" {
		t.Fatalf("model = %q, want primary", res.Model)
	}
	if len(client.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(client.calls))
	}
	for _, c := range client.calls {
		if c.model != "primary-model" {
			t.Fatalf("unexpected fallback call to %q", c.model)
		}
	}
}

func TestGenerateFallsBackWhenPrimaryExhausted(t *testing.T) {
	client := &stubTextClient{responses: []func() (string, error){
		overloaded(), overloaded(), overloaded(),
		ok(longStory()),
	}}

	res, err := newTestGenerator(t, client).Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Model != "fallback-model" {
		t.Fatalf("model = %q, want fallback", res.Model)
	}
	if len(client.calls) != 4 {
		t.Fatalf("calls = %d, want 3 primary + 1 fallback", len(client.calls))
	}
	if client.calls[3].model != "fallback-model" {
		t.Fatalf("fourth call model = %q", client.calls[3].model)
	}
}

func TestGenerateDoesNotRetryNonOverloadErrors(t *testing.T) {
	client := &stubTextClient{responses: []func() (string, error){badRequest()}}

	_, err := newTestGenerator(t, client).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("error = %v, want upstream failure", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(client.calls))
	}
}

func TestGenerateRejectsShortStory(t *testing.T) {
	client := &stubTextClient{responses: []func() (string, error){ok("Krótka bajka.")}}

	_, err := newTestGenerator(t, client).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrStoryTooShort) {
		t.Fatalf("error = %v, want too-short", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (too-short is not retried)", len(client.calls))
	}
}

func TestGenerateSurfacesOverloadWhenBothModelsFail(t *testing.T) {
	client := &stubTextClient{responses: []func() (string, error){
		overloaded(), overloaded(), overloaded(),
		overloaded(), overloaded(), overloaded(),
	}}

	_, err := newTestGenerator(t, client).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrServiceOverloaded) {
		t.Fatalf("error = %v, want overloaded", err)
	}
	if len(client.calls) != 6 {
		t.Fatalf("calls = %d, want 6", len(client.calls))
	}
}

func TestBuildUserPromptIncludesOptionalFields(t *testing.T) {
	pet := "kot Mruczek"
	req := testRequest()
	req.PetMascot = &pet
	req.RequestDialogHumor = true

	prompt := BuildUserPrompt(req)
	if !strings.Contains(prompt, "kot Mruczek") {
		t.Fatal("prompt missing pet mascot")
	}
	if !strings.Contains(prompt, "więcej dialogu i humoru") {
		t.Fatal("prompt missing dialog/humor note")
	}
	if !strings.Contains(prompt, "klasyczna baśń") {
		t.Fatal("prompt missing expanded genre description")
	}

	req.PetMascot = nil
	req.RequestDialogHumor = false
	prompt = BuildUserPrompt(req)
	if strings.Contains(prompt, "MASKOTKA") {
		t.Fatal("prompt must omit absent optional fields")
	}
}

func TestBuildSystemPromptAgeBands(t *testing.T) {
	young := BuildSystemPrompt(4)
	if !strings.Contains(young, "dźwiękonaśladowczych") {
		t.Fatal("young band missing onomatopoeia guideline")
	}
	middle := BuildSystemPrompt(7)
	if !strings.Contains(middle, "zabawy słowne") {
		t.Fatal("middle band missing wordplay guideline")
	}
	older := BuildSystemPrompt(10)
	if !strings.Contains(older, "metafor") {
		t.Fatal("older band missing metaphor guideline")
	}
}
