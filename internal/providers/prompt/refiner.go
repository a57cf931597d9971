// Package prompt turns a rough user idea into a provider-ready generation
// prompt via an LLM, with a deterministic fallback when no credentials are
// configured.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studio/internal/domain"
)

// RefineRequest carries the user's rough idea and the target media kind so
// the assistant can tailor phrasing (composition for images, motion for
// video, mood/instrumentation for music).
type RefineRequest struct {
	Idea   string
	Kind   domain.JobKind
	Style  string
	Locale string
}

// RefineResponse is the assistant's output.
type RefineResponse struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Provider       string   `json:"-"`
}

// Refiner is the prompt-writing assistant contract.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (*RefineResponse, error)
}

const staticProviderName = "static"

// StaticRefiner produces a serviceable prompt without any remote call. It is
// the fallback when the LLM is unreachable or unconfigured.
type StaticRefiner struct{}

func NewStaticRefiner() *StaticRefiner {
	return &StaticRefiner{}
}

func (s *StaticRefiner) Refine(ctx context.Context, req RefineRequest) (*RefineResponse, error) {
	idea := strings.TrimSpace(req.Idea)
	if idea == "" {
		return nil, domain.NewValidationError("idea", "must not be empty")
	}
	c := cases.Title(language.Und)
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = "cinematic"
	}
	var prompt string
	switch req.Kind {
	case domain.JobKindVideo:
		prompt = fmt.Sprintf("%s. Smooth camera movement, %s lighting, rich detail, 24fps.", idea, style)
	case domain.JobKindAudio:
		prompt = fmt.Sprintf("%s. %s mood, clear mix, memorable melody.", idea, c.String(style))
	default:
		prompt = fmt.Sprintf("%s. %s composition, sharp focus, high detail.", idea, c.String(style))
	}
	return &RefineResponse{
		Prompt:         prompt,
		NegativePrompt: "blurry, low quality, watermark, distorted",
		Keywords:       keywordsFrom(idea),
		Provider:       staticProviderName,
	}, nil
}

var _ Refiner = (*StaticRefiner)(nil)

func keywordsFrom(idea string) []string {
	fields := strings.Fields(strings.ToLower(idea))
	var keywords []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?")
		if len(f) >= 4 {
			keywords = append(keywords, f)
		}
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}
