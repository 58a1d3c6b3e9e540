// Package agent talks to Gemini: a one shot analyst summarizing the portfolio
// report, and an interactive session to discuss it.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/common"
	"google.golang.org/genai"
)

const (
	DefaultModel     = "gemini-2.5-flash"
	Temperature      = 0.13
	MaxOutputTokens  = 1500
	PresencePenalty  = 0.3
	FrequencyPenalty = 0.3
)

// Analyst summarizes portfolio reports.
type Analyst struct {
	client  *genai.Client
	model   string
	prompts *Prompts
	logger  *common.Logger
	now     func() time.Time

	baseURL    string
	httpClient *http.Client
}

// AnalystOption configures the analyst
type AnalystOption func(*Analyst)

// WithModel sets the model to use
func WithModel(model string) AnalystOption {
	return func(a *Analyst) {
		if model != "" {
			a.model = model
		}
	}
}

// WithPrompts replaces the built-in prompts
func WithPrompts(p *Prompts) AnalystOption {
	return func(a *Analyst) {
		a.prompts = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) AnalystOption {
	return func(a *Analyst) {
		a.logger = logger
	}
}

// WithClock replaces time.Now, the clock stamps the user prompt.
func WithClock(now func() time.Time) AnalystOption {
	return func(a *Analyst) {
		a.now = now
	}
}

// WithBaseURL points the client to another Gemini API endpoint.
func WithBaseURL(baseURL string) AnalystOption {
	return func(a *Analyst) {
		a.baseURL = baseURL
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) AnalystOption {
	return func(a *Analyst) {
		a.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewAnalyst creates a Gemini backed analyst.
func NewAnalyst(ctx context.Context, apiKey string, opts ...AnalystOption) (*Analyst, error) {
	a := &Analyst{
		model:   DefaultModel,
		prompts: DefaultPrompts(),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.httpClient,
	}
	if a.baseURL != "" {
		cfg.HTTPOptions.BaseURL = a.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	a.client = client
	return a, nil
}

// config is the generation config shared by the analyst and its sessions.
func (a *Analyst) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: a.prompts.System}}},
		Temperature:       genai.Ptr[float32](Temperature),
		MaxOutputTokens:   MaxOutputTokens,
		PresencePenalty:   genai.Ptr[float32](PresencePenalty),
		FrequencyPenalty:  genai.Ptr[float32](FrequencyPenalty),
	}
}

// Prompt returns the user prompt sent for report, stamped with the analyst's clock.
func (a *Analyst) Prompt(report string) (string, error) {
	return a.prompts.UserPrompt(a.now().In(cryptofolio.Zone), report)
}

// Summarize sends report to Gemini and returns the generated analysis, as is.
func (a *Analyst) Summarize(ctx context.Context, report string) (string, error) {
	prompt, err := a.Prompt(report)
	if err != nil {
		return "", err
	}

	a.logger.Debug().Str("model", a.model).Int("prompt_size", len(prompt)).Msg("Generating analysis")
	start := time.Now()
	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), a.config())
	if err != nil {
		a.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Gemini request failed")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text, err := extractText(result)
	if err != nil {
		return "", err
	}
	a.logger.Debug().Dur("elapsed", time.Since(start)).Int("size", len(text)).Msg("Analysis generated")
	return text, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("no content generated")
	}
	return text.String(), nil
}
