package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Prompt file names looked up in a prompts directory.
const (
	SystemPromptFile = "system_prompt.txt"
	UserPromptFile   = "user_prompt_template.txt"
)

const defaultSystemPrompt = `
You are a cryptocurrency portfolio analyst advising a single long term investor.
The investor follows a 70-30 strategy: 70% of the portfolio value in volatile crypto assets
and 30% in stablecoins, rebalanced whenever a class drifts more than 2.5 points away from its target.

Ground every statement in the figures you are given, never invent prices or holdings.
Comment the current allocation, the 24h and 7d variations, the concentration inside the
volatile class, and explain the rebalancing suggestions in plain words.
Answer in markdown, with short sections and bullet points.
You never execute trades, you only advise.
`

const defaultUserTemplate = `Analysis requested at {{.Timestamp}}.

Current state of the portfolio:

{{.Portfolio}}

Write a concise analysis of this portfolio: overall health, 70-30 balance, notable movers,
and the concrete actions to take if a rebalance is needed.
`

// Prompts are the persona and the user prompt template of the analyst.
type Prompts struct {
	System string
	User   *template.Template
}

// promptData is what the user template is executed with.
type promptData struct {
	Timestamp string
	Portfolio string
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	return &Prompts{
		System: strings.TrimSpace(defaultSystemPrompt),
		User:   template.Must(template.New(UserPromptFile).Parse(defaultUserTemplate)),
	}
}

// LoadPrompts reads the prompts from dir. An empty dir returns the built-in prompts,
// otherwise both files must exist.
func LoadPrompts(dir string) (*Prompts, error) {
	if dir == "" {
		return DefaultPrompts(), nil
	}
	system, err := os.ReadFile(filepath.Join(dir, SystemPromptFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	user, err := os.ReadFile(filepath.Join(dir, UserPromptFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if strings.TrimSpace(string(system)) == "" {
		return nil, fmt.Errorf("failed to load prompt templates: %s is empty", SystemPromptFile)
	}
	tmpl, err := template.New(UserPromptFile).Option("missingkey=error").Parse(string(user))
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return &Prompts{System: strings.TrimSpace(string(system)), User: tmpl}, nil
}

// UserPrompt wraps the portfolio report into the user template.
func (p *Prompts) UserPrompt(at time.Time, report string) (string, error) {
	var b strings.Builder
	err := p.User.Execute(&b, promptData{
		Timestamp: at.Format(time.RFC3339),
		Portfolio: report,
	})
	if err != nil {
		return "", fmt.Errorf("cannot format user prompt: %w", err)
	}
	return b.String(), nil
}
