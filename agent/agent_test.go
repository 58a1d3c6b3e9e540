package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

// fakeGemini answers generateContent calls with the queued responses, in order,
// and records the request bodies.
type fakeGemini struct {
	mu        sync.Mutex
	responses []string
	requests  []map[string]any
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)
	f.requests = append(f.requests, body)

	if !strings.HasSuffix(r.URL.Path, ":generateContent") || len(f.responses) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"code": 500, "message": "unexpected call", "status": "INTERNAL"}}`))
		return
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(resp))
}

func textResponse(parts ...string) string {
	ps := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		ps = append(ps, map[string]any{"text": p})
	}
	data, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": ps},
			"finishReason": "STOP",
		}},
	})
	return string(data)
}

func newTestAnalyst(t *testing.T, f *fakeGemini, opts ...AnalystOption) *Analyst {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts = append([]AnalystOption{
		WithBaseURL(srv.URL + "/"),
		WithClock(func() time.Time { return at }),
		WithTimeout(5 * time.Second),
	}, opts...)
	a, err := NewAnalyst(context.Background(), "test-key", opts...)
	require.NoError(t, err)
	return a
}

func TestAnalyst_Summarize(t *testing.T) {
	f := &fakeGemini{responses: []string{textResponse("## Overview\n", "Balanced.")}}
	a := newTestAnalyst(t, f)

	summary, err := a.Summarize(context.Background(), "- BTC: R$ 150000.00")
	require.NoError(t, err)
	assert.Equal(t, "## Overview\nBalanced.", summary)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	// the report and the timestamp reached the model through the user template.
	raw, _ := json.Marshal(req["contents"])
	assert.Contains(t, string(raw), "R$ 150000.00")
	assert.Contains(t, string(raw), "2025-03-04T10:00:00-03:00")

	raw, _ = json.Marshal(req["systemInstruction"])
	assert.Contains(t, string(raw), "70-30")

	gen, ok := req["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, MaxOutputTokens, gen["maxOutputTokens"])
	assert.InDelta(t, Temperature, gen["temperature"], 1e-6)
}

func TestAnalyst_SummarizeErrors(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
	}{
		{name: "upstream failure"},
		{name: "no candidate", responses: []string{`{"candidates": []}`}},
		{name: "blank text", responses: []string{textResponse("  ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyst(t, &fakeGemini{responses: tt.responses})
			_, err := a.Summarize(context.Background(), "report")
			assert.Error(t, err)
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts().System, p.System)

	dir := t.TempDir()
	_, err = LoadPrompts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load prompt templates")

	require.NoError(t, os.WriteFile(filepath.Join(dir, SystemPromptFile), []byte("Be brief.\n"), 0o644))
	_, err = LoadPrompts(dir)
	require.Error(t, err, "the user template is missing")

	require.NoError(t, os.WriteFile(filepath.Join(dir, UserPromptFile), []byte("At {{.Timestamp}}: {{.Portfolio}}"), 0o644))
	p, err = LoadPrompts(dir)
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", p.System)

	got, err := p.UserPrompt(at, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "At 2025-03-04T13:00:00Z: BTC", got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, UserPromptFile), []byte("{{.Timestamp"), 0o644))
	_, err = LoadPrompts(dir)
	assert.Error(t, err)
}

func TestDefaultPrompts_UserPrompt(t *testing.T) {
	got, err := DefaultPrompts().UserPrompt(at, "THE REPORT")
	require.NoError(t, err)
	assert.Contains(t, got, "THE REPORT")
	assert.Contains(t, got, "2025-03-04T13:00:00Z")
}

func TestSession_Run(t *testing.T) {
	f := &fakeGemini{responses: []string{
		// the model asks for the report first, then answers.
		`{"candidates": [{"content": {"role": "model", "parts": [{"functionCall": {"name": "portfolio_report", "args": {}}}]}}]}`,
		textResponse("You hold BTC."),
		textResponse("Goodbye soon."),
	}}
	a := newTestAnalyst(t, f)

	var calls int
	tool := &Tool{
		Name:        "portfolio_report",
		Description: "Current portfolio report.",
		Call: func(ctx context.Context) (string, error) {
			calls++
			return "- BTC: 0.50000000", nil
		},
	}

	var out bytes.Buffer
	s, err := a.NewSession(context.Background(), &out, strings.NewReader("and now?\nbye\nnever asked\n"), "report", "summary", tool)
	require.NoError(t, err)
	s.Render = strings.ToUpper

	require.NoError(t, s.Run(context.Background(), "what do I hold?", " "))
	assert.Equal(t, 1, calls)
	assert.Contains(t, out.String(), "YOU HOLD BTC.")
	assert.Contains(t, out.String(), "GOODBYE SOON.")
	assert.NotContains(t, out.String(), "never asked")
	require.Len(t, f.requests, 3)

	// the tool output was sent back to the model.
	raw, _ := json.Marshal(f.requests[1]["contents"])
	assert.Contains(t, string(raw), "0.50000000")
	// the seeded history precedes the first question.
	raw, _ = json.Marshal(f.requests[0]["contents"])
	assert.Contains(t, string(raw), "summary")
}

func TestSession_UnknownTool(t *testing.T) {
	f := &fakeGemini{responses: []string{
		`{"candidates": [{"content": {"role": "model", "parts": [{"functionCall": {"name": "trade", "args": {}}}]}}]}`,
		textResponse("I cannot trade."),
	}}
	a := newTestAnalyst(t, f)
	s, err := a.NewSession(context.Background(), io.Discard, strings.NewReader(""), "", "")
	require.NoError(t, err)

	answer, err := s.Ask(context.Background(), "sell everything")
	require.NoError(t, err)
	assert.Equal(t, "I cannot trade.", answer)

	raw, _ := json.Marshal(f.requests[1]["contents"])
	assert.Contains(t, string(raw), "unknown function trade")
}

func TestSession_RunAsksLastLineWithoutNewline(t *testing.T) {
	f := &fakeGemini{responses: []string{
		textResponse("First answer."),
		textResponse("Last answer."),
	}}
	a := newTestAnalyst(t, f)

	var out bytes.Buffer
	s, err := a.NewSession(context.Background(), &out, strings.NewReader("first?\nlast question"), "", "")
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, f.requests, 2)
	raw, _ := json.Marshal(f.requests[1]["contents"])
	assert.Contains(t, string(raw), "last question")
	assert.Contains(t, out.String(), "Last answer.")
}
