package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"
)

// Tool is a parameterless function the model can call during a session, for
// instance to get a fresh portfolio report.
type Tool struct {
	Name        string
	Description string
	Call        func(ctx context.Context) (string, error)
}

func (t *Tool) declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Response: &genai.Schema{
			Type:        genai.TypeString,
			Description: "A markdown document.",
		},
	}
}

// call never fails, errors are reported to the model in the response.
func (t *Tool) call(ctx context.Context, fc *genai.FunctionCall) *genai.FunctionResponse {
	resp := &genai.FunctionResponse{ID: fc.ID, Name: fc.Name}
	out, err := t.Call(ctx)
	if err != nil {
		resp.Response = map[string]any{"error": err.Error()}
		return resp
	}
	resp.Response = map[string]any{"output": out}
	return resp
}

// maxToolCalls bounds the number of consecutive tool calls for one question.
const maxToolCalls = 5

// Session is an interactive chat about the portfolio.
type Session struct {
	w     io.Writer
	r     *bufio.Reader
	tools []*Tool
	chat  *genai.Chat

	// Render formats the model's markdown answers before printing, if set.
	Render func(markdown string) string
}

// NewSession creates a chat seeded with the report and its summary, if any.
func (a *Analyst) NewSession(ctx context.Context, w io.Writer, r io.Reader, report, summary string, tools ...*Tool) (*Session, error) {
	config := a.config()
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, t.declaration())
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	var history []*genai.Content
	if report != "" {
		prompt, err := a.Prompt(report)
		if err != nil {
			return nil, err
		}
		history = append(history, genai.NewContentFromText(prompt, genai.RoleUser))
		if summary != "" {
			history = append(history, genai.NewContentFromText(summary, genai.RoleModel))
		}
	}

	chat, err := a.client.Chats.Create(ctx, a.model, config, history)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &Session{
		w:     w,
		r:     bufio.NewReader(r),
		tools: tools,
		chat:  chat,
	}, nil
}

// Ask sends a question and returns the answer, running tool calls on the way.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	parts := []*genai.Part{{Text: question}}
	for i := 0; ; i++ {
		resp, err := s.chat.Send(ctx, parts...)
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("no response from the analyst")
		}

		var calls []*genai.Part
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.FunctionCall != nil {
				calls = append(calls, &genai.Part{FunctionResponse: s.call(ctx, p.FunctionCall)})
			}
		}
		if len(calls) == 0 {
			return extractText(resp)
		}
		if i >= maxToolCalls {
			return "", fmt.Errorf("too many tool calls")
		}
		parts = calls
	}
}

func (s *Session) call(ctx context.Context, fc *genai.FunctionCall) *genai.FunctionResponse {
	for _, t := range s.tools {
		if t.Name == fc.Name {
			return t.call(ctx, fc)
		}
	}
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"error": fmt.Sprintf("unknown function %s", fc.Name)},
	}
}

const replPrompt = "assist> "

// Run is the REPL: queued questions first, then the reader, until EOF or 'bye'.
func (s *Session) Run(ctx context.Context, questions ...string) error {
	fmt.Fprintln(s.w, "Ask anything about your portfolio. Type 'bye' to exit.")

	for eof := false; !eof; {
		fmt.Fprint(s.w, replPrompt)
		var input string

		if len(questions) > 0 {
			input, questions = strings.TrimSpace(questions[0]), questions[1:]
			if input == "" {
				continue
			}
			fmt.Fprintln(s.w, input)
		} else {
			var err error
			input, err = s.r.ReadString('\n')
			if err == io.EOF {
				// Ctrl+D, or a last line without newline that is still asked.
				eof = true
			} else if err != nil {
				return err
			}
		}

		input = strings.TrimSpace(input)
		if input == "bye" {
			return nil
		}
		if input == "" {
			continue
		}

		answer, err := s.Ask(ctx, input)
		if err != nil {
			return err
		}
		if s.Render != nil {
			answer = s.Render(answer)
		}
		fmt.Fprintln(s.w, answer)
	}
	return nil
}
