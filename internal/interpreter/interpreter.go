package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomclerk/internal/booking"
)

// Speaker tags for the turn history handed to the interpreter.
const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// Turn is one speaker-tagged message of the conversation history.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Result is the interpreter's structured reading of the conversation.
// All-null fields mean "no information extracted", not an error.
type Result struct {
	Fields                booking.Extraction `json:"fields"`
	ClarificationNeeded   bool               `json:"clarification_needed"`
	ClarificationQuestion string             `json:"clarification_question"`
}

// Interpreter extracts booking fields from free text. The core treats
// this as an opaque capability; any implementation that honors the
// contract works.
type Interpreter interface {
	Interpret(ctx context.Context, history []Turn, now time.Time) (Result, error)
}

// Config controls interpreter construction.
type Config struct {
	Mode        string
	OpenAIKey   string
	OpenAIModel string
	Timeout     time.Duration
}

// New builds an interpreter for the configured mode and wraps it with
// the call timeout. Mode "auto" prefers the LLM when a key is present
// and falls back to the deterministic mock.
func New(cfg Config) (Interpreter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	var inner Interpreter
	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.OpenAIKey) != "" {
			llm, err := NewLLMInterpreter(cfg.OpenAIKey, cfg.OpenAIModel)
			if err != nil {
				return nil, err
			}
			inner = llm
		} else {
			inner = NewMockInterpreter()
		}
	case "llm":
		if strings.TrimSpace(cfg.OpenAIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for llm interpreter mode")
		}
		llm, err := NewLLMInterpreter(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		inner = llm
	case "mock":
		inner = NewMockInterpreter()
	default:
		return nil, fmt.Errorf("unsupported interpreter mode %q", cfg.Mode)
	}

	return withTimeout(inner, cfg.Timeout), nil
}

// guarded bounds every collaborator call and maps failures onto the
// booking error taxonomy so the state machine never sees a raw
// transport error.
type guarded struct {
	inner   Interpreter
	timeout time.Duration
}

func withTimeout(inner Interpreter, timeout time.Duration) Interpreter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &guarded{inner: inner, timeout: timeout}
}

func (g *guarded) Interpret(ctx context.Context, history []Turn, now time.Time) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.inner.Interpret(ctx, history, now)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{}, fmt.Errorf("%w: %v", booking.ErrCollaboratorTimeout, err)
	}
	return Result{}, fmt.Errorf("%w: %v", booking.ErrCollaborator, err)
}
