package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"roomclerk/internal/booking"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You extract meeting-room booking details from a conversation.
Reply with ONLY a JSON object, no prose, with these keys:
  "start_date": "YYYY-MM-DD" or null
  "start_time": "HH:MM" 24-hour or null
  "duration_hours": number or null
  "capacity": integer or null
  "equipment": array of strings, [] when the user wants none, null when unmentioned
  "requester_name": string or null
  "ambiguous_fields": array of keys whose value you set but are unsure about
    (for example a time given without AM/PM)
  "clarification_needed": boolean
  "clarification_question": one short question for the user, or null
Resolve relative dates ("tomorrow", "next Monday") against the current
date given below. Use null for anything not stated; never invent values.
Current date: %s`

// LLMInterpreter extracts booking fields with a chat model via
// langchaingo. Temperature is pinned to zero for consistent parses.
type LLMInterpreter struct {
	model llms.Model
}

func NewLLMInterpreter(apiKey, modelName string) (*LLMInterpreter, error) {
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModel
	}
	model, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai model: %w", err)
	}
	return &LLMInterpreter{model: model}, nil
}

func (i *LLMInterpreter) Interpret(ctx context.Context, history []Turn, now time.Time) (Result, error) {
	transcript := FormatHistory(history)
	if strings.TrimSpace(transcript) == "" {
		return Result{}, errors.New("empty conversation history")
	}

	resp, err := i.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, fmt.Sprintf(systemPrompt, now.Format("2006-01-02 (Monday)"))),
			llms.TextParts(schema.ChatMessageTypeHuman, transcript),
		},
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("model returned no choices")
	}

	return ParseResult(resp.Choices[0].Content)
}

// FormatHistory renders the speaker-tagged transcript the way the
// model prompt expects it.
func FormatHistory(history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		tag := "USER"
		if t.Speaker == SpeakerAgent {
			tag = "AGENT"
		}
		b.WriteString(tag)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// resultWire is the raw JSON shape the model replies with.
type resultWire struct {
	StartDate             *string  `json:"start_date"`
	StartTime             *string  `json:"start_time"`
	DurationHours         *float64 `json:"duration_hours"`
	Capacity              *int     `json:"capacity"`
	Equipment             []string `json:"equipment"`
	RequesterName         *string  `json:"requester_name"`
	AmbiguousFields       []string `json:"ambiguous_fields"`
	ClarificationNeeded   bool     `json:"clarification_needed"`
	ClarificationQuestion *string  `json:"clarification_question"`
}

// ParseResult decodes a model reply, tolerating markdown code fences
// around the JSON object.
func ParseResult(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var wire resultWire
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return Result{}, fmt.Errorf("parse interpreter reply: %w", err)
	}

	res := Result{
		Fields: booking.Extraction{
			StartDate:       wire.StartDate,
			StartTime:       wire.StartTime,
			DurationHours:   wire.DurationHours,
			Capacity:        wire.Capacity,
			Equipment:       wire.Equipment,
			Requester:       wire.RequesterName,
			AmbiguousFields: wire.AmbiguousFields,
		},
		ClarificationNeeded: wire.ClarificationNeeded,
	}
	if wire.ClarificationQuestion != nil {
		res.ClarificationQuestion = strings.TrimSpace(*wire.ClarificationQuestion)
	}
	if !res.ClarificationNeeded {
		// needed=false implies no question.
		res.ClarificationQuestion = ""
	}
	return res, nil
}
