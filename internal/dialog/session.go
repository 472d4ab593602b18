package dialog

import (
	"time"

	"github.com/google/uuid"

	"roomclerk/internal/booking"
	"roomclerk/internal/catalog"
	"roomclerk/internal/interpreter"
)

// State is the conversation machine state persisted between turns.
type State string

const (
	StateStart                  State = "start"
	StateAwaitingInterpretation State = "awaiting_interpretation"
	StateAwaitingClarification  State = "awaiting_clarification"
	StateResolving              State = "resolving"
	StateAwaitingConfirmation   State = "awaiting_confirmation"
	StateBooked                 State = "booked"
	StateFailed                 State = "failed"
)

// Outcome is the terminal result of the current booking attempt.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeBooked  Outcome = "booked"
	OutcomeFailed  Outcome = "failed"
)

// Clarification targets the highest-priority missing or ambiguous
// field. Needed=false implies an empty question.
type Clarification struct {
	Needed   bool   `json:"needed"`
	Question string `json:"question,omitempty"`
}

// ConversationTurn is one user message plus the system's reply.
// Immutable once appended to the history.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserText  string    `json:"user_text"`
	Reply     string    `json:"reply"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session owns one booking conversation: the slot set, clarification
// state, turn history, the last candidate list, the tentative or
// confirmed selection, and the attempt outcome. History is cumulative
// across booking attempts; slots carry forward on reopen.
type Session struct {
	ID            string             `json:"session_id"`
	State         State              `json:"state"`
	Slots         booking.SlotSet    `json:"slots"`
	Clarification Clarification      `json:"clarification"`
	Turns         []ConversationTurn `json:"turns"`
	Candidates    []catalog.Room     `json:"candidates,omitempty"`
	Selected      *catalog.Room      `json:"selected,omitempty"`
	ReservationID string             `json:"reservation_id,omitempty"`
	Outcome       Outcome            `json:"outcome"`
	FailureReason string             `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewSession() Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		State:     StateStart,
		Outcome:   OutcomePending,
		Slots:     booking.SlotSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the session so a turn can be processed without
// mutating the stored snapshot.
func (s Session) Clone() Session {
	out := s
	if s.Turns != nil {
		out.Turns = make([]ConversationTurn, len(s.Turns))
		copy(out.Turns, s.Turns)
	}
	if s.Candidates != nil {
		out.Candidates = make([]catalog.Room, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}

// Terminal reports whether the current attempt has finished.
func (s Session) Terminal() bool {
	return s.State == StateBooked || s.State == StateFailed
}

// History renders the speaker-tagged transcript for the interpreter,
// optionally extended with a not-yet-recorded user message.
func (s Session) History(pendingUserText string) []interpreter.Turn {
	out := make([]interpreter.Turn, 0, len(s.Turns)*2+1)
	for _, t := range s.Turns {
		out = append(out, interpreter.Turn{Speaker: interpreter.SpeakerUser, Text: t.UserText})
		if t.Reply != "" {
			out = append(out, interpreter.Turn{Speaker: interpreter.SpeakerAgent, Text: t.Reply})
		}
	}
	if pendingUserText != "" {
		out = append(out, interpreter.Turn{Speaker: interpreter.SpeakerUser, Text: pendingUserText})
	}
	return out
}

func (s *Session) record(userText, reply string, failed bool) {
	now := time.Now().UTC()
	s.Turns = append(s.Turns, ConversationTurn{
		ID:        uuid.NewString(),
		UserText:  userText,
		Reply:     reply,
		Failed:    failed,
		CreatedAt: now,
	})
	s.UpdatedAt = now
}
