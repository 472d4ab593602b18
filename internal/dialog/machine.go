package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomclerk/internal/booking"
	"roomclerk/internal/catalog"
	"roomclerk/internal/interpreter"
	"roomclerk/internal/ledger"
	"roomclerk/internal/observability"
	"roomclerk/internal/resolver"
)

// Engine drives one conversation turn to completion: interpret,
// evaluate completeness, resolve, confirm or fail. It never mutates
// the session it is given; the updated session is returned.
type Engine struct {
	interp   interpreter.Interpreter
	resolver *resolver.Resolver
	ledger   ledger.Ledger
	metrics  *observability.Metrics
	loc      *time.Location
	suggestN int
}

type EngineOptions struct {
	Location    *time.Location
	SuggestionN int
}

func NewEngine(interp interpreter.Interpreter, res *resolver.Resolver, led ledger.Ledger, metrics *observability.Metrics, opts EngineOptions) *Engine {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	n := opts.SuggestionN
	if n <= 0 {
		n = 3
	}
	return &Engine{
		interp:   interp,
		resolver: res,
		ledger:   led,
		metrics:  metrics,
		loc:      loc,
		suggestN: n,
	}
}

// Step processes one user turn against a session snapshot and returns
// the next session state plus the single reply to show the user.
//
// A non-nil error classifies a collaborator or persistence failure;
// the returned session is still valid and has the failed turn recorded
// so conversational continuity survives. Booking writes happen only on
// the confirmation edge, never speculatively, so replaying the same
// input against the same snapshot cannot double-book.
func (e *Engine) Step(ctx context.Context, sess Session, userText string) (Session, string, error) {
	userText = strings.TrimSpace(userText)
	work := sess.Clone()

	if work.State == StateAwaitingConfirmation {
		return e.stepConfirmation(ctx, work, userText)
	}
	return e.stepInterpretation(ctx, sess, work, userText)
}

// stepInterpretation is the entry edge: any non-confirmation state
// routes the new text through the interpreter.
func (e *Engine) stepInterpretation(ctx context.Context, snapshot, work Session, userText string) (Session, string, error) {
	reopened := work.Terminal()
	priorOutcome := work.Outcome

	work.State = mustNext(work.State, DecisionReceivedInput)

	started := time.Now()
	result, err := e.interp.Interpret(ctx, work.History(userText), time.Now().In(e.loc))
	if e.metrics != nil {
		e.metrics.ObserveInterpreterLatency(time.Since(started), err == nil)
	}
	if err != nil {
		// Roll back to the pre-turn snapshot; record the turn with a
		// failure marker so the history still shows it happened.
		rolled := snapshot.Clone()
		reply := "I could not process that just now. Please send your message again."
		rolled.record(userText, reply, true)
		e.countTurn(DecisionCollaboratorErr)
		return rolled, reply, err
	}

	// A booked session reopened with no new information gets a recap
	// instead of a fresh resolution; this also keeps a replayed
	// confirmation from ever reaching the ledger again.
	if reopened && priorOutcome == OutcomeBooked && result.Fields.Empty() {
		work.State = StateBooked
		reply := e.recapReply(work)
		work.record(userText, reply, false)
		return work, reply, nil
	}
	if reopened {
		// New attempt: history and slots carry forward, the rest resets.
		work.Outcome = OutcomePending
		work.FailureReason = ""
		work.Candidates = nil
		work.Selected = nil
		work.ReservationID = ""
	}

	work.Slots.Apply(result.Fields)

	missing, complete := booking.Evaluate(work.Slots)
	if !complete || result.ClarificationNeeded {
		question := strings.TrimSpace(result.ClarificationQuestion)
		if question == "" {
			question = clarificationQuestion(missing)
		}
		work.State = mustNext(StateAwaitingInterpretation, DecisionNeedsClarity)
		work.Clarification = Clarification{Needed: true, Question: question}
		work.record(userText, question, false)
		e.countTurn(DecisionNeedsClarity)
		return work, question, nil
	}

	work.State = mustNext(StateAwaitingInterpretation, DecisionComplete)
	work.Clarification = Clarification{}
	return e.stepResolving(ctx, work, userText)
}

func (e *Engine) stepResolving(ctx context.Context, work Session, userText string) (Session, string, error) {
	start, end, err := work.Slots.Interval(e.loc)
	if err != nil {
		// The interpreter produced an unparseable instant; treat the
		// time fields as ambiguous rather than failing the attempt.
		work.Slots.StartDate.Status = booking.StatusAmbiguous
		work.Slots.StartTime.Status = booking.StatusAmbiguous
		question := "I could not make sense of the requested date and time. When should the booking start?"
		work.State = StateAwaitingClarification
		work.Clarification = Clarification{Needed: true, Question: question}
		work.record(userText, question, false)
		e.countTurn(DecisionNeedsClarity)
		return work, question, nil
	}

	candidates, err := e.resolver.FindCandidates(ctx, work.Slots.Capacity.Value, work.Slots.Equipment.Items)
	if err != nil {
		return e.failPersistence(work, userText, err)
	}
	work.Candidates = candidates

	if len(candidates) == 0 {
		reply := "No room matches those requirements."
		if suggestions, serr := e.resolver.FindSimilar(ctx, work.Slots.Capacity.Value, work.Slots.Equipment.Items, e.suggestN); serr == nil && len(suggestions) > 0 {
			reply += " Close alternatives: " + roomNames(suggestions) + "."
		}
		reply += " Tell me adjusted requirements to search again."
		return e.fail(work, userText, DecisionNoMatch, booking.ErrNoMatchingResource.Error(), reply)
	}

	available, _, err := e.resolver.RankAndFilter(ctx, candidates, start, end)
	if err != nil {
		return e.failPersistence(work, userText, err)
	}
	if len(available) == 0 {
		reply := "Rooms match your requirements, but none is free at that time. " +
			"Give me a different time to search again, or ask for a different kind of room."
		return e.fail(work, userText, DecisionNoneAvailable, booking.ErrNoAvailableResource.Error(), reply)
	}

	selected := available[0]
	work.Selected = &selected
	work.State = mustNext(StateResolving, DecisionFoundAvailable)
	reply := confirmPrompt(selected, start, end)
	work.record(userText, reply, false)
	e.countTurn(DecisionFoundAvailable)
	return work, reply, nil
}

func (e *Engine) stepConfirmation(ctx context.Context, work Session, userText string) (Session, string, error) {
	switch parseYesNo(userText) {
	case answerYes:
		return e.book(ctx, work, userText)
	case answerNo:
		reply := "Okay, I will not book it. Tell me what to change and I will search again."
		return e.fail(work, userText, DecisionConfirmNo, "declined by user", reply)
	default:
		// Non yes/no input re-prompts instead of silently failing.
		work.State = mustNext(StateAwaitingConfirmation, DecisionConfirmUnclear)
		reply := "Please answer yes or no: should I book the room?"
		if work.Selected != nil {
			reply = "Please answer yes or no: should I book " + work.Selected.Name + "?"
		}
		work.record(userText, reply, false)
		e.countTurn(DecisionConfirmUnclear)
		return work, reply, nil
	}
}

func (e *Engine) book(ctx context.Context, work Session, userText string) (Session, string, error) {
	if work.Selected == nil {
		return e.fail(work, userText, DecisionWriteConflict, "no selection to confirm",
			"I lost track of the room selection. Tell me your requirements again.")
	}
	start, end, err := work.Slots.Interval(e.loc)
	if err != nil {
		return e.failPersistence(work, userText, err)
	}

	res, err := e.ledger.AppendReservation(ctx, ledger.Reservation{
		RoomID: work.Selected.ID,
		Start:  start,
		End:    end,
		HeldBy: work.Slots.Requester.Value,
	})
	if errors.Is(err, booking.ErrBookingConflict) {
		if e.metrics != nil {
			e.metrics.BookingEvents.WithLabelValues("conflict").Inc()
		}
		reply := work.Selected.Name + " just became unavailable. Please retry with a different time or room."
		sessOut, replyOut, _ := e.fail(work, userText, DecisionWriteConflict, "booking conflict on final write", reply)
		return sessOut, replyOut, err
	}
	if err != nil {
		return e.failPersistence(work, userText, err)
	}

	work.State = mustNext(StateAwaitingConfirmation, DecisionConfirmYes)
	work.Outcome = OutcomeBooked
	work.ReservationID = res.ID
	if e.metrics != nil {
		e.metrics.BookingEvents.WithLabelValues("confirmed").Inc()
	}
	reply := fmt.Sprintf("Booked %s for %s on %s from %s to %s.",
		work.Selected.Name,
		work.Slots.Requester.Value,
		start.Format("Monday, 2 Jan 2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
	work.record(userText, reply, false)
	e.countTurn(DecisionConfirmYes)
	return work, reply, nil
}

func (e *Engine) fail(work Session, userText string, d Decision, reason, reply string) (Session, string, error) {
	next, err := Next(work.State, d)
	if err != nil {
		next = StateFailed
	}
	work.State = next
	work.Outcome = OutcomeFailed
	work.FailureReason = reason
	work.record(userText, reply, false)
	e.countTurn(d)
	return work, reply, nil
}

// failPersistence handles store I/O failures: fatal for the turn,
// surfaced generically, classified for the caller.
func (e *Engine) failPersistence(work Session, userText string, cause error) (Session, string, error) {
	work.State = StateFailed
	work.Outcome = OutcomeFailed
	work.FailureReason = "persistence failure"
	reply := "Something went wrong on my side. Please try again."
	work.record(userText, reply, true)
	e.countTurn(DecisionCollaboratorErr)
	return work, reply, fmt.Errorf("%w: %v", booking.ErrPersistence, cause)
}

func (e *Engine) countTurn(d Decision) {
	if e.metrics != nil {
		e.metrics.Turns.WithLabelValues(string(d)).Inc()
	}
}

func (e *Engine) recapReply(work Session) string {
	if work.Selected == nil {
		return "That booking is already confirmed."
	}
	start, end, err := work.Slots.Interval(e.loc)
	if err != nil {
		return "Your booking of " + work.Selected.Name + " is already confirmed."
	}
	return fmt.Sprintf("You already have %s booked on %s from %s to %s.",
		work.Selected.Name,
		start.Format("Monday, 2 Jan 2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
}

// mustNext is for edges that exist by construction of the table; a
// missing edge here is a programming error, not a runtime condition.
func mustNext(from State, d Decision) State {
	to, err := Next(from, d)
	if err != nil {
		panic(err)
	}
	return to
}

type answer int

const (
	answerUnclear answer = iota
	answerYes
	answerNo
)

func parseYesNo(text string) answer {
	switch strings.ToLower(strings.TrimSpace(strings.TrimRight(text, ".!"))) {
	case "yes", "y", "yeah", "yep", "sure", "confirm", "ok", "okay", "please do", "go ahead", "book it":
		return answerYes
	case "no", "n", "nope", "cancel", "don't", "do not", "no thanks":
		return answerNo
	default:
		return answerUnclear
	}
}

// clarificationQuestion synthesizes the single question for the
// highest-priority gap. Missing date and time collapse into one
// combined question; the system never enumerates every gap at once.
func clarificationQuestion(missing []string) string {
	if len(missing) == 0 {
		return "Could you tell me more about the booking?"
	}
	set := make(map[string]bool, len(missing))
	for _, f := range missing {
		set[f] = true
	}
	switch missing[0] {
	case booking.FieldStartDate:
		if set[booking.FieldStartTime] {
			return "What date and time should the booking start?"
		}
		return "What date is the booking for?"
	case booking.FieldStartTime:
		return "What time should the booking start?"
	case booking.FieldDurationHours:
		return "How long do you need the room for, in hours?"
	case booking.FieldCapacity:
		return "How many people is the room for?"
	case booking.FieldRequester:
		return "Whose name should the booking be under?"
	default:
		return "Could you tell me more about the booking?"
	}
}

func confirmPrompt(room catalog.Room, start, end time.Time) string {
	detail := fmt.Sprintf("capacity %d", room.Capacity)
	if len(room.Equipment) > 0 {
		detail += ", " + strings.Join(room.Equipment, ", ")
	}
	return fmt.Sprintf("%s (%s) is free on %s from %s to %s. Shall I book it? (yes/no)",
		room.Name,
		detail,
		start.Format("Monday, 2 Jan 2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
}

func roomNames(rooms []catalog.Room) string {
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
