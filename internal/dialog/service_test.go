package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomclerk/internal/interpreter"
)

type mapStore struct {
	sessions map[string]Session
	saveErr  error
}

var errSessionMissing = errors.New("session not found")

func newMapStore() *mapStore {
	return &mapStore{sessions: make(map[string]Session)}
}

func (m *mapStore) Load(_ context.Context, id string) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, errSessionMissing
	}
	return s.Clone(), nil
}

func (m *mapStore) Save(_ context.Context, s Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *mapStore) Delete(_ context.Context, id string) error {
	if _, ok := m.sessions[id]; !ok {
		return errSessionMissing
	}
	delete(m.sessions, id)
	return nil
}

func newTestService(t *testing.T, interp interpreter.Interpreter) (*Service, *mapStore) {
	t.Helper()
	engine, _ := testEngine(t, interp)
	store := newMapStore()
	return NewService(store, engine, nil), store
}

func TestServiceFullConversation(t *testing.T) {
	svc, store := newTestService(t, &stubInterpreter{results: []interpreter.Result{fullExtraction()}})
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.State != StateStart {
		t.Fatalf("new session state = %s, want %s", sess.State, StateStart)
	}

	res, err := svc.ProcessTurn(ctx, sess.ID, "book me a room")
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if res.State != StateAwaitingConfirmation || res.ErrorCode != "" {
		t.Fatalf("result = %+v", res)
	}

	res, err = svc.ProcessTurn(ctx, sess.ID, "yes")
	if err != nil {
		t.Fatalf("ProcessTurn(yes) error = %v", err)
	}
	if res.State != StateBooked || res.Outcome != OutcomeBooked {
		t.Fatalf("result = %+v, want booked", res)
	}

	stored, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.ReservationID == "" || len(stored.Turns) != 2 {
		t.Fatalf("stored session = %+v", stored)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("store holds %d sessions, want 1", len(store.sessions))
	}
}

func TestServiceUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, &stubInterpreter{results: []interpreter.Result{{}}})

	if _, err := svc.ProcessTurn(context.Background(), "missing", "hello"); !errors.Is(err, errSessionMissing) {
		t.Fatalf("ProcessTurn() error = %v, want store's not-found error", err)
	}
}

func TestServiceCollaboratorErrorSavedAndClassified(t *testing.T) {
	svc, store := newTestService(t, &stubInterpreter{err: errors.New("model down")})
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	res, err := svc.ProcessTurn(ctx, sess.ID, "a room tomorrow")
	if err == nil {
		t.Fatalf("ProcessTurn() should surface the collaborator error")
	}
	if res.ErrorCode != "internal_error" {
		t.Fatalf("ErrorCode = %q", res.ErrorCode)
	}
	stored := store.sessions[sess.ID]
	if len(stored.Turns) != 1 || !stored.Turns[0].Failed {
		t.Fatalf("failed turn should be persisted, got %+v", stored.Turns)
	}
}

func TestServiceResetSession(t *testing.T) {
	svc, store := newTestService(t, &stubInterpreter{results: []interpreter.Result{{}}})
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := svc.ResetSession(ctx, sess.ID); err != nil {
		t.Fatalf("ResetSession() error = %v", err)
	}
	if len(store.sessions) != 0 {
		t.Fatalf("session should be gone after reset")
	}
	if err := svc.ResetSession(ctx, sess.ID); !errors.Is(err, errSessionMissing) {
		t.Fatalf("ResetSession(missing) error = %v", err)
	}
}

func TestServiceSerializesTurnsPerSession(t *testing.T) {
	svc, _ := newTestService(t, &slowInterpreter{delay: 10 * time.Millisecond})
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = svc.ProcessTurn(ctx, sess.ID, "a room for 4 people")
		}()
	}
	<-done
	<-done

	stored, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	// Both turns land in the history; neither overwrites the other.
	if len(stored.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(stored.Turns))
	}
}

type slowInterpreter struct {
	delay time.Duration
}

func (s *slowInterpreter) Interpret(_ context.Context, _ []interpreter.Turn, _ time.Time) (interpreter.Result, error) {
	time.Sleep(s.delay)
	return interpreter.Result{}, nil
}
