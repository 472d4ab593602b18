package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"roomclerk/internal/booking"
	"roomclerk/internal/observability"
)

// SessionStore is the boundary contract for persisting sessions
// between turns; implementations live in internal/sessionstore.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (Session, error)
	Save(ctx context.Context, sess Session) error
	Delete(ctx context.Context, sessionID string) error
}

// TurnResult is what every surface (HTTP, websocket, NATS) returns
// for one processed turn. ErrorCode is empty on the happy path.
type TurnResult struct {
	SessionID string  `json:"session_id"`
	Reply     string  `json:"reply"`
	State     State   `json:"state"`
	Outcome   Outcome `json:"outcome"`
	ErrorCode string  `json:"error_code,omitempty"`
}

// Service ties the engine to the session store and serializes turns
// per session: one synchronous unit of work per turn, sessions
// independent of each other.
type Service struct {
	store   SessionStore
	engine  *Engine
	metrics *observability.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewService(store SessionStore, engine *Engine, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) CreateSession(ctx context.Context) (Session, error) {
	sess := NewSession()
	if err := s.store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("%w: %v", booking.ErrPersistence, err)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	return s.store.Load(ctx, sessionID)
}

func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	return nil
}

// ProcessTurn runs one user turn to completion. The session is saved
// even when the turn failed, so the history keeps its failure marker;
// the returned error classifies collaborator or persistence trouble
// for the transport to log.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	next, reply, stepErr := s.engine.Step(ctx, sess, text)
	if saveErr := s.store.Save(ctx, next); saveErr != nil {
		return TurnResult{}, fmt.Errorf("%w: %v", booking.ErrPersistence, saveErr)
	}

	res := TurnResult{
		SessionID: next.ID,
		Reply:     reply,
		State:     next.State,
		Outcome:   next.Outcome,
		ErrorCode: classify(stepErr),
	}
	if stepErr != nil && s.metrics != nil {
		s.metrics.CollaboratorErrors.WithLabelValues(res.ErrorCode).Inc()
	}
	return res, stepErr
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, booking.ErrCollaboratorTimeout):
		return "collaborator_timeout"
	case errors.Is(err, booking.ErrCollaborator):
		return "collaborator_error"
	case errors.Is(err, booking.ErrBookingConflict):
		return "booking_conflict"
	case errors.Is(err, booking.ErrPersistence):
		return "persistence_error"
	default:
		return "internal_error"
	}
}
