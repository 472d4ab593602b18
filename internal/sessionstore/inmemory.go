package sessionstore

import (
	"context"
	"sync"
	"time"

	"roomclerk/internal/dialog"
)

// InMemoryStore keeps sessions in process, guarded by a RWMutex, with
// an optional janitor that drops sessions idle past the TTL.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]dialog.Session
	ttl      time.Duration
	onExpire func(dialog.Session)
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]dialog.Session),
		ttl:      ttl,
	}
}

// SetExpireHook registers a callback fired for each expired session.
func (s *InMemoryStore) SetExpireHook(hook func(dialog.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (dialog.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return dialog.Session{}, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, sess dialog.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor expires idle sessions until the context is cancelled.
// No-op when the store has no TTL.
func (s *InMemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireIdle()
			}
		}
	}()
}

func (s *InMemoryStore) expireIdle() {
	now := time.Now().UTC()
	var expired []dialog.Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) < s.ttl {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, sess := range expired {
			hook(sess)
		}
	}
}

func (s *InMemoryStore) Close() error { return nil }
