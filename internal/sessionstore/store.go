package sessionstore

import (
	"context"
	"errors"

	"roomclerk/internal/dialog"
)

var ErrNotFound = errors.New("session not found")

// Store persists conversation sessions between turns. The core is
// agnostic to the backing: in-memory for tests and single-node runs,
// redis when sessions must survive the process.
type Store interface {
	Load(ctx context.Context, sessionID string) (dialog.Session, error)
	Save(ctx context.Context, sess dialog.Session) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
