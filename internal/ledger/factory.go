package ledger

import (
	"context"
	"strings"
	"time"
)

// NewLedger creates a postgres-backed ledger when configured,
// otherwise in-memory.
func NewLedger(ctx context.Context, databaseURL string, buffer time.Duration) (Ledger, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryLedger(buffer), nil
	}
	return NewPostgresLedger(ctx, databaseURL, buffer)
}
