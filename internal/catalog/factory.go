package catalog

import (
	"context"
	"strings"
)

// NewCatalog picks postgres when a database URL is configured, a
// file-seeded catalog when a rooms file is configured, and an empty
// in-memory catalog otherwise.
func NewCatalog(ctx context.Context, databaseURL, roomsFile string) (Catalog, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresCatalog(ctx, databaseURL)
	}
	if strings.TrimSpace(roomsFile) != "" {
		return NewFileCatalog(roomsFile)
	}
	return NewInMemoryCatalog(nil), nil
}
