// Package queuestore indexes files diverted into the degradation queue.
package queuestore

import (
	"context"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
)

// Store persists the queue index. Implementations must be safe for
// concurrent use.
type Store interface {
	// Add indexes one queued file.
	Add(ctx context.Context, entry domain.QueuedFile) error

	// List returns the entries queued for one configuration.
	List(ctx context.Context, configName string) ([]domain.QueuedFile, error)

	// Remove drops one entry by id.
	Remove(ctx context.Context, configName, id string) error

	// Close releases any backing connection.
	Close() error
}
