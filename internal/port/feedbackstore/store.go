// Package feedbackstore defines the port interface for the durable feedback
// history of a project.
package feedbackstore

import (
	"context"

	"github.com/clipforge/clipforge/internal/domain/feedback"
)

// Store persists feedback items. Implementations perform a full
// read-modify-write on every mutation and keep no cross-call cache, so a
// store can be shared across processes as long as writes are not concurrent
// (last write wins).
type Store interface {
	// AddFeedback creates a new pending item from the raw feedback text. The
	// returned item is durably stored before the call returns.
	AddFeedback(ctx context.Context, text string) (*feedback.Item, error)

	// UpdateItem replaces the stored item with a matching id, or appends it
	// if absent (defensive; should not happen in normal flow).
	UpdateItem(ctx context.Context, item *feedback.Item) error

	// GetItem returns the item with the given id, or domain.ErrNotFound.
	GetItem(ctx context.Context, id string) (*feedback.Item, error)

	// ListAll returns every item in insertion order.
	ListAll(ctx context.Context) ([]feedback.Item, error)

	// ListByStatus returns the items with the given status, in insertion order.
	ListByStatus(ctx context.Context, status feedback.Status) ([]feedback.Item, error)
}
