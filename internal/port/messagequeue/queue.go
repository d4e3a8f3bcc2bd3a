// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subjects published by the feedback pipeline.
const (
	SubjectFeedbackStatus  = "feedback.status"  // feedback.status.{status}
	SubjectFeedbackApplied = "feedback.applied" // terminal apply summaries
)

// StatusEvent is the envelope published on every item status transition.
type StatusEvent struct {
	EventID   string `json:"event_id"`
	ItemID    string `json:"item_id"`
	Status    string `json:"status"`
	Intent    string `json:"intent,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AppliedEvent is published once an item reaches a terminal applied state.
type AppliedEvent struct {
	EventID            string   `json:"event_id"`
	ItemID             string   `json:"item_id"`
	FilesModified      []string `json:"files_modified"`
	VerificationPassed *bool    `json:"verification_passed,omitempty"`
	Timestamp          string   `json:"timestamp"`
}
