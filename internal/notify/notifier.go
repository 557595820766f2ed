// Package notify observes completed ledger mutations and fans out
// best-effort notifications. Nothing in this package ever gates
// correctness: a failed write or publish becomes a soft warning on the
// originating mutation, never a hard error and never a rollback.
package notify

import (
	"context"
	"log/slog"
)

// Event is one notification to deliver.
type Event struct {
	// UserID is the recipient.
	UserID string `json:"user_id"`

	// Type is one of the models.Notify constants.
	Type string `json:"type"`

	// Payload carries event-specific fields (group id, amounts, ...).
	Payload map[string]any `json:"payload"`
}

// Notifier delivers events to an external channel. Implementations are
// called but never awaited for correctness.
type Notifier interface {
	// Publish delivers one event. Errors are reported to the caller as
	// warnings only.
	Publish(ctx context.Context, event Event) error

	// Close releases any resources held by the notifier.
	Close() error
}

// LogNotifier is the default Notifier: it writes events to the
// structured log. Useful in development and as a stand-in when no
// broker is configured.
type LogNotifier struct{}

// Publish logs the event.
func (LogNotifier) Publish(_ context.Context, event Event) error {
	slog.Info("notification",
		"user_id", event.UserID,
		"type", event.Type,
		"payload", event.Payload,
	)
	return nil
}

// Close is a no-op.
func (LogNotifier) Close() error { return nil }
