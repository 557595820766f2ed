package models

// Notification types emitted by the ledger.
const (
	NotifyExpenseAdded   = "expense_added"
	NotifyInviteReceived = "invite_received"
	NotifyInviteAccepted = "invite_accepted"
	NotifySettlement     = "settlement"
)

// Notification is a derived, append-only record of something a user
// should be told about. Notifications never gate correctness: a failed
// write or publish is reported as a soft warning on the originating
// mutation, never as a hard error.
type Notification struct {
	// ID is the unique identifier for the notification (UUID format).
	ID string

	// UserID is the recipient.
	UserID string

	// Type is one of the Notify constants.
	Type string

	// Payload is a JSON document describing the event.
	Payload string

	// Read reports whether the recipient has seen the notification.
	Read bool

	// CreatedAt is the Unix timestamp when the notification was created.
	CreatedAt int64
}
