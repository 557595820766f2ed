package ledger

import "errors"

// The error taxonomy shared by the ledger and invitation services.
// Callers classify with errors.Is; the API layer maps these onto HTTP
// status codes.
var (
	// ErrValidation covers malformed input: non-positive amounts, an
	// empty split list, a split sum outside tolerance, or a referenced
	// user who is not a member of the group.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization covers callers acting outside their rights: not
	// a member, not a party to a settlement, not an admin, or an
	// invitee email mismatch.
	ErrAuthorization = errors.New("not authorized")

	// ErrNotFound covers unknown groups, expenses, invitations and
	// tokens.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict covers operations invalid in the current state,
	// such as accepting an invitation that is already terminal. A
	// settlement that finds zero eligible splits is explicitly NOT a
	// state conflict.
	ErrStateConflict = errors.New("state conflict")

	// ErrConcurrency is surfaced only when lock contention outlives the
	// internal retry budget; the default policy retries transparently.
	ErrConcurrency = errors.New("concurrency conflict")
)
