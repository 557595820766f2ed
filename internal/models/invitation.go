package models

// Invitation lifecycle states. Pending is the only non-terminal state.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusExpired  = "expired"
)

// Invitation represents a token-bearing offer for a non-member to join
// a group. At most one active (pending, unexpired) invitation exists
// per (group, invitee email).
type Invitation struct {
	// ID is the unique identifier for the invitation (UUID format).
	ID string

	// GroupID is the group being joined.
	GroupID string

	// InviterID is the user ID of the admin who sent the invitation.
	InviterID string

	// Email is the invitee's email address, stored lowercased.
	// Acceptance requires the caller's verified email to match.
	Email string

	// Role is the role granted on acceptance (default RoleMember).
	Role string

	// Token is the unguessable acceptance token (32 random bytes, hex).
	Token string

	// Status is one of the InviteStatus constants.
	Status string

	// CreatedAt is the Unix timestamp when the invitation was created.
	CreatedAt int64

	// ExpiresAt is the Unix timestamp after which a pending invitation
	// is inert and swept to expired.
	ExpiresAt int64

	// RespondedAt is the Unix timestamp of the accept/decline, zero
	// while pending.
	RespondedAt int64
}

// Expired reports whether the invitation is past its expiry at the
// given Unix time.
func (i *Invitation) Expired(now int64) bool {
	return now >= i.ExpiresAt
}
