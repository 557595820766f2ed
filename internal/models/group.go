package models

// Member roles within a group.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group represents a shared-expense context with a membership roster.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Goa Trip").
	Name string

	// Currency is the ISO currency code all amounts in this group use.
	Currency string

	// CreatedBy is the user ID of the creator. Immutable once set;
	// the creator is always an admin member.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Member represents a user's association with a group.
// There is at most one Member row per (group, user), enforced by a
// uniqueness constraint in storage rather than application logic.
type Member struct {
	// GroupID is the group this membership belongs to.
	GroupID string

	// UserID is the member's user ID.
	UserID string

	// Role is either RoleAdmin or RoleMember.
	Role string

	// CreatedAt is the Unix timestamp when the membership was created,
	// either at group creation or invitation acceptance.
	CreatedAt int64
}

// IsAdmin reports whether the member may administer the group.
func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
