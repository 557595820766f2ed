package models

import "github.com/shopspring/decimal"

// Expense represents a single payment made by one member on behalf of
// several. An expense is created atomically with its splits: either the
// expense row and every split row persist, or none do.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// PayerID is the user ID of the member who paid.
	PayerID string

	// Description is the human-readable name for the expense.
	Description string

	// Amount is the total paid. Always positive.
	Amount decimal.Decimal

	// Category is an optional label (e.g., "food", "travel").
	Category string

	// Notes is optional free text.
	Notes string

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64

	// Splits are the owed shares. The sum of split amounts equals
	// Amount within the configured tolerance, checked at creation and
	// never altered afterward.
	Splits []Split
}

// Split represents one member's owed share of an expense.
//
// The only field that ever changes after creation is the settled flag,
// which transitions one-way false -> true via the settlement allocator.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	// ExpenseID is the parent expense.
	ExpenseID string

	// UserID is the user who owes this share.
	UserID string

	// Amount owed. Never negative.
	Amount decimal.Decimal

	// Settled reports whether this share has been paid back.
	Settled bool

	// SettledAt is the Unix timestamp of settlement, zero while unsettled.
	SettledAt int64

	// CreatedAt is the Unix timestamp when the split was created.
	// Settlement consumes splits oldest-first by this field.
	CreatedAt int64
}

// Debt is an unsettled split joined with its parent expense's payer:
// DebtorID owes CreditorID the split amount. This is the unit the
// balance calculator and settlement allocator both consume.
type Debt struct {
	SplitID    string
	ExpenseID  string
	GroupID    string
	CreditorID string // the expense payer
	DebtorID   string // the split owner
	Amount     decimal.Decimal
	CreatedAt  int64
}
