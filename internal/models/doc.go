// Package models defines the core domain models for Chipin.
//
// # Entities
//
//   - User: a registered account, identified by a verified email
//   - Group: a shared-expense context with a membership roster
//   - Member: a user's association with a group, carrying a role
//   - Expense: a single payment made by one member on behalf of several
//   - Split: one member's owed share of an expense
//   - Settlement: a recorded payment clearing one or more splits
//   - Invitation: a token-bearing offer for a non-member to join a group
//   - Notification: a derived, append-only record of something a user
//     should be told about
//
// # Design Principles
//
//  1. **Money is decimal**: all amounts use shopspring decimal, never
//     float64. Sum invariants are checked against a configurable
//     tolerance (default 0.01).
//  2. **Avoid circular references**: relationships use ID strings, not
//     pointers to other models.
//  3. **One-way transitions**: a Split's settled flag only ever goes
//     false -> true; an Invitation only ever leaves pending for a
//     terminal state.
//  4. **Timestamps are Unix seconds** (int64), matching the storage
//     layer.
package models
