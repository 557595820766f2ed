package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/storage"
)

// Emitter persists notifications and hands them to a Notifier. It is
// invoked after the originating mutation has committed; every failure
// is collected as a warning string for the caller's response.
type Emitter struct {
	store    storage.Store
	notifier Notifier
}

// NewEmitter creates an emitter backed by the given store and notifier.
func NewEmitter(store storage.Store, notifier Notifier) *Emitter {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Emitter{store: store, notifier: notifier}
}

// ExpenseCreated notifies every split owner except the payer about
// their owed share.
func (e *Emitter) ExpenseCreated(ctx context.Context, expense *models.Expense) []string {
	var warnings []string
	for i := range expense.Splits {
		split := &expense.Splits[i]
		if split.UserID == expense.PayerID {
			continue
		}
		warnings = append(warnings, e.emit(ctx, Event{
			UserID: split.UserID,
			Type:   models.NotifyExpenseAdded,
			Payload: map[string]any{
				"group_id":    expense.GroupID,
				"expense_id":  expense.ID,
				"payer_id":    expense.PayerID,
				"description": expense.Description,
				"amount":      split.Amount.String(),
			},
		})...)
	}
	return warnings
}

// InvitationCreated notifies the invitee, when a matching user account
// exists, that a group is waiting for them.
func (e *Emitter) InvitationCreated(ctx context.Context, inv *models.Invitation, inviteeUserID string) []string {
	if inviteeUserID == "" {
		return nil
	}
	return e.emit(ctx, Event{
		UserID: inviteeUserID,
		Type:   models.NotifyInviteReceived,
		Payload: map[string]any{
			"group_id":      inv.GroupID,
			"invitation_id": inv.ID,
			"inviter_id":    inv.InviterID,
		},
	})
}

// InvitationAccepted notifies the inviter that the invitee joined.
func (e *Emitter) InvitationAccepted(ctx context.Context, inv *models.Invitation, accepterID string) []string {
	return e.emit(ctx, Event{
		UserID: inv.InviterID,
		Type:   models.NotifyInviteAccepted,
		Payload: map[string]any{
			"group_id":      inv.GroupID,
			"invitation_id": inv.ID,
			"accepted_by":   accepterID,
		},
	})
}

// SettlementApplied notifies the counterparty of a recorded settlement.
func (e *Emitter) SettlementApplied(ctx context.Context, settlement *models.Settlement, recipientID string) []string {
	return e.emit(ctx, Event{
		UserID: recipientID,
		Type:   models.NotifySettlement,
		Payload: map[string]any{
			"group_id":      settlement.GroupID,
			"settlement_id": settlement.ID,
			"payer_id":      settlement.PayerID,
			"receiver_id":   settlement.ReceiverID,
			"amount":        settlement.Amount.String(),
		},
	})
}

// emit writes the notification row and publishes the event. Either
// failure is logged and returned as a warning; neither is fatal.
func (e *Emitter) emit(ctx context.Context, event Event) []string {
	var warnings []string

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	n := &models.Notification{
		UserID:  event.UserID,
		Type:    event.Type,
		Payload: string(payload),
	}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		slog.Warn("notification write failed", "user_id", event.UserID, "type", event.Type, "error", err)
		warnings = append(warnings, fmt.Sprintf("notification for %s not recorded: %v", event.UserID, err))
	}

	if err := e.notifier.Publish(ctx, event); err != nil {
		slog.Warn("notification publish failed", "user_id", event.UserID, "type", event.Type, "error", err)
		warnings = append(warnings, fmt.Sprintf("notification for %s not delivered: %v", event.UserID, err))
	}

	return warnings
}
