package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/middleware"
	"github.com/chipin/chipin/internal/models"
)

type createGroupRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type groupResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	group := &models.Group{
		Name:      req.Name,
		Currency:  req.Currency,
		CreatedBy: middleware.GetUserID(r.Context()),
	}
	if err := h.store.CreateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, groupResponse{
		ID:        group.ID,
		Name:      group.Name,
		Currency:  group.Currency,
		CreatedBy: group.CreatedBy,
		CreatedAt: group.CreatedAt,
	})
}

type memberResponse struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

type splitResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Settled   bool            `json:"settled"`
	SettledAt int64           `json:"settled_at,omitempty"`
}

type expenseResponse struct {
	ID          string          `json:"id"`
	PayerID     string          `json:"payer_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	Splits      []splitResponse `json:"splits"`
}

type settlementResponse struct {
	ID          string          `json:"id"`
	PayerID     string          `json:"payer_id"`
	ReceiverID  string          `json:"receiver_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

type pendingInvitationResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	InviterID string `json:"inviter_id"`
	ExpiresAt int64  `json:"expires_at"`
}

type groupLedgerResponse struct {
	Group              groupResponse               `json:"group"`
	Members            []memberResponse            `json:"members"`
	Expenses           []expenseResponse           `json:"expenses"`
	Settlements        []settlementResponse        `json:"settlements"`
	PendingInvitations []pendingInvitationResponse `json:"pending_invitations"`
}

func (h *Handler) handleGroupLedger(w http.ResponseWriter, r *http.Request) {
	led, err := h.ledger.Ledger(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := groupLedgerResponse{
		Group: groupResponse{
			ID:        led.Group.ID,
			Name:      led.Group.Name,
			Currency:  led.Group.Currency,
			CreatedBy: led.Group.CreatedBy,
			CreatedAt: led.Group.CreatedAt,
		},
		Members:            make([]memberResponse, 0, len(led.Members)),
		Expenses:           make([]expenseResponse, 0, len(led.Expenses)),
		Settlements:        make([]settlementResponse, 0, len(led.Settlements)),
		PendingInvitations: make([]pendingInvitationResponse, 0, len(led.PendingInvitations)),
	}
	for _, m := range led.Members {
		resp.Members = append(resp.Members, memberResponse{UserID: m.UserID, Role: m.Role, CreatedAt: m.CreatedAt})
	}
	for _, e := range led.Expenses {
		er := expenseResponse{
			ID:          e.ID,
			PayerID:     e.PayerID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			Notes:       e.Notes,
			CreatedAt:   e.CreatedAt,
			Splits:      make([]splitResponse, 0, len(e.Splits)),
		}
		for _, s := range e.Splits {
			er.Splits = append(er.Splits, splitResponse{
				ID: s.ID, UserID: s.UserID, Amount: s.Amount,
				Settled: s.Settled, SettledAt: s.SettledAt,
			})
		}
		resp.Expenses = append(resp.Expenses, er)
	}
	for _, s := range led.Settlements {
		resp.Settlements = append(resp.Settlements, settlementResponse{
			ID: s.ID, PayerID: s.PayerID, ReceiverID: s.ReceiverID,
			Amount: s.Amount, Description: s.Description, CreatedAt: s.CreatedAt,
		})
	}
	for _, inv := range led.PendingInvitations {
		resp.PendingInvitations = append(resp.PendingInvitations, pendingInvitationResponse{
			ID: inv.ID, Email: inv.Email, InviterID: inv.InviterID, ExpiresAt: inv.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type pairBalanceResponse struct {
	OtherID    string          `json:"other_id"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
	AmountOwes decimal.Decimal `json:"amount_owes"`
	Net        decimal.Decimal `json:"net"`
}

type balancesResponse struct {
	UserID     string                `json:"user_id"`
	Pairs      []pairBalanceResponse `json:"pairs"`
	AmountOwed decimal.Decimal       `json:"amount_owed"`
	AmountOwes decimal.Decimal       `json:"amount_owes"`
	NetBalance decimal.Decimal       `json:"net_balance"`
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.ledger.Balances(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := balancesResponse{
		UserID:     sheet.UserID,
		Pairs:      make([]pairBalanceResponse, 0, len(sheet.Pairs)),
		AmountOwed: sheet.AmountOwed,
		AmountOwes: sheet.AmountOwes,
		NetBalance: sheet.NetBalance,
	}
	for _, p := range sheet.Pairs {
		resp.Pairs = append(resp.Pairs, pairBalanceResponse{
			OtherID: p.OtherID, AmountOwed: p.AmountOwed, AmountOwes: p.AmountOwes, Net: p.Net,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
