package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/middleware"
)

type shareRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type createExpenseRequest struct {
	PayerID     string          `json:"payer_id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      []shareRequest  `json:"shares"`
}

type createExpenseResponse struct {
	Expense  expenseResponse `json:"expense"`
	Warnings []string        `json:"warnings,omitempty"`
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	lreq := ledger.ExpenseRequest{
		GroupID:     r.PathValue("id"),
		CallerID:    middleware.GetUserID(r.Context()),
		PayerID:     req.PayerID,
		Description: req.Description,
		Category:    req.Category,
		Notes:       req.Notes,
		Amount:      req.Amount,
	}
	for _, s := range req.Shares {
		lreq.Shares = append(lreq.Shares, ledger.Share{UserID: s.UserID, Amount: s.Amount})
	}

	result, err := h.ledger.CreateExpense(r.Context(), lreq)
	if err != nil {
		writeError(w, err)
		return
	}

	e := result.Expense
	resp := createExpenseResponse{
		Expense: expenseResponse{
			ID:          e.ID,
			PayerID:     e.PayerID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			Notes:       e.Notes,
			CreatedAt:   e.CreatedAt,
			Splits:      make([]splitResponse, 0, len(e.Splits)),
		},
		Warnings: result.Warnings,
	}
	for _, s := range e.Splits {
		resp.Expense.Splits = append(resp.Expense.Splits, splitResponse{
			ID: s.ID, UserID: s.UserID, Amount: s.Amount,
			Settled: s.Settled, SettledAt: s.SettledAt,
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

type settleRequest struct {
	DebtorID    string          `json:"debtor_id"`
	CreditorID  string          `json:"creditor_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type settleResponse struct {
	SettlementID    string          `json:"settlement_id,omitempty"`
	SettledSplitIDs []string        `json:"settled_split_ids"`
	SettledAmount   decimal.Decimal `json:"settled_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Warnings        []string        `json:"warnings,omitempty"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ledger.Settle(r.Context(), ledger.SettleRequest{
		GroupID:     r.PathValue("id"),
		CallerID:    middleware.GetUserID(r.Context()),
		DebtorID:    req.DebtorID,
		CreditorID:  req.CreditorID,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	ids := result.SettledSplitIDs
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, settleResponse{
		SettlementID:    result.SettlementID,
		SettledSplitIDs: ids,
		SettledAmount:   result.SettledAmount,
		RemainingAmount: result.RemainingAmount,
		Warnings:        result.Warnings,
	})
}
