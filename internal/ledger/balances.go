package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/models"
)

// PairBalance is the net position between the queried member and one
// other member of the group.
type PairBalance struct {
	// OtherID is the counterparty member's user ID.
	OtherID string

	// AmountOwed is what the counterparty owes the queried member:
	// the sum of unsettled splits where the queried member paid.
	AmountOwed decimal.Decimal

	// AmountOwes is what the queried member owes the counterparty.
	AmountOwes decimal.Decimal

	// Net is AmountOwed - AmountOwes. Positive means the counterparty
	// owes the queried member.
	Net decimal.Decimal
}

// BalanceSheet is the full balance view for one member of a group.
type BalanceSheet struct {
	UserID string

	// Pairs holds one entry per other member, including zero balances,
	// ordered by counterparty user ID.
	Pairs []PairBalance

	// Totals across all counterparties.
	AmountOwed decimal.Decimal
	AmountOwes decimal.Decimal
	NetBalance decimal.Decimal
}

// computeBalances derives a member's balance sheet from the group's
// outstanding debts and roster. Pure function: always recomputed from
// the committed state it is handed, no cached balance exists anywhere.
func computeBalances(userID string, members []*models.Member, debts []*models.Debt) *BalanceSheet {
	type pair struct{ owed, owes decimal.Decimal }
	byOther := make(map[string]*pair)
	for _, m := range members {
		if m.UserID == userID {
			continue
		}
		byOther[m.UserID] = &pair{owed: decimal.Zero, owes: decimal.Zero}
	}

	for _, d := range debts {
		// Self-owed splits (payer owes themselves) cancel out and are
		// excluded from pair balances.
		switch {
		case d.CreditorID == userID && d.DebtorID != userID:
			if p, ok := byOther[d.DebtorID]; ok {
				p.owed = p.owed.Add(d.Amount)
			}
		case d.DebtorID == userID && d.CreditorID != userID:
			if p, ok := byOther[d.CreditorID]; ok {
				p.owes = p.owes.Add(d.Amount)
			}
		}
	}

	sheet := &BalanceSheet{
		UserID:     userID,
		AmountOwed: decimal.Zero,
		AmountOwes: decimal.Zero,
	}
	for otherID, p := range byOther {
		sheet.Pairs = append(sheet.Pairs, PairBalance{
			OtherID:    otherID,
			AmountOwed: p.owed,
			AmountOwes: p.owes,
			Net:        p.owed.Sub(p.owes),
		})
		sheet.AmountOwed = sheet.AmountOwed.Add(p.owed)
		sheet.AmountOwes = sheet.AmountOwes.Add(p.owes)
	}
	sort.Slice(sheet.Pairs, func(i, j int) bool {
		return sheet.Pairs[i].OtherID < sheet.Pairs[j].OtherID
	})
	sheet.NetBalance = sheet.AmountOwed.Sub(sheet.AmountOwes)

	return sheet
}
