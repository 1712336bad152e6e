// Package settlement allocates an incoming payment across a set of
// outstanding debt entries, oldest first. It is pure: callers load the
// candidate entries, run Apply, and persist the returned updates inside
// whatever transaction they are holding.
package settlement

import (
	"sort"
	"time"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
)

// Allocation records how much of a payment landed on one entry.
type Allocation struct {
	EntryID string       `json:"entry_id"`
	Applied money.Amount `json:"applied"`
}

// Outcome is the result of allocating one payment. The conservation law
// Applied + Remainder == payment amount always holds.
type Outcome struct {
	Allocations []Allocation
	Updated     []domain.DebtEntry
	Applied     money.Amount
	Remainder   money.Amount
}

// SelectEntries returns the unpaid entries matched by target, sorted by
// creation time ascending so the oldest debt settles first. Entries with
// equal timestamps tie-break on ID to keep the order deterministic.
func SelectEntries(entries []domain.DebtEntry, target domain.PaymentTarget) []domain.DebtEntry {
	selected := make([]domain.DebtEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsPaid || !target.Contains(e.ID) {
			continue
		}
		selected = append(selected, e)
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].ID < selected[j].ID
		}
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	return selected
}

// Apply walks entries in the given order, paying each one off up to its
// remaining debt until the amount runs out. Entries are value copies;
// the caller persists Outcome.Updated. An entry whose remaining debt
// reaches zero is marked paid with paidAt as its settlement time.
func Apply(entries []domain.DebtEntry, amount money.Amount, paidAt time.Time) Outcome {
	out := Outcome{
		Applied:   money.Zero(),
		Remainder: amount,
	}
	for _, entry := range entries {
		if !out.Remainder.IsPositive() {
			break
		}
		remaining := entry.RemainingDebt()
		if !remaining.IsPositive() {
			continue
		}
		toApply := money.Min(out.Remainder, remaining)
		entry.PaidAmount = entry.PaidAmount.Add(toApply)
		if entry.PaidAmount.Cmp(entry.DebtAmount) >= 0 {
			entry.IsPaid = true
			t := paidAt
			entry.PaidAt = &t
		}
		out.Allocations = append(out.Allocations, Allocation{EntryID: entry.ID, Applied: toApply})
		out.Updated = append(out.Updated, entry)
		out.Applied = out.Applied.Add(toApply)
		out.Remainder = out.Remainder.Sub(toApply)
	}
	return out
}
