package settlement

import (
	"testing"
	"time"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
)

func entry(id string, debt string, paid string, createdAt time.Time) domain.DebtEntry {
	return domain.DebtEntry{
		ID:         id,
		AgentID:    "agent-1",
		DebtAmount: money.MustParse(debt),
		PaidAmount: money.MustParse(paid),
		CreatedAt:  createdAt,
	}
}

func TestApplyOldestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := SelectEntries([]domain.DebtEntry{
		entry("e3", "300.00", "0.00", base.Add(48*time.Hour)),
		entry("e1", "100.00", "0.00", base),
		entry("e2", "200.00", "0.00", base.Add(24*time.Hour)),
	}, domain.TargetAll())

	out := Apply(entries, money.MustParse("250.00"), base.Add(72*time.Hour))

	if got := out.Applied.String(); got != "250.00" {
		t.Fatalf("applied = %s, want 250.00", got)
	}
	if !out.Remainder.IsZero() {
		t.Fatalf("remainder = %s, want 0.00", out.Remainder)
	}
	if len(out.Updated) != 2 {
		t.Fatalf("updated %d entries, want 2", len(out.Updated))
	}
	first, second := out.Updated[0], out.Updated[1]
	if first.ID != "e1" || !first.IsPaid || first.PaidAt == nil {
		t.Fatalf("oldest entry not fully settled: %+v", first)
	}
	if second.ID != "e2" || second.IsPaid {
		t.Fatalf("second entry should be partial: %+v", second)
	}
	if got := second.PaidAmount.String(); got != "150.00" {
		t.Fatalf("second entry paid = %s, want 150.00", got)
	}
	if got := second.RemainingDebt().String(); got != "50.00" {
		t.Fatalf("second entry remaining = %s, want 50.00", got)
	}
}

func TestApplyConservation(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []domain.DebtEntry{
		entry("e1", "80.00", "30.00", base),
		entry("e2", "120.50", "0.00", base.Add(time.Hour)),
	}
	for _, amount := range []string{"0.01", "50.00", "170.50", "500.00"} {
		out := Apply(entries, money.MustParse(amount), base.Add(2*time.Hour))
		sum := out.Applied.Add(out.Remainder)
		if !sum.Equal(money.MustParse(amount)) {
			t.Fatalf("amount %s: applied %s + remainder %s != %s",
				amount, out.Applied, out.Remainder, amount)
		}
	}
}

func TestApplyOverpaymentRemainder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []domain.DebtEntry{entry("e1", "100.00", "0.00", base)}

	out := Apply(entries, money.MustParse("150.00"), base.Add(time.Hour))

	if got := out.Applied.String(); got != "100.00" {
		t.Fatalf("applied = %s, want 100.00", got)
	}
	if got := out.Remainder.String(); got != "50.00" {
		t.Fatalf("remainder = %s, want 50.00", got)
	}
	if !out.Updated[0].IsPaid {
		t.Fatalf("entry should be fully paid")
	}
}

func TestSelectEntriesSkipsPaidAndFiltersTarget(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	paid := entry("e1", "100.00", "100.00", base)
	paid.IsPaid = true
	all := []domain.DebtEntry{
		paid,
		entry("e2", "200.00", "0.00", base.Add(time.Hour)),
		entry("e3", "300.00", "0.00", base.Add(2*time.Hour)),
	}

	selected := SelectEntries(all, domain.TargetAll())
	if len(selected) != 2 {
		t.Fatalf("selected %d entries, want 2", len(selected))
	}

	targeted := SelectEntries(all, domain.TargetEntries([]string{"e3"}))
	if len(targeted) != 1 || targeted[0].ID != "e3" {
		t.Fatalf("targeted selection wrong: %+v", targeted)
	}

	// An empty ID list is the same as targeting everything.
	allAgain := SelectEntries(all, domain.TargetEntries(nil))
	if len(allAgain) != 2 {
		t.Fatalf("empty target selected %d entries, want 2", len(allAgain))
	}
}

func TestSelectEntriesTieBreakOnID(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	selected := SelectEntries([]domain.DebtEntry{
		entry("e2", "10.00", "0.00", base),
		entry("e1", "10.00", "0.00", base),
	}, domain.TargetAll())
	if selected[0].ID != "e1" || selected[1].ID != "e2" {
		t.Fatalf("tie-break order wrong: %s, %s", selected[0].ID, selected[1].ID)
	}
}

func TestApplyZeroAmountTouchesNothing(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := Apply([]domain.DebtEntry{entry("e1", "100.00", "0.00", base)},
		money.Zero(), base)
	if len(out.Updated) != 0 || !out.Applied.IsZero() {
		t.Fatalf("zero payment changed entries: %+v", out)
	}
}
