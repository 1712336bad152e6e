package money

import (
	"encoding/json"
	"testing"
)

func TestFromStringRoundsToTwoPlaces(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"1250.5", "1250.50"},
		{"0.005", "0.01"},
		{"0.004", "0.00"},
		{"-12.345", "-12.35"},
	}
	for _, tc := range cases {
		a, err := FromString(tc.in)
		if err != nil {
			t.Fatalf("FromString(%q): %v", tc.in, err)
		}
		if got := a.String(); got != tc.want {
			t.Fatalf("FromString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFromStringRejectsGarbage(t *testing.T) {
	if _, err := FromString("not-money"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
	if _, err := FromString(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("100.10")
	b := MustParse("0.90")

	if got := a.Add(b).String(); got != "101.00" {
		t.Fatalf("add = %s, want 101.00", got)
	}
	if got := a.Sub(b).String(); got != "99.20" {
		t.Fatalf("sub = %s, want 99.20", got)
	}
	if got := b.MulQty(3).String(); got != "2.70" {
		t.Fatalf("mulqty = %s, want 2.70", got)
	}
	if got := a.Neg().String(); got != "-100.10" {
		t.Fatalf("neg = %s, want -100.10", got)
	}
	if got := Min(a, b); !got.Equal(b) {
		t.Fatalf("min = %s, want %s", got, b)
	}
}

func TestComparisons(t *testing.T) {
	small := MustParse("9.99")
	big := MustParse("10.00")

	if !small.LessThan(big) || big.LessThan(small) {
		t.Fatalf("LessThan ordering broken")
	}
	if !big.GreaterThan(small) {
		t.Fatalf("GreaterThan ordering broken")
	}
	if small.Cmp(big) != -1 || big.Cmp(small) != 1 || small.Cmp(small) != 0 {
		t.Fatalf("Cmp ordering broken")
	}
	if !Zero().IsZero() || Zero().IsPositive() || Zero().IsNegative() {
		t.Fatalf("zero predicates broken")
	}
	if !MustParse("-0.01").IsNegative() {
		t.Fatalf("expected -0.01 to be negative")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(MustParse("1250.5"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"1250.50"` {
		t.Fatalf("marshal = %s, want \"1250.50\"", raw)
	}

	var a Amount
	if err := json.Unmarshal([]byte(`"99.90"`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := a.String(); got != "99.90" {
		t.Fatalf("unmarshal = %s, want 99.90", got)
	}
	// Bare numbers also appear in hand-written fixtures.
	if err := json.Unmarshal([]byte(`12.5`), &a); err != nil {
		t.Fatalf("unmarshal bare number: %v", err)
	}
	if got := a.String(); got != "12.50" {
		t.Fatalf("unmarshal bare number = %s, want 12.50", got)
	}
}

func TestSQLScan(t *testing.T) {
	var a Amount
	if err := a.Scan("45000.00"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if got := a.String(); got != "45000.00" {
		t.Fatalf("scan string = %s", got)
	}
	if err := a.Scan([]byte("7.25")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if got := a.String(); got != "7.25" {
		t.Fatalf("scan bytes = %s", got)
	}
	if err := a.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !a.IsZero() {
		t.Fatalf("scan nil should reset to zero, got %s", a)
	}
	if err := a.Scan(struct{}{}); err == nil {
		t.Fatalf("expected error scanning unsupported type")
	}
}
