package utils

import "testing"

// Yearly counters seed from the same column the document's year is taken
// from, so the seed query must name that column, not assume created_at.
func TestYearlySeedCondition(t *testing.T) {
	cases := []struct {
		column string
		year   int
		want   string
	}{
		{"bill_date", 2026, "YEAR(bill_date) = 2026"},
		{"expense_date", 2025, "YEAR(expense_date) = 2025"},
		{"created_at", 2026, "YEAR(created_at) = 2026"},
	}
	for _, c := range cases {
		if got := yearlySeedCondition(c.column, c.year); got != c.want {
			t.Errorf("yearlySeedCondition(%q, %d) = %q; want %q", c.column, c.year, got, c.want)
		}
	}
}
