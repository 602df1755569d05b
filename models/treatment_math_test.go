package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPlanTotalCost(t *testing.T) {
	cases := []struct {
		costPerSession string
		totalSessions  int
		want           string
	}{
		{"1500", 6, "9000"},
		{"2499.50", 4, "9998"},
		{"0", 8, "0"},
	}
	for _, c := range cases {
		cost := decimal.RequireFromString(c.costPerSession)
		want := decimal.RequireFromString(c.want)
		if got := PlanTotalCost(cost, c.totalSessions); got.Cmp(want) != 0 {
			t.Errorf("PlanTotalCost(%s, %d) = %s; want %s",
				c.costPerSession, c.totalSessions, got.String(), want.String())
		}
	}
}

func TestValidateSessionNumber(t *testing.T) {
	if err := validateSessionNumber(1, 6); err != nil {
		t.Errorf("session 1 of 6 should pass: %v", err)
	}
	if err := validateSessionNumber(6, 6); err != nil {
		t.Errorf("session 6 of 6 should pass: %v", err)
	}
	if err := validateSessionNumber(7, 6); err == nil {
		t.Errorf("session 7 of 6 should fail")
	}
	if err := validateSessionNumber(0, 6); err == nil {
		t.Errorf("session 0 should fail")
	}
	if err := validateSessionNumber(-1, 6); err == nil {
		t.Errorf("negative session should fail")
	}
}
