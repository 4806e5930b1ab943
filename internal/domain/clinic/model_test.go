package clinic

import (
	"testing"
	"time"
)

func TestQuotaLimits_MonthlyLimit(t *testing.T) {
	q := QuotaLimits{Free: 50, Pro: 500, Enterprise: 5000}

	cases := []struct {
		plan string
		want int
	}{
		{"free", 50},
		{"", 50},
		{"starter", 50},
		{"pro", 500},
		{"pro_monthly", 500},
		{"PRO-ANNUAL", 500},
		{"enterprise", 5000},
		{"enterprise_pro", 5000}, // enterprise wins over pro
		{"Enterprise-2026", 5000},
	}
	for _, tc := range cases {
		if got := q.MonthlyLimit(tc.plan); got != tc.want {
			t.Errorf("MonthlyLimit(%q) = %d, want %d", tc.plan, got, tc.want)
		}
	}
}

func TestSameBillingMonth(t *testing.T) {
	utc := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	}

	if !SameBillingMonth(utc(2026, time.March, 1), utc(2026, time.March, 31)) {
		t.Error("same UTC month should match")
	}
	if SameBillingMonth(utc(2026, time.March, 31), utc(2026, time.April, 1)) {
		t.Error("adjacent months should not match")
	}
	if SameBillingMonth(utc(2025, time.March, 15), utc(2026, time.March, 15)) {
		t.Error("same month of different years should not match")
	}

	// Zone-local month boundaries must not leak in: 2026-03-31 23:00 UTC is
	// April 1 in UTC+2 but still March in UTC.
	plus2 := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2026, time.April, 1, 1, 0, 0, 0, plus2)
	if !SameBillingMonth(local, utc(2026, time.March, 31)) {
		t.Error("comparison must be done in UTC")
	}
}
