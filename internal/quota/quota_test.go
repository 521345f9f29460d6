package quota

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	at, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return at
}

func TestRollover_NewDayResetsCounter(t *testing.T) {
	tr := Tracker{CallsUsedToday: 150, DailyCallQuota: 180, ResetDate: "2026-08-29"}
	tr.Rollover(day("2026-08-30"))
	if tr.CallsUsedToday != 0 {
		t.Fatalf("calls_used=%d want=0", tr.CallsUsedToday)
	}
	if tr.ResetDate != "2026-08-30" {
		t.Fatalf("reset_date=%s want=2026-08-30", tr.ResetDate)
	}
}

func TestRollover_SameDayKeepsCounter(t *testing.T) {
	tr := Tracker{CallsUsedToday: 42, DailyCallQuota: 180, ResetDate: "2026-08-30"}
	tr.Rollover(day("2026-08-30"))
	if tr.CallsUsedToday != 42 {
		t.Fatalf("calls_used=%d want=42", tr.CallsUsedToday)
	}
}

func TestRollover_EmptyDateInitializes(t *testing.T) {
	tr := Tracker{CallsUsedToday: 7, DailyCallQuota: 180}
	tr.Rollover(day("2026-08-30"))
	if tr.CallsUsedToday != 0 || tr.ResetDate != "2026-08-30" {
		t.Fatalf("tracker=%+v want zeroed counter on today", tr)
	}
}

func TestRollover_ClockWentBackwards(t *testing.T) {
	tr := Tracker{CallsUsedToday: 99, DailyCallQuota: 180, ResetDate: "2026-09-01"}
	tr.Rollover(day("2026-08-30"))
	if tr.CallsUsedToday != 99 {
		t.Fatalf("calls_used=%d want=99 (no fresh budget)", tr.CallsUsedToday)
	}
	if tr.ResetDate != "2026-09-01" {
		t.Fatalf("reset_date=%s want unchanged", tr.ResetDate)
	}
}

func TestBudget_MinOfRemainingMaxPagesCeiling(t *testing.T) {
	cases := []struct {
		used, quota, maxPages, want int
	}{
		{0, 180, 10, 3},  // ceiling wins
		{178, 180, 5, 2}, // remaining wins
		{0, 180, 1, 1},   // maxPages wins
		{180, 180, 3, 0}, // exhausted
		{200, 180, 3, 0}, // over-consumed clamps to zero
		{0, 180, 0, 3},   // maxPages unset falls back to ceiling
	}
	for _, tc := range cases {
		tr := Tracker{CallsUsedToday: tc.used, DailyCallQuota: tc.quota, ResetDate: "2026-08-30"}
		if got := tr.Budget(tc.maxPages); got != tc.want {
			t.Fatalf("Budget(used=%d quota=%d maxPages=%d)=%d want=%d",
				tc.used, tc.quota, tc.maxPages, got, tc.want)
		}
	}
}

func TestConsume_IgnoresNonPositive(t *testing.T) {
	tr := Tracker{CallsUsedToday: 5, DailyCallQuota: 180}
	tr.Consume(2)
	tr.Consume(0)
	tr.Consume(-3)
	if tr.CallsUsedToday != 7 {
		t.Fatalf("calls_used=%d want=7", tr.CallsUsedToday)
	}
}
