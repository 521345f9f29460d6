package quota

import "time"

// PerRunCeiling bounds how many page requests a single sync may issue no
// matter how large the configured daily quota is.
const PerRunCeiling = 3

const dateLayout = "2006-01-02"

// Tracker is the daily call budget of one source. It is plain value
// logic; the caller loads it from the source row and writes it back.
type Tracker struct {
	CallsUsedToday int
	DailyCallQuota int
	ResetDate      string
}

// Rollover zeroes the used counter when the reset date is unset or lies
// before today. Must be called before Remaining or Budget.
func (t *Tracker) Rollover(now time.Time) {
	today := now.Format(dateLayout)
	if t.ResetDate == today {
		return
	}
	if t.ResetDate != "" && t.ResetDate > today {
		// Clock went backwards; keep the counter rather than grant a
		// fresh budget.
		return
	}
	t.CallsUsedToday = 0
	t.ResetDate = today
}

func (t *Tracker) Remaining() int {
	left := t.DailyCallQuota - t.CallsUsedToday
	if left < 0 {
		return 0
	}
	return left
}

// Budget is the number of page requests a run may issue:
// min(remaining, maxPages, PerRunCeiling).
func (t *Tracker) Budget(maxPages int) int {
	budget := t.Remaining()
	if maxPages > 0 && maxPages < budget {
		budget = maxPages
	}
	if budget > PerRunCeiling {
		budget = PerRunCeiling
	}
	return budget
}

// Consume records page requests actually issued. Retried attempts of the
// same page are not counted by callers.
func (t *Tracker) Consume(calls int) {
	if calls > 0 {
		t.CallsUsedToday += calls
	}
}
