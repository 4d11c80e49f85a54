package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/engageflow/backend/internal/models"
)

// IsLive reports whether a rule may fire at the given instant: the rule is
// active, its duration window has not elapsed, and (when an active-time
// schedule is enabled) the instant falls inside the configured window in
// the rule's timezone.
func IsLive(r *models.AutomationRule, now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !withinDuration(r, now) {
		return false
	}
	return withinActiveWindow(r, now)
}

func withinDuration(r *models.AutomationRule, now time.Time) bool {
	d := r.Duration
	if !d.AutoExpire {
		return true
	}
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return false
	}

	var expiry time.Time
	switch {
	case d.EndDate != nil:
		expiry = *d.EndDate
	case d.StartDate != nil && d.DurationDays > 0:
		expiry = d.StartDate.AddDate(0, 0, d.DurationDays)
	default:
		return true
	}

	return !now.After(expiry)
}

func withinActiveWindow(r *models.AutomationRule, now time.Time) bool {
	at := r.ActiveTime
	if !at.Enabled {
		return true
	}

	// Weekday and time-of-day are taken after converting into the rule's
	// timezone, never from the UTC clock.
	local := now.In(r.Location())
	if !at.ActiveOnWeekday(local.Weekday()) {
		return false
	}

	start, okStart := parseClock(at.StartTime)
	end, okEnd := parseClock(at.EndTime)
	if !okStart || !okEnd {
		return true
	}
	if start == end {
		return true
	}

	minute := local.Hour()*60 + local.Minute()
	if end < start {
		// Window wraps past midnight, e.g. 22:00-06:00.
		return minute >= start || minute < end
	}
	return minute >= start && minute < end
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
