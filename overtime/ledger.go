/*
ledger.go - Extra-hours derivation and usage validation

PURPOSE:
  Turns raw work sessions into extra hours and checks usage against what
  is available. Pure functions over two lists; no I/O, no caching.

ACCRUAL RULE:
  worked(day) = sum of (end - start) over the day's sessions
  extra(day)  = max(0, worked(day) - 8h)
  generated   = sum of extra(day)

  Session durations only look at time of day. A session whose end is
  earlier than its start counts as zero, both here and in dashboard stats.

AVAILABILITY:
  available = max(0, generated - used)

  When validating an update, the record being edited is left out of used.

EXAMPLE:
  2024-01-01 09:00-18:30 -> 9.5h worked -> 1.5h extra
  2024-01-02 09:00-17:00 -> 8.0h worked -> 0h extra (omitted)
  generated = 1.5h

SEE ALSO:
  - generic/balance.go: Available / CanConsume
  - service.go: runs Derive + ValidateUsage inside a store transaction
*/
package overtime

import (
	"github.com/warp/extrahours/generic"
)

// StandardDayHours is the fixed length of a normal working day.
const StandardDayHours = 8

const standardDaySeconds = StandardDayHours * 3600

// =============================================================================
// DAILY AGGREGATION
// =============================================================================

// sessionSeconds is end - start in seconds, floored at zero.
func sessionSeconds(s WorkSession) int64 {
	d := s.End.Sub(s.Start)
	if d < 0 {
		return 0
	}
	return d
}

// SessionDuration returns how long a single session lasted.
func SessionDuration(s WorkSession) generic.Hours {
	return generic.HoursFromSeconds(sessionSeconds(s))
}

func dailySeconds(sessions []WorkSession) map[generic.Date]int64 {
	byDay := make(map[generic.Date]int64)
	for _, s := range sessions {
		byDay[s.Date] += sessionSeconds(s)
	}
	return byDay
}

// DailyWorked maps each date to the total hours worked that day.
func DailyWorked(sessions []WorkSession) map[generic.Date]generic.Hours {
	worked := make(map[generic.Date]generic.Hours)
	for day, secs := range dailySeconds(sessions) {
		worked[day] = generic.HoursFromSeconds(secs)
	}
	return worked
}

// =============================================================================
// EXTRA-HOURS DERIVATION
// =============================================================================

// ExtraHours returns the per-day extra hours (positive days only) and
// their total. The total is the sum of the breakdown values.
func ExtraHours(sessions []WorkSession) (map[generic.Date]generic.Hours, generic.Hours) {
	breakdown := make(map[generic.Date]generic.Hours)
	total := generic.SumHours()
	for day, secs := range dailySeconds(sessions) {
		extra := secs - standardDaySeconds
		if extra <= 0 {
			continue
		}
		h := generic.HoursFromSeconds(extra)
		breakdown[day] = h
		total = total.Add(h)
	}
	return breakdown, total
}

// UsedHours sums hours_used over usages, skipping excludeID.
func UsedHours(usages []UsageRecord, excludeID string) generic.Hours {
	used := generic.SumHours()
	for _, u := range usages {
		if excludeID != "" && u.ID == excludeID {
			continue
		}
		used = used.Add(u.HoursUsed)
	}
	return used
}

// Derive builds the ledger snapshot from a user's sessions and usages.
// excludeID leaves one usage record out of the used total; pass "" to
// count them all.
func Derive(sessions []WorkSession, usages []UsageRecord, excludeID string) Snapshot {
	breakdown, generated := ExtraHours(sessions)
	used := UsedHours(usages, excludeID)
	balance := generic.Balance{Generated: generated, Used: used}

	return Snapshot{
		TotalGenerated: generated,
		TotalUsed:      used,
		Available:      balance.Available(),
		Breakdown:      breakdown,
	}
}

// =============================================================================
// USAGE VALIDATION
// =============================================================================

// ValidateUsage rejects requested hours that are not positive or that
// exceed the snapshot's available balance.
func ValidateUsage(snap Snapshot, requested generic.Hours) error {
	if !requested.IsPositive() {
		return generic.NewValidationError("hours_used", "hours_used must be a positive number")
	}
	if !snap.Balance().CanConsume(requested) {
		return &InsufficientHoursError{
			Available: snap.Available,
			Requested: requested,
		}
	}
	return nil
}
