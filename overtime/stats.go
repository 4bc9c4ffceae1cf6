package overtime

import (
	"github.com/shopspring/decimal"
	"github.com/warp/extrahours/generic"
)

// ComputeStats derives the dashboard numbers. Durations go through the
// same clamp as the ledger, so a malformed session never subtracts time.
func ComputeStats(sessions []WorkSession, ledger Snapshot) Stats {
	days := dailySeconds(sessions)

	var totalSecs int64
	for _, secs := range days {
		totalSecs += secs
	}
	total := generic.HoursFromSeconds(totalSecs)

	average := generic.SumHours()
	if len(days) > 0 {
		average = generic.NewHoursFromDecimal(total.Value.Div(decimal.NewFromInt(int64(len(days)))))
	}

	return Stats{
		TotalWorkHours:     total,
		TotalWorkDays:      len(days),
		AverageHoursPerDay: average,
		Ledger:             ledger,
	}
}
