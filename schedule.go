package digestbus

import "time"

// Schedule computes the next fire time for a cadence. The base offset is
// added to now, then the time of day is pinned to Hour:Minute so deliveries
// cluster at a predictable hour regardless of when the triggering run
// happened to execute.
//
// The biweekly offset and the delivery hour differ between the self-chained
// reschedule and the reactivation path (14 days at 20:00 vs 3 days at
// 17:08). Both are kept configurable rather than collapsed into a single
// value; see config.yaml.
type Schedule struct {
	Hour         int
	Minute       int
	BiweeklyDays int
}

// Next returns the next fire time after now for the given frequency.
// Unknown frequencies fall back to weekly.
func (s Schedule) Next(now time.Time, frequency string) time.Time {
	var next time.Time
	switch frequency {
	case FrequencyDaily:
		next = now.AddDate(0, 0, 1)
	case FrequencyWeekly:
		next = now.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		next = now.AddDate(0, 0, s.BiweeklyDays)
	default:
		next = now.AddDate(0, 0, 7)
	}

	return time.Date(next.Year(), next.Month(), next.Day(), s.Hour, s.Minute, 0, 0, next.Location())
}
