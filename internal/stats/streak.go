package stats

import "time"

// ComputeStreak counts consecutive UTC calendar days with at least one
// completion. The run must end today or yesterday; a run ending earlier is
// broken and yields 0.
func ComputeStreak(completions []time.Time, now time.Time) int {
	if len(completions) == 0 {
		return 0
	}
	days := make(map[time.Time]struct{}, len(completions))
	for _, c := range completions {
		days[startOfDay(c)] = struct{}{}
	}

	cursor := startOfDay(now)
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}
