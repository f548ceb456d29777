package reward

import "time"

// StreakState is the streak portion of a user's stats row.
type StreakState struct {
	Current      int
	Best         int
	LastActivity *time.Time
}

// StreakTransition is the outcome of applying one activity date to a streak.
type StreakTransition struct {
	Current   int
	Best      int
	Increased bool
	// Unchanged means the activity date was not newer than the last
	// recorded one and nothing changed, including last_activity_date.
	Unchanged bool
}

// NextStreak applies activityDate to prev. Consecutive calendar days extend
// the streak, a gap of more than one day (or no history) resets it to 1, a
// repeated or back-dated date is a no-op. Best only ever ratchets upward.
func NextStreak(prev StreakState, activityDate time.Time) StreakTransition {
	day := dateOnly(activityDate)

	if prev.LastActivity != nil {
		last := dateOnly(*prev.LastActivity)
		if !day.After(last) {
			// Retroactive completions of already-counted dates must not
			// rewind last_activity_date and re-extend the streak later.
			return StreakTransition{Current: prev.Current, Best: prev.Best, Unchanged: true}
		}
		if day.Equal(last.AddDate(0, 0, 1)) {
			current := prev.Current + 1
			return StreakTransition{
				Current:   current,
				Best:      max(prev.Best, current),
				Increased: true,
			}
		}
	}

	return StreakTransition{Current: 1, Best: max(prev.Best, 1)}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
