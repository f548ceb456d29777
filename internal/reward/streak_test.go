package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name          string
		prev          StreakState
		activity      string
		wantCurrent   int
		wantBest      int
		wantIncreased bool
		wantUnchanged bool
	}{
		{
			name:        "no prior activity starts at 1",
			prev:        StreakState{},
			activity:    "2024-01-05",
			wantCurrent: 1,
			wantBest:    1,
		},
		{
			name:          "consecutive day extends",
			prev:          StreakState{Current: 3, Best: 5, LastActivity: datePtr("2024-01-05")},
			activity:      "2024-01-06",
			wantCurrent:   4,
			wantBest:      5,
			wantIncreased: true,
		},
		{
			name:          "extension past best ratchets best",
			prev:          StreakState{Current: 5, Best: 5, LastActivity: datePtr("2024-01-05")},
			activity:      "2024-01-06",
			wantCurrent:   6,
			wantBest:      6,
			wantIncreased: true,
		},
		{
			name:          "same day is a no-op",
			prev:          StreakState{Current: 3, Best: 5, LastActivity: datePtr("2024-01-05")},
			activity:      "2024-01-05",
			wantCurrent:   3,
			wantBest:      5,
			wantUnchanged: true,
		},
		{
			name:          "back-dated activity is a no-op",
			prev:          StreakState{Current: 3, Best: 5, LastActivity: datePtr("2024-01-05")},
			activity:      "2024-01-03",
			wantCurrent:   3,
			wantBest:      5,
			wantUnchanged: true,
		},
		{
			name:        "two day gap resets to 1",
			prev:        StreakState{Current: 7, Best: 9, LastActivity: datePtr("2024-01-05")},
			activity:    "2024-01-07",
			wantCurrent: 1,
			wantBest:    9,
		},
		{
			name:        "long gap resets to 1",
			prev:        StreakState{Current: 2, Best: 2, LastActivity: datePtr("2023-11-01")},
			activity:    "2024-01-07",
			wantCurrent: 1,
			wantBest:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NextStreak(tt.prev, date(tt.activity))
			assert.Equal(t, tt.wantCurrent, tr.Current)
			assert.Equal(t, tt.wantBest, tr.Best)
			assert.Equal(t, tt.wantIncreased, tr.Increased)
			assert.Equal(t, tt.wantUnchanged, tr.Unchanged)
		})
	}
}

// A completion of an already-counted earlier date must not rewind the
// streak clock; without the back-dated guard the 01-12 call below would
// re-extend off 01-11 after 01-10 had been filled in retroactively.
func TestNextStreakBackdatedCannotReExtend(t *testing.T) {
	state := StreakState{Current: 2, Best: 2, LastActivity: datePtr("2024-01-11")}

	tr := NextStreak(state, date("2024-01-10"))
	assert.True(t, tr.Unchanged)
	assert.Equal(t, 2, tr.Current)

	tr = NextStreak(state, date("2024-01-12"))
	assert.Equal(t, 3, tr.Current)
	assert.True(t, tr.Increased)
}

func TestNextStreakBestNeverDecreases(t *testing.T) {
	state := StreakState{}
	dates := []string{
		"2024-01-01", "2024-01-02", "2024-01-03", // build a streak of 3
		"2024-01-10",               // reset
		"2024-01-11", "2024-01-11", // extend, then replay same day
		"2024-02-01", // reset again
	}

	best := 0
	for _, d := range dates {
		tr := NextStreak(state, date(d))
		assert.GreaterOrEqual(t, tr.Best, best, "best decreased at %s", d)
		best = tr.Best
		if !tr.Unchanged {
			state = StreakState{Current: tr.Current, Best: tr.Best, LastActivity: datePtr(d)}
		}
	}
	assert.Equal(t, 3, best)
}

func TestStreakBonusXP(t *testing.T) {
	rules := DefaultRules()

	assert.Equal(t, 0, rules.StreakBonusXP(0))
	assert.Equal(t, 0, rules.StreakBonusXP(1), "day 1 of a fresh streak earns nothing")
	assert.Equal(t, 20, rules.StreakBonusXP(2))
	assert.Equal(t, 25, rules.StreakBonusXP(3))
	assert.Equal(t, 60, rules.StreakBonusXP(10))
}
