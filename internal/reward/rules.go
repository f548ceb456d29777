package reward

// Rules carries every XP amount, threshold and formula the engine uses.
// A single Rules value is injected into all services so the same rule set
// applies on every code path.
type Rules struct {
	ItemXP       int // per checklist item, on a 0->1 completion edge
	DayBonusXP   int // all items of a challenge done for one date
	GoalXP       int // life goal completion
	GoalsPerHour int // sliding-window cap on life goal completions
}

func DefaultRules() Rules {
	return Rules{
		ItemXP:       10,
		DayBonusXP:   100,
		GoalXP:       500,
		GoalsPerHour: 5,
	}
}

// ChallengeBonusXP is the one-time bonus for finishing a whole challenge:
// half of what the day bonuses over the full duration were worth.
func (r Rules) ChallengeBonusXP(durationDays int) int {
	return durationDays * r.DayBonusXP / 2
}

// StreakBonusXP grows with every consecutive day. A fresh streak (day 1)
// earns nothing; the bonus starts at streak 2.
func (r Rules) StreakBonusXP(currentStreak int) int {
	if currentStreak < 2 {
		return 0
	}
	return 10 + currentStreak*5
}
