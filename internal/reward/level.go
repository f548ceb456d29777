package reward

import "math"

// TrophyStage is the career stage a user's level maps to.
type TrophyStage string

const (
	StageMunicipal     TrophyStage = "municipal"
	StageEstadual      TrophyStage = "estadual"
	StageRegional      TrophyStage = "regional"
	StageNacional      TrophyStage = "nacional"
	StageInternacional TrophyStage = "internacional"
)

// Level maps cumulative XP to a level: floor(sqrt(xp/100)) + 1, minimum 1.
// Every component that derives a level from XP goes through this function.
func Level(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// StageForLevel maps a level to its trophy stage.
func StageForLevel(level int) TrophyStage {
	switch {
	case level <= 10:
		return StageMunicipal
	case level <= 25:
		return StageEstadual
	case level <= 45:
		return StageRegional
	case level <= 70:
		return StageNacional
	default:
		return StageInternacional
	}
}
