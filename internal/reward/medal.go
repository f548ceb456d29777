package reward

// MedalTier is the daily medal outcome. TierNone means no medal and no
// record is written for that day.
type MedalTier string

const (
	TierNone   MedalTier = ""
	TierGold   MedalTier = "gold"
	TierSilver MedalTier = "silver"
	TierBronze MedalTier = "bronze"
)

// DailyMedalTier scores one day's checklist: gold at 100%, silver at 75%,
// bronze at 50%, nothing below that or for an empty checklist.
func DailyMedalTier(completed, total int) MedalTier {
	if total <= 0 || completed <= 0 {
		return TierNone
	}
	ratio := float64(completed) / float64(total)
	switch {
	case ratio >= 1:
		return TierGold
	case ratio >= 0.75:
		return TierSilver
	case ratio >= 0.5:
		return TierBronze
	default:
		return TierNone
	}
}
