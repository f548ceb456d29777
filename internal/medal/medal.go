package medal

import (
	"time"

	"habitQuestAPI/internal/reward"

	"github.com/google/uuid"
)

// DailyMedal is a write-once record: one medal per user per day. Re-scoring
// the same date returns the stored value unchanged.
type DailyMedal struct {
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Date      time.Time        `json:"date" db:"date"`
	Tier      reward.MedalTier `json:"tier" db:"tier"`
	AwardedAt time.Time        `json:"awarded_at" db:"awarded_at"`
}

type AwardDailyMedalRequest struct {
	Date           string `json:"date"` // YYYY-MM-DD
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
}

type AwardDailyMedalResponse struct {
	Tier           reward.MedalTier `json:"tier"`
	AlreadyAwarded bool             `json:"already_awarded"`
}
