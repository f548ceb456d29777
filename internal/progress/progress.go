package progress

import (
	"time"

	"github.com/google/uuid"
)

// Record is the per-(challenge, item, date) completion state. Upsert
// semantics: at most one row per key, and only the 0->1 edge awards XP.
type Record struct {
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	ItemID      uuid.UUID `json:"item_id" db:"item_id"`
	Date        time.Time `json:"date" db:"date"`
	Completed   bool      `json:"completed" db:"completed"`
	LoggedAt    time.Time `json:"logged_at" db:"logged_at"`
}

// DayCompletion marks the first time a (challenge, date) reached 100%.
// Rows are write-once and never deleted.
type DayCompletion struct {
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Date        time.Time `json:"date" db:"date"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// History is a challenge's full progress trail.
type History struct {
	ChallengeID   uuid.UUID        `json:"challenge_id"`
	Records       []*Record        `json:"records"`
	CompletedDays []*DayCompletion `json:"completed_days"`
}
