package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Reason tags every ledger entry with the rule that produced it.
type Reason string

const (
	ReasonItemCompleted      Reason = "item_completed"
	ReasonDayCompleted       Reason = "day_completed"
	ReasonChallengeCompleted Reason = "challenge_completed"
	ReasonStreakBonus        Reason = "streak_bonus"
	ReasonLifeGoalCompleted  Reason = "life_goal_completed"
	ReasonManualCorrection   Reason = "manual_correction"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted and live stats are never derived by summing them.
type Entry struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Amount    int            `json:"amount" db:"amount"`
	Reason    Reason         `json:"reason" db:"reason"`
	Metadata  map[string]any `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
