package goal

import (
	"time"

	"github.com/google/uuid"
)

// LifeGoal completion is a one-way transition; completed_at doubles as the
// timestamp the hourly rate-limit window is counted against.
type LifeGoal struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type CreateGoalRequest struct {
	Title string `json:"title"`
}

type CompleteGoalResponse struct {
	XPAwarded int  `json:"xp_awarded"`
	LeveledUp bool `json:"leveled_up"`
	NewLevel  int  `json:"new_level"`
	Trophies  int  `json:"trophies"`
}
