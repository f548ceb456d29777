package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Challenge struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	Title         string     `json:"title" db:"title"`
	DurationDays  int        `json:"duration_days" db:"duration_days"`
	StartDate     time.Time  `json:"start_date" db:"start_date"`
	EndDate       time.Time  `json:"end_date" db:"end_date"`
	CompletedDays int        `json:"completed_days" db:"completed_days"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Item struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Title       string    `json:"title" db:"title"`
	Priority    Priority  `json:"priority" db:"priority"`
	ReminderAt  *string   `json:"reminder_at,omitempty" db:"reminder_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreateChallengeRequest struct {
	Title        string   `json:"title"`
	DurationDays int      `json:"duration_days"`
	StartDate    string   `json:"start_date"` // YYYY-MM-DD
	Items        []string `json:"items"`
}

// ChecklistEntry is one item of a challenge's checklist for a given date,
// joined with its progress record (absent record means not completed).
type ChecklistEntry struct {
	Item
	Completed bool `json:"completed"`
}

type Checklist struct {
	ChallengeID uuid.UUID        `json:"challenge_id"`
	Date        string           `json:"date"`
	Entries     []ChecklistEntry `json:"entries"`
	DayComplete bool             `json:"day_complete"`
}
