package stats

import (
	"time"

	"habitQuestAPI/internal/reward"

	"github.com/google/uuid"
)

// UserStats is the per-user aggregate the reward engine owns. Read consumers
// (profile, dashboards) get this snapshot; nothing outside the engine writes
// the underlying row.
type UserStats struct {
	UserID           uuid.UUID          `json:"user_id" db:"user_id"`
	XP               int                `json:"xp" db:"xp"`
	Level            int                `json:"level" db:"level"`
	TrophyStage      reward.TrophyStage `json:"trophy_stage"`
	CurrentStreak    int                `json:"current_streak" db:"current_streak"`
	BestStreak       int                `json:"best_streak" db:"best_streak"`
	LastActivityDate *time.Time         `json:"last_activity_date,omitempty" db:"last_activity_date"`
	GoldMedals       int                `json:"gold_medals" db:"gold_medals"`
	SilverMedals     int                `json:"silver_medals" db:"silver_medals"`
	BronzeMedals     int                `json:"bronze_medals" db:"bronze_medals"`
	LifeGoalTrophies int                `json:"life_goal_trophies" db:"life_goal_trophies"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}

// AwardResult reports what a single XP grant did to the aggregate.
type AwardResult struct {
	Amount    int  `json:"amount"`
	NewXP     int  `json:"new_xp"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
}

// Reconciliation compares the ledger sum against the live xp counter. The
// two can legitimately diverge only by manual corrections or a logged
// partial failure; anything else is drift worth investigating.
type Reconciliation struct {
	UserID    uuid.UUID `json:"user_id"`
	LedgerSum int       `json:"ledger_sum"`
	LiveXP    int       `json:"live_xp"`
	Drift     int       `json:"drift"`
}
