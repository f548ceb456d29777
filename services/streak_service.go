package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitQuestAPI/internal/ledger"
	"habitQuestAPI/internal/reward"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StreakService struct {
	db    *pgxpool.Pool
	stats *StatsService
	rules reward.Rules
}

func NewStreakService(db *pgxpool.Pool, stats *StatsService, rules reward.Rules) *StreakService {
	return &StreakService{db: db, stats: stats, rules: rules}
}

type StreakResult struct {
	CurrentStreak   int  `json:"current_streak"`
	BestStreak      int  `json:"best_streak"`
	StreakIncreased bool `json:"streak_increased"`
	BonusXP         int  `json:"bonus_xp"`
}

// TouchStreak records activity for one calendar date. Repeated and
// back-dated calls change nothing; a consecutive day extends the streak and
// pays the progressive bonus from streak 2 onward; any gap resets to 1
// without a bonus.
func (s *StreakService) TouchStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time) (*StreakResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin streak transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	prev := reward.StreakState{}
	err = tx.QueryRow(ctx, `
	SELECT current_streak, best_streak, last_activity_date
	FROM user_stats
	WHERE user_id = $1
	FOR UPDATE
	`, userID).Scan(&prev.Current, &prev.Best, &prev.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock streak state: %w", err)
	}

	tr := reward.NextStreak(prev, activityDate)
	if tr.Unchanged {
		return &StreakResult{CurrentStreak: tr.Current, BestStreak: tr.Best}, nil
	}

	_, err = tx.Exec(ctx, `
	UPDATE user_stats
	SET current_streak = $2, best_streak = $3, last_activity_date = $4, updated_at = NOW()
	WHERE user_id = $1
	`, userID, tr.Current, tr.Best, activityDate)
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit streak update: %w", err)
	}

	result := &StreakResult{
		CurrentStreak:   tr.Current,
		BestStreak:      tr.Best,
		StreakIncreased: tr.Increased,
	}

	if tr.Increased {
		if bonus := s.rules.StreakBonusXP(tr.Current); bonus > 0 {
			_, err := s.stats.AwardXP(ctx, userID, bonus, ledger.ReasonStreakBonus, map[string]any{
				"streak": tr.Current,
				"date":   activityDate.Format("2006-01-02"),
			})
			if err != nil {
				// Streak counters are already committed; the bonus can be
				// reconciled out-of-band.
				log.Printf("TouchStreak: user %s streak %d bonus award failed: %v", userID, tr.Current, err)
				return result, fmt.Errorf("%w: streak bonus: %v", ErrAwardIncomplete, err)
			}
			result.BonusXP = bonus
		}
	}

	return result, nil
}
