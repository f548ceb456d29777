package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitQuestAPI/internal/ledger"
	"habitQuestAPI/internal/progress"
	"habitQuestAPI/internal/reward"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChecklistService runs the completion cascade: one checklist flip can pay
// the item XP, then the day bonus, then the challenge-completion bonus, then
// touch the streak. Each stage is individually guarded so replays and
// retries never award twice.
type ChecklistService struct {
	db      *pgxpool.Pool
	stats   *StatsService
	streaks StreakToucher
	rules   reward.Rules
}

// StreakToucher is the slice of the streak engine the cascade needs;
// satisfied by *StreakService.
type StreakToucher interface {
	TouchStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time) (*StreakResult, error)
}

func NewChecklistService(db *pgxpool.Pool, stats *StatsService, streaks StreakToucher, rules reward.Rules) *ChecklistService {
	return &ChecklistService{db: db, stats: stats, streaks: streaks, rules: rules}
}

type CompletionResult struct {
	XPAwarded          int           `json:"xp_awarded"`
	LeveledUp          bool          `json:"leveled_up"`
	NewLevel           int           `json:"new_level"`
	DayComplete        bool          `json:"day_complete"`
	ChallengeCompleted bool          `json:"challenge_completed"`
	Streak             *StreakResult `json:"streak,omitempty"`
}

// SetItemCompletion upserts the progress record for (challenge, item, date)
// and, only on a genuine not-completed -> completed edge, runs the award
// cascade. Marking an item incomplete persists the flag without reversing
// any previously granted XP.
func (s *ChecklistService) SetItemCompletion(ctx context.Context, clerkID string, challengeID, itemID uuid.UUID, date time.Time, completed bool) (*CompletionResult, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	// Ownership gate: the item must belong to the challenge and the
	// challenge to the acting user. Rejected before any write.
	var durationDays int
	var isActive bool
	err = s.db.QueryRow(ctx, `
	SELECT c.duration_days, c.is_active
	FROM challenges c
	JOIN challenge_items ci ON ci.challenge_id = c.id
	WHERE c.id = $1 AND ci.id = $2 AND c.user_id = $3
	`, challengeID, itemID, userID).Scan(&durationDays, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to validate challenge item: %w", err)
	}

	wasCompleted, err := s.upsertProgress(ctx, challengeID, itemID, date, completed)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{}

	// Only a 0->1 edge on a still-active challenge awards anything. Edits
	// on a completed challenge, re-confirmations and uncompletions are all
	// persisted as plain no-award writes.
	if !isActive || !completed || wasCompleted {
		result.DayComplete, _, err = s.dayCompletion(ctx, challengeID, date)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	itemAward, err := s.stats.AwardXP(ctx, userID, s.rules.ItemXP, ledger.ReasonItemCompleted, map[string]any{
		"challenge_id": challengeID,
		"item_id":      itemID,
		"date":         date.Format("2006-01-02"),
	})
	if err != nil {
		log.Printf("SetItemCompletion: user %s challenge %s item %s date %s: item award failed: %v",
			userID, challengeID, itemID, date.Format("2006-01-02"), err)
		return result, fmt.Errorf("%w: item award: %v", ErrAwardIncomplete, err)
	}
	result.XPAwarded += itemAward.Amount
	result.LeveledUp = itemAward.LeveledUp
	result.NewLevel = itemAward.NewLevel

	dayComplete, total, err := s.dayCompletion(ctx, challengeID, date)
	if err != nil {
		return result, err
	}
	result.DayComplete = dayComplete

	if !dayComplete || total == 0 {
		return result, nil
	}

	firstTime, err := s.markDayCompleted(ctx, challengeID, date)
	if err != nil {
		return result, err
	}
	if !firstTime {
		return result, nil
	}

	dayAward, err := s.stats.AwardXP(ctx, userID, s.rules.DayBonusXP, ledger.ReasonDayCompleted, map[string]any{
		"challenge_id": challengeID,
		"date":         date.Format("2006-01-02"),
	})
	if err != nil {
		log.Printf("SetItemCompletion: user %s challenge %s date %s: day bonus failed: %v",
			userID, challengeID, date.Format("2006-01-02"), err)
		return result, fmt.Errorf("%w: day bonus: %v", ErrAwardIncomplete, err)
	}
	result.XPAwarded += dayAward.Amount
	result.LeveledUp = result.LeveledUp || dayAward.LeveledUp
	result.NewLevel = dayAward.NewLevel

	completedChallenge, err := s.refreshChallengeProgress(ctx, challengeID, durationDays)
	if err != nil {
		return result, err
	}
	if completedChallenge {
		result.ChallengeCompleted = true
		bonus := s.rules.ChallengeBonusXP(durationDays)
		challengeAward, err := s.stats.AwardXP(ctx, userID, bonus, ledger.ReasonChallengeCompleted, map[string]any{
			"challenge_id":  challengeID,
			"duration_days": durationDays,
		})
		if err != nil {
			log.Printf("SetItemCompletion: user %s challenge %s: completion bonus failed: %v",
				userID, challengeID, err)
			return result, fmt.Errorf("%w: challenge bonus: %v", ErrAwardIncomplete, err)
		}
		result.XPAwarded += challengeAward.Amount
		result.LeveledUp = result.LeveledUp || challengeAward.LeveledUp
		result.NewLevel = challengeAward.NewLevel
	}

	streak, err := s.streaks.TouchStreak(ctx, userID, date)
	if streak != nil {
		result.Streak = streak
		result.XPAwarded += streak.BonusXP
	}
	if err != nil {
		log.Printf("SetItemCompletion: user %s date %s: streak stage failed: %v",
			userID, date.Format("2006-01-02"), err)
		if errors.Is(err, ErrAwardIncomplete) {
			// Counters are committed but the bonus was not granted. The
			// day_completions row already exists, so no retry will reach
			// this stage again; the caller has to see the partial failure.
			return result, err
		}
		return result, fmt.Errorf("%w: streak: %v", ErrAwardIncomplete, err)
	}

	return result, nil
}

// ProgressHistory lists every progress record for the user's challenge,
// oldest first, together with the write-once day completion markers.
func (s *ChecklistService) ProgressHistory(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.History, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var owned bool
	err = s.db.QueryRow(ctx, `
	SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1 AND user_id = $2)
	`, challengeID, userID).Scan(&owned)
	if err != nil {
		return nil, fmt.Errorf("failed to check challenge ownership: %w", err)
	}
	if !owned {
		return nil, ErrChallengeNotFound
	}

	history := &progress.History{ChallengeID: challengeID}

	rows, err := s.db.Query(ctx, `
	SELECT challenge_id, item_id, date, completed, logged_at
	FROM item_progress
	WHERE challenge_id = $1
	ORDER BY date, item_id
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec progress.Record
		if err := rows.Scan(&rec.ChallengeID, &rec.ItemID, &rec.Date, &rec.Completed, &rec.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		history.Records = append(history.Records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress records: %w", err)
	}

	dayRows, err := s.db.Query(ctx, `
	SELECT challenge_id, date, completed_at
	FROM day_completions
	WHERE challenge_id = $1
	ORDER BY date
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query day completions: %w", err)
	}
	defer dayRows.Close()

	for dayRows.Next() {
		var dc progress.DayCompletion
		if err := dayRows.Scan(&dc.ChallengeID, &dc.Date, &dc.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan day completion: %w", err)
		}
		history.CompletedDays = append(history.CompletedDays, &dc)
	}
	if err := dayRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day completions: %w", err)
	}

	return history, nil
}

// upsertProgress reads the prior completed flag and writes the new one as a
// single serialized unit per key. The insert-if-absent plus row lock means
// two concurrent requests for a never-completed item cannot both observe
// "not completed".
func (s *ChecklistService) upsertProgress(ctx context.Context, challengeID, itemID uuid.UUID, date time.Time, completed bool) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin progress transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO item_progress (challenge_id, item_id, date, completed)
	VALUES ($1, $2, $3, false)
	ON CONFLICT (challenge_id, item_id, date) DO NOTHING
	`, challengeID, itemID, date)
	if err != nil {
		return false, fmt.Errorf("failed to ensure progress record: %w", err)
	}

	var wasCompleted bool
	err = tx.QueryRow(ctx, `
	SELECT completed FROM item_progress
	WHERE challenge_id = $1 AND item_id = $2 AND date = $3
	FOR UPDATE
	`, challengeID, itemID, date).Scan(&wasCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to read prior progress: %w", err)
	}

	_, err = tx.Exec(ctx, `
	UPDATE item_progress
	SET completed = $4, logged_at = NOW()
	WHERE challenge_id = $1 AND item_id = $2 AND date = $3
	`, challengeID, itemID, date, completed)
	if err != nil {
		return false, fmt.Errorf("failed to upsert progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit progress: %w", err)
	}
	return wasCompleted, nil
}

// dayCompletion reports whether every item of the challenge has a completed
// record for the date, along with the item count.
func (s *ChecklistService) dayCompletion(ctx context.Context, challengeID uuid.UUID, date time.Time) (bool, int, error) {
	var total, done int
	err := s.db.QueryRow(ctx, `
	SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE ip.completed) AS done
	FROM challenge_items ci
	LEFT JOIN item_progress ip
		ON ip.challenge_id = ci.challenge_id AND ip.item_id = ci.id AND ip.date = $2
	WHERE ci.challenge_id = $1
	`, challengeID, date).Scan(&total, &done)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check day completion: %w", err)
	}
	return total > 0 && done == total, total, nil
}

// markDayCompleted records the first time a date hit 100%. The row is never
// deleted, so later uncompletions and recompletions of the same date cannot
// re-trigger the day bonus.
func (s *ChecklistService) markDayCompleted(ctx context.Context, challengeID uuid.UUID, date time.Time) (bool, error) {
	result, err := s.db.Exec(ctx, `
	INSERT INTO day_completions (challenge_id, date)
	VALUES ($1, $2)
	ON CONFLICT (challenge_id, date) DO NOTHING
	`, challengeID, date)
	if err != nil {
		return false, fmt.Errorf("failed to mark day completed: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// refreshChallengeProgress recounts completed_days from the live progress
// records (tolerating retroactive edits) and, when the count reaches the
// duration, flips the challenge inactive exactly once. The is_active guard
// in the UPDATE is what makes the completion bonus unrepeatable.
func (s *ChecklistService) refreshChallengeProgress(ctx context.Context, challengeID uuid.UUID, durationDays int) (bool, error) {
	var completedDays int
	err := s.db.QueryRow(ctx, `
	WITH full_days AS (
		SELECT ip.date
		FROM item_progress ip
		WHERE ip.challenge_id = $1 AND ip.completed
		GROUP BY ip.date
		HAVING COUNT(*) = (SELECT COUNT(*) FROM challenge_items WHERE challenge_id = $1)
	)
	UPDATE challenges
	SET completed_days = LEAST((SELECT COUNT(*) FROM full_days), duration_days)
	WHERE id = $1
	RETURNING completed_days
	`, challengeID).Scan(&completedDays)
	if err != nil {
		return false, fmt.Errorf("failed to recount completed days: %w", err)
	}

	if completedDays < durationDays {
		return false, nil
	}

	result, err := s.db.Exec(ctx, `
	UPDATE challenges
	SET is_active = false, completed_at = NOW()
	WHERE id = $1 AND is_active = true
	`, challengeID)
	if err != nil {
		return false, fmt.Errorf("failed to complete challenge: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
