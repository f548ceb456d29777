package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitQuestAPI/internal/ledger"
	"habitQuestAPI/internal/reward"
	"habitQuestAPI/internal/stats"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsService is the only writer of the user_stats aggregate. Every XP
// grant goes through AwardXP, which locks the user's row so concurrent
// awards (item, day, streak, goal) serialize per user.
type StatsService struct {
	db *pgxpool.Pool
}

func NewStatsService(db *pgxpool.Pool) *StatsService {
	return &StatsService{db: db}
}

// AwardXP appends a ledger entry and applies the delta to the live xp
// counter in one transaction. XP is clamped at zero for negative
// corrections, and level is recomputed from the new total.
func (s *StatsService) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason ledger.Reason, metadata map[string]any) (*stats.AwardResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin award transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevXP, prevLevel int
	err = tx.QueryRow(ctx, `SELECT xp, level FROM user_stats WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&prevXP, &prevLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user stats: %w", err)
	}

	newXP := prevXP + amount
	if newXP < 0 {
		newXP = 0
	}
	newLevel := reward.Level(newXP)

	_, err = tx.Exec(ctx, `
	UPDATE user_stats
	SET xp = $2, level = $3, updated_at = NOW()
	WHERE user_id = $1
	`, userID, newXP, newLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to update user stats: %w", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err = tx.Exec(ctx, `
	INSERT INTO xp_ledger (id, user_id, amount, reason, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New(), userID, amount, string(reason), metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit award: %w", err)
	}

	result := &stats.AwardResult{
		Amount:    amount,
		NewXP:     newXP,
		NewLevel:  newLevel,
		LeveledUp: newLevel > prevLevel,
	}

	xpAwardedTotal.WithLabelValues(string(reason)).Add(float64(max(amount, 0)))
	if result.LeveledUp {
		levelUpsTotal.Inc()
		log.Printf("AwardXP: user %s leveled up to %d (%s)", userID, newLevel, reward.StageForLevel(newLevel))
	}

	return result, nil
}

// IncrementMedal bumps the aggregate counter for one awarded medal tier.
func (s *StatsService) IncrementMedal(ctx context.Context, userID uuid.UUID, tier reward.MedalTier) error {
	var column string
	switch tier {
	case reward.TierGold:
		column = "gold_medals"
	case reward.TierSilver:
		column = "silver_medals"
	case reward.TierBronze:
		column = "bronze_medals"
	default:
		return fmt.Errorf("no counter for medal tier %q", tier)
	}

	query := fmt.Sprintf(`
	UPDATE user_stats
	SET %s = %s + 1, updated_at = NOW()
	WHERE user_id = $1
	`, column, column)

	result, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementTrophies bumps the life goal trophy counter and returns the new
// count.
func (s *StatsService) IncrementTrophies(ctx context.Context, userID uuid.UUID) (int, error) {
	var trophies int
	err := s.db.QueryRow(ctx, `
	UPDATE user_stats
	SET life_goal_trophies = life_goal_trophies + 1, updated_at = NOW()
	WHERE user_id = $1
	RETURNING life_goal_trophies
	`, userID).Scan(&trophies)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to increment trophies: %w", err)
	}
	return trophies, nil
}

// GetUserStats returns the read-only snapshot for profile and dashboard
// consumers.
func (s *StatsService) GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	query := `
	SELECT user_id, xp, level, current_streak, best_streak, last_activity_date,
	       gold_medals, silver_medals, bronze_medals, life_goal_trophies, updated_at
	FROM user_stats
	WHERE user_id = $1
	`

	st := &stats.UserStats{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&st.UserID,
		&st.XP,
		&st.Level,
		&st.CurrentStreak,
		&st.BestStreak,
		&st.LastActivityDate,
		&st.GoldMedals,
		&st.SilverMedals,
		&st.BronzeMedals,
		&st.LifeGoalTrophies,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	st.TrophyStage = reward.StageForLevel(st.Level)
	return st, nil
}

// GetUserStatsByClerkID resolves the acting user first; handler-facing
// variant of GetUserStats.
func (s *StatsService) GetUserStatsByClerkID(ctx context.Context, clerkID string) (*stats.UserStats, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.GetUserStats(ctx, userID)
}

// ReconcileLedgerByClerkID resolves the acting user first; handler-facing
// variant of ReconcileLedger.
func (s *StatsService) ReconcileLedgerByClerkID(ctx context.Context, clerkID string) (*stats.Reconciliation, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.ReconcileLedger(ctx, userID)
}

// ReconcileLedger compares the ledger sum with the live xp counter. The
// ledger is audit-only; this never feeds stats back, it only reports drift
// for out-of-band reconciliation.
func (s *StatsService) ReconcileLedger(ctx context.Context, userID uuid.UUID) (*stats.Reconciliation, error) {
	query := `
	SELECT
		COALESCE((SELECT SUM(amount) FROM xp_ledger WHERE user_id = $1), 0) AS ledger_sum,
		us.xp
	FROM user_stats us
	WHERE us.user_id = $1
	`

	rec := &stats.Reconciliation{UserID: userID}
	err := s.db.QueryRow(ctx, query, userID).Scan(&rec.LedgerSum, &rec.LiveXP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to reconcile ledger: %w", err)
	}

	rec.Drift = rec.LiveXP - rec.LedgerSum
	if rec.Drift != 0 {
		log.Printf("ReconcileLedger: user %s drift %d (ledger %d, live %d)",
			userID, rec.Drift, rec.LedgerSum, rec.LiveXP)
	}
	return rec, nil
}

// LedgerEntriesByClerkID resolves the acting user first; handler-facing
// variant of LedgerEntries.
func (s *StatsService) LedgerEntriesByClerkID(ctx context.Context, clerkID string, since time.Time, limit int) ([]*ledger.Entry, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.LedgerEntries(ctx, userID, since, limit)
}

// LedgerEntries returns recent audit entries, newest first. Read path for
// reconciliation tooling only.
func (s *StatsService) LedgerEntries(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*ledger.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	query := `
	SELECT id, user_id, amount, reason, metadata, created_at
	FROM xp_ledger
	WHERE user_id = $1 AND created_at >= $2
	ORDER BY created_at DESC
	LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e := &ledger.Entry{}
		var reason string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &reason, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Reason = ledger.Reason(reason)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	if entries == nil {
		entries = []*ledger.Entry{}
	}
	return entries, nil
}
