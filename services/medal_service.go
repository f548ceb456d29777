package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitQuestAPI/internal/medal"
	"habitQuestAPI/internal/reward"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MedalService scores each user's day once. Replays return the stored medal
// unchanged; the stats counters move only on the first write.
type MedalService struct {
	db    *pgxpool.Pool
	stats *StatsService
}

func NewMedalService(db *pgxpool.Pool, stats *StatsService) *MedalService {
	return &MedalService{db: db, stats: stats}
}

// AwardDailyMedal computes the gold/silver/bronze outcome for one (user,
// date). A sub-50% day earns nothing and writes no record, so the day can
// still be scored later once more items are done.
func (s *MedalService) AwardDailyMedal(ctx context.Context, clerkID string, date time.Time, completedCount, totalCount int) (*medal.AwardDailyMedalResponse, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var existing string
	err = s.db.QueryRow(ctx, `
	SELECT tier FROM daily_medals WHERE user_id = $1 AND date = $2
	`, userID, date).Scan(&existing)
	if err == nil {
		return &medal.AwardDailyMedalResponse{
			Tier:           reward.MedalTier(existing),
			AlreadyAwarded: true,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing medal: %w", err)
	}

	tier := reward.DailyMedalTier(completedCount, totalCount)
	if tier == reward.TierNone {
		return &medal.AwardDailyMedalResponse{Tier: reward.TierNone}, nil
	}

	result, err := s.db.Exec(ctx, `
	INSERT INTO daily_medals (user_id, date, tier)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, date) DO NOTHING
	`, userID, date, string(tier))
	if err != nil {
		return nil, fmt.Errorf("failed to award medal: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Lost a race with a concurrent scoring of the same date; the first
		// writer's medal stands.
		err = s.db.QueryRow(ctx, `
		SELECT tier FROM daily_medals WHERE user_id = $1 AND date = $2
		`, userID, date).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("failed to read medal after conflict: %w", err)
		}
		return &medal.AwardDailyMedalResponse{
			Tier:           reward.MedalTier(existing),
			AlreadyAwarded: true,
		}, nil
	}

	if err := s.stats.IncrementMedal(ctx, userID, tier); err != nil {
		log.Printf("AwardDailyMedal: user %s date %s: medal recorded but counter update failed: %v",
			userID, date.Format("2006-01-02"), err)
		return nil, fmt.Errorf("%w: medal counter: %v", ErrAwardIncomplete, err)
	}

	medalsAwardedTotal.WithLabelValues(string(tier)).Inc()
	return &medal.AwardDailyMedalResponse{Tier: tier}, nil
}

// GetMedals lists a user's daily medals, newest first.
func (s *MedalService) GetMedals(ctx context.Context, clerkID string, limit int) ([]*medal.DailyMedal, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
	SELECT user_id, date, tier, awarded_at
	FROM daily_medals
	WHERE user_id = $1
	ORDER BY date DESC
	LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medals: %w", err)
	}
	defer rows.Close()

	var medals []*medal.DailyMedal
	for rows.Next() {
		m := &medal.DailyMedal{}
		var tier string
		if err := rows.Scan(&m.UserID, &m.Date, &tier, &m.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medal: %w", err)
		}
		m.Tier = reward.MedalTier(tier)
		medals = append(medals, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medals: %w", err)
	}

	if medals == nil {
		medals = []*medal.DailyMedal{}
	}
	return medals, nil
}
