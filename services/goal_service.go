package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitQuestAPI/internal/goal"
	"habitQuestAPI/internal/ledger"
	"habitQuestAPI/internal/reward"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GoalService struct {
	db    *pgxpool.Pool
	stats *StatsService
	rules reward.Rules
}

func NewGoalService(db *pgxpool.Pool, stats *StatsService, rules reward.Rules) *GoalService {
	return &GoalService{db: db, stats: stats, rules: rules}
}

func (s *GoalService) CreateGoal(ctx context.Context, clerkID string, req *goal.CreateGoalRequest) (*goal.LifeGoal, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	g := &goal.LifeGoal{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     req.Title,
		CreatedAt: time.Now(),
	}

	err = s.db.QueryRow(ctx, `
	INSERT INTO life_goals (id, user_id, title, created_at)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at
	`, g.ID, g.UserID, g.Title, g.CreatedAt).Scan(&g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create life goal: %w", err)
	}
	return g, nil
}

func (s *GoalService) GetGoals(ctx context.Context, clerkID string) ([]*goal.LifeGoal, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, title, is_completed, completed_at, created_at
	FROM life_goals
	WHERE user_id = $1
	ORDER BY is_completed, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch life goals: %w", err)
	}
	defer rows.Close()

	var goals []*goal.LifeGoal
	for rows.Next() {
		g := &goal.LifeGoal{}
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.IsCompleted, &g.CompletedAt, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan life goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating life goals: %w", err)
	}

	if goals == nil {
		goals = []*goal.LifeGoal{}
	}
	return goals, nil
}

// CompleteLifeGoal flips the goal completed exactly once, under a
// per-user lock, with a sliding-window cap of completions in the trailing
// hour. Over the cap it fails with ErrGoalRateLimited and no state change.
func (s *GoalService) CompleteLifeGoal(ctx context.Context, clerkID string, goalID uuid.UUID) (*goal.CompleteGoalResponse, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin goal transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent goal completions for the same user so the
	// window count below cannot be read twice at 4 by racing requests.
	_, err = tx.Exec(ctx, `SELECT user_id FROM user_stats WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user for goal completion: %w", err)
	}

	var isCompleted bool
	err = tx.QueryRow(ctx, `
	SELECT is_completed FROM life_goals
	WHERE id = $1 AND user_id = $2
	FOR UPDATE
	`, goalID, userID).Scan(&isCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to load life goal: %w", err)
	}
	if isCompleted {
		return nil, ErrGoalCompleted
	}

	var recentCompletions int
	err = tx.QueryRow(ctx, `
	SELECT COUNT(*) FROM life_goals
	WHERE user_id = $1 AND is_completed AND completed_at >= NOW() - INTERVAL '60 minutes'
	`, userID).Scan(&recentCompletions)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent completions: %w", err)
	}
	if recentCompletions >= s.rules.GoalsPerHour {
		log.Printf("CompleteLifeGoal: user %s blocked, %d completions in the last hour", userID, recentCompletions)
		return nil, ErrGoalRateLimited
	}

	result, err := tx.Exec(ctx, `
	UPDATE life_goals
	SET is_completed = true, completed_at = NOW()
	WHERE id = $1 AND is_completed = false
	`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete life goal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrGoalCompleted
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit goal completion: %w", err)
	}

	award, err := s.stats.AwardXP(ctx, userID, s.rules.GoalXP, ledger.ReasonLifeGoalCompleted, map[string]any{
		"goal_id": goalID,
	})
	if err != nil {
		log.Printf("CompleteLifeGoal: user %s goal %s: completed but XP award failed: %v", userID, goalID, err)
		return nil, fmt.Errorf("%w: goal award: %v", ErrAwardIncomplete, err)
	}

	trophies, err := s.stats.IncrementTrophies(ctx, userID)
	if err != nil {
		log.Printf("CompleteLifeGoal: user %s goal %s: trophy increment failed: %v", userID, goalID, err)
		return nil, fmt.Errorf("%w: trophy counter: %v", ErrAwardIncomplete, err)
	}

	return &goal.CompleteGoalResponse{
		XPAwarded: award.Amount,
		LeveledUp: award.LeveledUp,
		NewLevel:  award.NewLevel,
		Trophies:  trophies,
	}, nil
}
