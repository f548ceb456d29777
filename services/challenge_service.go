package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitQuestAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChallengeService is the ordinary CRUD surface around the engine. It never
// touches completed_days, is_active or completed_at; those belong to the
// cascade.
type ChallengeService struct {
	db *pgxpool.Pool
}

func NewChallengeService(db *pgxpool.Pool) *ChallengeService {
	return &ChallengeService{db: db}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	if req.DurationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive")
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("a challenge needs at least one checklist item")
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date: %w", err)
	}
	endDate := startDate.AddDate(0, 0, req.DurationDays-1)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin challenge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ch := &challenge.Challenge{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        req.Title,
		DurationDays: req.DurationDays,
		StartDate:    startDate,
		EndDate:      endDate,
		IsActive:     true,
	}

	err = tx.QueryRow(ctx, `
	INSERT INTO challenges (id, user_id, title, duration_days, start_date, end_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`, ch.ID, ch.UserID, ch.Title, ch.DurationDays, ch.StartDate, ch.EndDate).Scan(&ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	for _, title := range req.Items {
		_, err = tx.Exec(ctx, `
		INSERT INTO challenge_items (id, challenge_id, title)
		VALUES ($1, $2, $3)
		`, uuid.New(), ch.ID, title)
		if err != nil {
			return nil, fmt.Errorf("failed to create challenge item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit challenge: %w", err)
	}
	return ch, nil
}

func (s *ChallengeService) GetChallenges(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, title, duration_days, start_date, end_date,
	       completed_days, is_active, completed_at, created_at
	FROM challenges
	WHERE user_id = $1
	ORDER BY is_active DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		ch := &challenge.Challenge{}
		err := rows.Scan(
			&ch.ID,
			&ch.UserID,
			&ch.Title,
			&ch.DurationDays,
			&ch.StartDate,
			&ch.EndDate,
			&ch.CompletedDays,
			&ch.IsActive,
			&ch.CompletedAt,
			&ch.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, ch)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	if challenges == nil {
		challenges = []*challenge.Challenge{}
	}
	return challenges, nil
}

// GetChecklist returns the challenge's items for one date with their
// completion flags, the read surface the checklist UI renders.
func (s *ChallengeService) GetChecklist(ctx context.Context, clerkID string, challengeID uuid.UUID, date time.Time) (*challenge.Checklist, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var owner uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT user_id FROM challenges WHERE id = $1`, challengeID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if owner != userID {
		return nil, ErrChallengeNotFound
	}

	rows, err := s.db.Query(ctx, `
	SELECT ci.id, ci.challenge_id, ci.title, ci.priority, ci.reminder_at, ci.created_at,
	       COALESCE(ip.completed, false) AS completed
	FROM challenge_items ci
	LEFT JOIN item_progress ip
		ON ip.challenge_id = ci.challenge_id AND ip.item_id = ci.id AND ip.date = $2
	WHERE ci.challenge_id = $1
	ORDER BY ci.created_at
	`, challengeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checklist: %w", err)
	}
	defer rows.Close()

	list := &challenge.Checklist{
		ChallengeID: challengeID,
		Date:        date.Format("2006-01-02"),
		Entries:     []challenge.ChecklistEntry{},
	}

	allDone := true
	for rows.Next() {
		var e challenge.ChecklistEntry
		err := rows.Scan(
			&e.ID,
			&e.ChallengeID,
			&e.Title,
			&e.Priority,
			&e.ReminderAt,
			&e.CreatedAt,
			&e.Completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist entry: %w", err)
		}
		if !e.Completed {
			allDone = false
		}
		list.Entries = append(list.Entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist: %w", err)
	}

	list.DayComplete = len(list.Entries) > 0 && allDone
	return list, nil
}
