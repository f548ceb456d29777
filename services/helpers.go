package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// resolveUserID maps the authenticated Clerk subject to the internal user id.
func resolveUserID(ctx context.Context, db *pgxpool.Pool, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}
