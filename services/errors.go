package services

import "errors"

// Sentinel errors so handlers can map failures to distinct status codes:
// validation/ownership problems reject before any write, rate limits get a
// dedicated "blocked" status, and partial failures tell the caller a retry
// is safe.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrChallengeNotFound = errors.New("challenge or item not found")
	ErrGoalNotFound      = errors.New("life goal not found")
	ErrGoalCompleted     = errors.New("life goal already completed")
	ErrGoalRateLimited   = errors.New("life goal completion rate limit reached")

	// ErrAwardIncomplete means the progress record was persisted but a
	// downstream XP/stats write failed. The caller may retry; the 0->1
	// idempotency check guarantees no double award.
	ErrAwardIncomplete = errors.New("completion recorded but reward not fully applied")
)
