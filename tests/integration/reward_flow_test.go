package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitQuestAPI/internal/challenge"
	"habitQuestAPI/internal/goal"
	"habitQuestAPI/internal/reward"
	"habitQuestAPI/services"
	"habitQuestAPI/tests/helpers"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestItemCompletionAwardsOncePerKey(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)
	checklistService := services.NewChecklistService(pool, statsService, streakService, rules)
	challengeService := services.NewChallengeService(pool)

	u := helpers.CreateTestUser(t, userService)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, u.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "morning routine",
		DurationDays: 5,
		StartDate:    "2024-03-01",
		Items:        []string{"meditate", "stretch", "journal"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)
	require.Len(t, list.Entries, 3)
	itemID := list.Entries[0].ID

	// First completion pays the item XP.
	res, err := checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.NoError(t, err)
	assert.Equal(t, rules.ItemXP, res.XPAwarded)
	assert.False(t, res.DayComplete)

	// Replaying the same completion awards nothing.
	res, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.NoError(t, err)
	assert.Zero(t, res.XPAwarded)

	// Uncompleting does not reverse the earlier award...
	res, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), false)
	require.NoError(t, err)
	assert.Zero(t, res.XPAwarded)

	st, err := statsService.GetUserStats(ctx, uuid.MustParse(u.ID))
	require.NoError(t, err)
	assert.Equal(t, rules.ItemXP, st.XP)

	// ...and re-completing is another genuine 0->1 edge.
	res, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.NoError(t, err)
	assert.Equal(t, rules.ItemXP, res.XPAwarded)
}

func TestOwnershipRejectedBeforeAnyWrite(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)
	checklistService := services.NewChecklistService(pool, statsService, streakService, rules)
	challengeService := services.NewChallengeService(pool)

	owner := helpers.CreateTestUser(t, userService)
	intruder := helpers.CreateTestUser(t, userService)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, owner.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "private challenge",
		DurationDays: 3,
		StartDate:    "2024-03-01",
		Items:        []string{"run"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, owner.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)
	itemID := list.Entries[0].ID

	_, err = checklistService.SetItemCompletion(ctx, intruder.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	assert.ErrorIs(t, err, services.ErrChallengeNotFound)

	st, err := statsService.GetUserStats(ctx, uuid.MustParse(intruder.ID))
	require.NoError(t, err)
	assert.Zero(t, st.XP)
}

func TestDayCompletionCascade(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)
	checklistService := services.NewChecklistService(pool, statsService, streakService, rules)
	challengeService := services.NewChallengeService(pool)

	u := helpers.CreateTestUser(t, userService)
	userID := uuid.MustParse(u.ID)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, u.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "evening routine",
		DurationDays: 5,
		StartDate:    "2024-03-01",
		Items:        []string{"read", "plan tomorrow", "lights out early"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)

	// 3 items x 10 XP + 100 day bonus = 130 for day one.
	total := 0
	var last *services.CompletionResult
	for _, entry := range list.Entries {
		last, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, entry.ID, day("2024-03-01"), true)
		require.NoError(t, err)
		total += last.XPAwarded
	}
	assert.Equal(t, 3*rules.ItemXP+rules.DayBonusXP, total)
	assert.True(t, last.DayComplete)
	require.NotNil(t, last.Streak)
	assert.Equal(t, 1, last.Streak.CurrentStreak)
	assert.Zero(t, last.Streak.BonusXP, "day 1 of a streak has no bonus")

	challenges, err := challengeService.GetChallenges(ctx, u.ClerkID)
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.Equal(t, 1, challenges[0].CompletedDays)
	assert.True(t, challenges[0].IsActive)

	// Day two: another 130 plus the streak-2 bonus of 20.
	total = 0
	for _, entry := range list.Entries {
		last, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, entry.ID, day("2024-03-02"), true)
		require.NoError(t, err)
		total += last.XPAwarded
	}
	assert.Equal(t, 3*rules.ItemXP+rules.DayBonusXP+rules.StreakBonusXP(2), total)
	require.NotNil(t, last.Streak)
	assert.Equal(t, 2, last.Streak.CurrentStreak)

	st, err := statsService.GetUserStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 280, st.XP)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 2, st.BestStreak)

	// The ledger and the live aggregate agree.
	rec, err := statsService.ReconcileLedger(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.Drift)
}

func TestChallengeCompletionBonusAwardedOnce(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)
	checklistService := services.NewChecklistService(pool, statsService, streakService, rules)
	challengeService := services.NewChallengeService(pool)

	u := helpers.CreateTestUser(t, userService)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, u.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "one day sprint",
		DurationDays: 1,
		StartDate:    "2024-03-01",
		Items:        []string{"item a", "item b"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)

	var last *services.CompletionResult
	for _, entry := range list.Entries {
		last, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, entry.ID, day("2024-03-01"), true)
		require.NoError(t, err)
	}
	assert.True(t, last.ChallengeCompleted)

	challenges, err := challengeService.GetChallenges(ctx, u.ClerkID)
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.False(t, challenges[0].IsActive)
	assert.NotNil(t, challenges[0].CompletedAt)
	assert.Equal(t, 1, challenges[0].CompletedDays)

	// Exactly one challenge-completion ledger entry, worth duration*100/2.
	var count, amount int
	err = pool.QueryRow(ctx, `
	SELECT COUNT(*), COALESCE(SUM(amount), 0)
	FROM xp_ledger
	WHERE user_id = $1 AND reason = 'challenge_completed'
	`, u.ID).Scan(&count, &amount)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, rules.ChallengeBonusXP(1), amount)

	// Re-flipping an item after completion cannot re-award the bonus.
	_, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, list.Entries[0].ID, day("2024-03-01"), false)
	require.NoError(t, err)
	_, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, list.Entries[0].ID, day("2024-03-01"), true)
	require.NoError(t, err)

	err = pool.QueryRow(ctx, `
	SELECT COUNT(*) FROM xp_ledger WHERE user_id = $1 AND reason = 'challenge_completed'
	`, u.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTouchStreakRules(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)

	u := helpers.CreateTestUser(t, userService)
	userID := uuid.MustParse(u.ID)
	ctx := context.Background()

	res, err := streakService.TouchStreak(ctx, userID, day("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Zero(t, res.BonusXP)

	// Same date twice is a no-op.
	res, err = streakService.TouchStreak(ctx, userID, day("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.False(t, res.StreakIncreased)
	assert.Zero(t, res.BonusXP)

	// Consecutive day extends and pays 10 + 2*5.
	res, err = streakService.TouchStreak(ctx, userID, day("2024-01-06"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
	assert.True(t, res.StreakIncreased)
	assert.Equal(t, 20, res.BonusXP)

	// A 2-day gap resets to 1 with no bonus; best stays ratcheted.
	res, err = streakService.TouchStreak(ctx, userID, day("2024-01-08"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 2, res.BestStreak)
	assert.Zero(t, res.BonusXP)

	st, err := statsService.GetUserStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, st.XP)
	assert.Equal(t, 2, st.BestStreak)
}

func TestGoalCompletionRateLimit(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	goalService := services.NewGoalService(pool, statsService, rules)

	u := helpers.CreateTestUser(t, userService)
	userID := uuid.MustParse(u.ID)
	ctx := context.Background()

	var goals []*goal.LifeGoal
	for i := 0; i < 6; i++ {
		g, err := goalService.CreateGoal(ctx, u.ClerkID, &goal.CreateGoalRequest{Title: "goal"})
		require.NoError(t, err)
		goals = append(goals, g)
	}

	for i := 0; i < 5; i++ {
		res, err := goalService.CompleteLifeGoal(ctx, u.ClerkID, goals[i].ID)
		require.NoError(t, err)
		assert.Equal(t, rules.GoalXP, res.XPAwarded)
		assert.Equal(t, i+1, res.Trophies)
	}

	// Completing the same goal again is rejected outright.
	_, err := goalService.CompleteLifeGoal(ctx, u.ClerkID, goals[0].ID)
	assert.ErrorIs(t, err, services.ErrGoalCompleted)

	// The sixth completion inside the hour hits the sliding window.
	_, err = goalService.CompleteLifeGoal(ctx, u.ClerkID, goals[5].ID)
	assert.ErrorIs(t, err, services.ErrGoalRateLimited)

	st, err := statsService.GetUserStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5*rules.GoalXP, st.XP)
	assert.Equal(t, 5, st.LifeGoalTrophies)

	remaining, err := goalService.GetGoals(ctx, u.ClerkID)
	require.NoError(t, err)
	for _, g := range remaining {
		if g.ID == goals[5].ID {
			assert.False(t, g.IsCompleted, "blocked goal must stay incomplete")
		}
	}
}

func TestDailyMedalWriteOnce(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	medalService := services.NewMedalService(pool, statsService)

	u := helpers.CreateTestUser(t, userService)
	userID := uuid.MustParse(u.ID)
	ctx := context.Background()

	res, err := medalService.AwardDailyMedal(ctx, u.ClerkID, day("2024-03-01"), 4, 4)
	require.NoError(t, err)
	assert.Equal(t, reward.TierGold, res.Tier)
	assert.False(t, res.AlreadyAwarded)

	// Re-scoring the same day with different counts returns the stored
	// medal unchanged.
	res, err = medalService.AwardDailyMedal(ctx, u.ClerkID, day("2024-03-01"), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, reward.TierGold, res.Tier)
	assert.True(t, res.AlreadyAwarded)

	// A sub-50% day writes nothing, leaving it scoreable later.
	res, err = medalService.AwardDailyMedal(ctx, u.ClerkID, day("2024-03-02"), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, reward.TierNone, res.Tier)

	res, err = medalService.AwardDailyMedal(ctx, u.ClerkID, day("2024-03-02"), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, reward.TierSilver, res.Tier)

	st, err := statsService.GetUserStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GoldMedals)
	assert.Equal(t, 1, st.SilverMedals)
	assert.Zero(t, st.BronzeMedals)
}

// failingStreakToucher stands in for a streak engine whose counters commit
// but whose bonus grant fails afterwards.
type failingStreakToucher struct{}

func (failingStreakToucher) TouchStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time) (*services.StreakResult, error) {
	return &services.StreakResult{CurrentStreak: 1, BestStreak: 1, StreakIncreased: true},
		fmt.Errorf("%w: streak bonus: %v", services.ErrAwardIncomplete, assert.AnError)
}

func TestStreakStageFailureSurfacesPartialError(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	checklistService := services.NewChecklistService(pool, statsService, failingStreakToucher{}, rules)
	challengeService := services.NewChallengeService(pool)

	u := helpers.CreateTestUser(t, userService)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, u.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "single item",
		DurationDays: 3,
		StartDate:    "2024-03-01",
		Items:        []string{"walk"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)
	itemID := list.Entries[0].ID

	// The item and day awards land, the streak bonus does not; the caller
	// must see the partial failure, not a clean success.
	res, err := checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.ErrorIs(t, err, services.ErrAwardIncomplete)
	require.NotNil(t, res)
	assert.Equal(t, rules.ItemXP+rules.DayBonusXP, res.XPAwarded)
	assert.True(t, res.DayComplete)
	require.NotNil(t, res.Streak, "committed streak counters still travel with the result")
	assert.Equal(t, 1, res.Streak.CurrentStreak)

	// A retry is safe: the completed record makes it a no-award write.
	res, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.NoError(t, err)
	assert.Zero(t, res.XPAwarded)

	st, err := statsService.GetUserStats(ctx, uuid.MustParse(u.ID))
	require.NoError(t, err)
	assert.Equal(t, rules.ItemXP+rules.DayBonusXP, st.XP)
}

func TestInactiveChallengeEditsAwardNothing(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rules := reward.DefaultRules()
	statsService := services.NewStatsService(pool)
	userService := services.NewUserService(pool, statsService)
	streakService := services.NewStreakService(pool, statsService, rules)
	checklistService := services.NewChecklistService(pool, statsService, streakService, rules)
	challengeService := services.NewChallengeService(pool)

	u := helpers.CreateTestUser(t, userService)
	ctx := context.Background()

	ch, err := challengeService.CreateChallenge(ctx, u.ClerkID, &challenge.CreateChallengeRequest{
		Title:        "over after one day",
		DurationDays: 1,
		StartDate:    "2024-03-01",
		Items:        []string{"stretch"},
	})
	require.NoError(t, err)

	list, err := challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-01"))
	require.NoError(t, err)
	itemID := list.Entries[0].ID

	_, err = checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-01"), true)
	require.NoError(t, err)

	challenges, err := challengeService.GetChallenges(ctx, u.ClerkID)
	require.NoError(t, err)
	require.False(t, challenges[0].IsActive)

	before, err := statsService.GetUserStats(ctx, uuid.MustParse(u.ID))
	require.NoError(t, err)

	// Edits after completion persist but pay nothing, not even day bonuses
	// for brand new dates.
	res, err := checklistService.SetItemCompletion(ctx, u.ClerkID, ch.ID, itemID, day("2024-03-02"), true)
	require.NoError(t, err)
	assert.Zero(t, res.XPAwarded)
	assert.Nil(t, res.Streak)

	after, err := statsService.GetUserStats(ctx, uuid.MustParse(u.ID))
	require.NoError(t, err)
	assert.Equal(t, before.XP, after.XP)
	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)

	list, err = challengeService.GetChecklist(ctx, u.ClerkID, ch.ID, day("2024-03-02"))
	require.NoError(t, err)
	assert.True(t, list.Entries[0].Completed, "the edit itself is persisted")
}
