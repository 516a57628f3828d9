package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/models"
	"github.com/nvoskov/outreach-bot/internal/storage"
)

// failingActivityStore simulates a broken persistence layer during restore.
type failingActivityStore struct{}

func (failingActivityStore) RecordActivity(ctx context.Context, a *models.AccountActivity) error {
	return errors.New("database unavailable")
}

func (failingActivityStore) CountActivity(ctx context.Context, platform, account, action string, since, until time.Time) (int, error) {
	return 0, errors.New("database unavailable")
}

func (failingActivityStore) LastActivity(ctx context.Context, platform, account, action string) (*models.AccountActivity, error) {
	return nil, errors.New("database unavailable")
}

func newTestGate(t *testing.T, limits Limits, at time.Time) (*Gate, *time.Time) {
	t.Helper()
	clock := at
	gate := New("instagram", "acct", limits, storage.NewMemoryStorage(), zap.NewNop()).
		WithClock(func() time.Time { return clock })
	return gate, &clock
}

func workday(hour int) time.Time {
	return time.Date(2026, 8, 28, hour, 0, 0, 0, time.Local)
}

func TestDailyCeiling(t *testing.T) {
	gate, clock := newTestGate(t, Limits{DailyCeiling: 45}, workday(12))
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		require.True(t, gate.Allow(), "send %d should be allowed", i)
		require.NoError(t, gate.RecordSend(ctx, "test"))
		*clock = clock.Add(time.Second)
	}

	assert.False(t, gate.Allow(), "send 46 must be denied")
	assert.Equal(t, 45, gate.SentToday())

	// The ceiling resets on the next calendar day.
	*clock = clock.AddDate(0, 0, 1)
	assert.True(t, gate.Allow())
	assert.Equal(t, 0, gate.SentToday())
}

func TestMinimumSpacing(t *testing.T) {
	gate, clock := newTestGate(t, Limits{DailyCeiling: 45, MinInterval: 15 * time.Minute}, workday(12))
	ctx := context.Background()

	require.True(t, gate.Allow())
	require.NoError(t, gate.RecordSend(ctx, "test"))

	*clock = clock.Add(14 * time.Minute)
	assert.False(t, gate.Allow())

	*clock = clock.Add(time.Minute)
	assert.True(t, gate.Allow())
}

func TestWorkingHoursWindow(t *testing.T) {
	limits := Limits{DailyCeiling: 45, EnforceWorkingHours: true, WorkStartHour: 10, WorkEndHour: 21}

	gate, clock := newTestGate(t, limits, workday(9))
	assert.False(t, gate.Allow(), "before window")

	*clock = workday(10)
	assert.True(t, gate.Allow(), "window start is inclusive")

	*clock = workday(20)
	assert.True(t, gate.Allow())

	*clock = workday(21)
	assert.False(t, gate.Allow(), "window end is exclusive")

	// Deployments without the window send around the clock.
	open, _ := newTestGate(t, Limits{DailyCeiling: 45}, workday(3))
	assert.True(t, open.Allow())
}

func TestRestore(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	now := workday(12)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordActivity(ctx, &models.AccountActivity{
			Platform:    "instagram",
			AccountName: "acct",
			ActionType:  models.ActionMessageSent,
			Timestamp:   now.Add(time.Duration(i) * time.Hour),
		}))
	}
	// Logins are not sends and must not affect the counter.
	require.NoError(t, store.RecordActivity(ctx, &models.AccountActivity{
		Platform:    "instagram",
		AccountName: "acct",
		ActionType:  models.ActionLogin,
		Timestamp:   now,
	}))

	clock := now.Add(4 * time.Hour)
	gate := New("instagram", "acct", Limits{DailyCeiling: 45, MinInterval: 15 * time.Minute}, store, zap.NewNop()).
		WithClock(func() time.Time { return clock })
	gate.Restore(ctx)

	assert.Equal(t, 3, gate.SentToday())
	assert.True(t, gate.Allow(), "last send was hours ago")

	clock = now.Add(2*time.Hour + 5*time.Minute)
	assert.False(t, gate.Allow(), "restored last-send time enforces spacing")
}

func TestRestoreFailsOpen(t *testing.T) {
	clock := workday(12)
	gate := New("instagram", "acct", Limits{DailyCeiling: 45}, failingActivityStore{}, zap.NewNop()).
		WithClock(func() time.Time { return clock })
	gate.Restore(context.Background())

	assert.Equal(t, 0, gate.SentToday())
	assert.True(t, gate.Allow())
}
