package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoskov/outreach-bot/internal/models"
)

func TestGetOrCreateClientIdempotent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	first, created, err := s.GetOrCreateClient(ctx, "telegram", "42", models.UserProfile{FirstName: "Анна"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StatusNew, first.Status)

	second, created, err := s.GetOrCreateClient(ctx, "telegram", "42", models.UserProfile{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	// Empty profile fields must not erase known names.
	assert.Equal(t, "Анна", second.FirstName)

	// Same platform id on another platform is a different client.
	other, created, err := s.GetOrCreateClient(ctx, "instagram", "42", models.UserProfile{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestRecentMessagesBoundedAndOrdered(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	client, _, err := s.GetOrCreateClient(ctx, "telegram", "7", models.UserProfile{})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		direction := models.DirectionInbound
		if i%2 == 1 {
			direction = models.DirectionOutbound
		}
		err := s.AppendMessage(ctx, &models.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			ClientID:  client.ID,
			Direction: direction,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	messages, err := s.RecentMessages(ctx, client.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 10)

	// Most recent ten, oldest-first, non-decreasing timestamps.
	assert.Equal(t, "message 15", messages[0].Content)
	assert.Equal(t, "message 24", messages[9].Content)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestActivityCountersByDay(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// One sample from yesterday must not be counted today.
	require.NoError(t, s.RecordActivity(ctx, &models.AccountActivity{
		Platform:    "instagram",
		AccountName: "acct",
		ActionType:  models.ActionMessageSent,
		Timestamp:   dayStart.Add(-2 * time.Hour),
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordActivity(ctx, &models.AccountActivity{
			Platform:    "instagram",
			AccountName: "acct",
			ActionType:  models.ActionMessageSent,
			Timestamp:   dayStart.Add(time.Duration(i+1) * time.Hour),
		}))
	}

	count, err := s.CountActivity(ctx, "instagram", "acct", models.ActionMessageSent, dayStart, dayStart.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	last, err := s.LastActivity(ctx, "instagram", "acct", models.ActionMessageSent)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, dayStart.Add(3*time.Hour).Unix(), last.Timestamp.Unix())

	none, err := s.LastActivity(ctx, "telegram", "acct", models.ActionLogin)
	require.NoError(t, err)
	assert.Nil(t, none)
}
