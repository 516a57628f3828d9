package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/models"
	"github.com/nvoskov/outreach-bot/internal/storage"
)

// Limits are the per-platform sending constraints of one account.
type Limits struct {
	// DailyCeiling is the maximum number of outbound sends per calendar day.
	DailyCeiling int
	// MinInterval is the minimum gap between consecutive sends.
	MinInterval time.Duration
	// Working hours window [WorkStartHour, WorkEndHour) in local time.
	// Only enforced when EnforceWorkingHours is set.
	WorkStartHour       int
	WorkEndHour         int
	EnforceWorkingHours bool
}

// Gate tracks send counters for one platform account and answers
// whether a send is currently allowed. Counters survive restarts by
// being rebuilt from account activity samples.
type Gate struct {
	platform string
	account  string
	limits   Limits
	store    storage.ActivityStorage
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	sentToday int
	day       time.Time
	lastSend  time.Time
}

func New(platform, account string, limits Limits, store storage.ActivityStorage, logger *zap.Logger) *Gate {
	return &Gate{
		platform: platform,
		account:  account,
		limits:   limits,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the gate's clock. Used by tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Restore rebuilds today's counters from persisted activity samples.
// On failure the gate logs and continues with zero counters: it fails
// open, accepting the risk of over-sending across a crash boundary
// rather than silencing the account for the rest of the day.
func (g *Gate) Restore(ctx context.Context) {
	now := g.now()
	dayStart := startOfDay(now)

	count, err := g.store.CountActivity(ctx, g.platform, g.account, models.ActionMessageSent, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		g.logger.Error("Failed to restore send counter, starting from zero",
			zap.Error(err),
			zap.String("platform", g.platform),
			zap.String("account", g.account))
		return
	}

	last, err := g.store.LastActivity(ctx, g.platform, g.account, models.ActionMessageSent)
	if err != nil {
		g.logger.Error("Failed to restore last send time, starting from zero",
			zap.Error(err),
			zap.String("platform", g.platform),
			zap.String("account", g.account))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.day = dayStart
	g.sentToday = count
	if last != nil {
		g.lastSend = last.Timestamp
	}

	g.logger.Info("Restored send counters",
		zap.String("platform", g.platform),
		zap.String("account", g.account),
		zap.Int("sent_today", count))
}

// Allow reports whether a send is permitted right now. It does not
// consume budget; the caller records a successful send via RecordSend.
func (g *Gate) Allow() bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now)

	if g.limits.EnforceWorkingHours {
		hour := now.Hour()
		if hour < g.limits.WorkStartHour || hour >= g.limits.WorkEndHour {
			g.logger.Debug("Outside working hours",
				zap.String("platform", g.platform),
				zap.Int("hour", hour))
			return false
		}
	}

	if g.limits.DailyCeiling > 0 && g.sentToday >= g.limits.DailyCeiling {
		g.logger.Warn("Daily message limit reached",
			zap.String("platform", g.platform),
			zap.String("account", g.account),
			zap.Int("sent_today", g.sentToday),
			zap.Int("ceiling", g.limits.DailyCeiling))
		return false
	}

	if g.limits.MinInterval > 0 && !g.lastSend.IsZero() {
		if elapsed := now.Sub(g.lastSend); elapsed < g.limits.MinInterval {
			g.logger.Debug("Not enough time since last send",
				zap.String("platform", g.platform),
				zap.Duration("elapsed", elapsed),
				zap.Duration("min_interval", g.limits.MinInterval))
			return false
		}
	}

	return true
}

// RecordSend consumes one unit of today's budget and appends a durable
// activity sample so the counter can be rebuilt after a restart. Called
// by the router atomically with a successful send.
func (g *Gate) RecordSend(ctx context.Context, details string) error {
	now := g.now()

	g.mu.Lock()
	g.rollover(now)
	g.sentToday++
	g.lastSend = now
	g.mu.Unlock()

	err := g.store.RecordActivity(ctx, &models.AccountActivity{
		Platform:    g.platform,
		AccountName: g.account,
		ActionType:  models.ActionMessageSent,
		Details:     details,
		Timestamp:   now,
	})
	if err != nil {
		return fmt.Errorf("failed to record send activity: %w", err)
	}
	return nil
}

// SentToday returns the current day's counter.
func (g *Gate) SentToday() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(g.now())
	return g.sentToday
}

// rollover resets the counter when the calendar day has changed.
// Caller must hold mu.
func (g *Gate) rollover(now time.Time) {
	dayStart := startOfDay(now)
	if !dayStart.Equal(g.day) {
		g.day = dayStart
		g.sentToday = 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
