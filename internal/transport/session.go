package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/models"
	"github.com/nvoskov/outreach-bot/internal/storage"
)

// Guard wraps transport operations with bounded re-authentication.
// When a wrapped call fails with ErrAuthExpired the guard marks the
// session invalid, authenticates exactly once and re-issues the call
// exactly once. Retry depth is capped at one so permanently invalid
// credentials cannot cause an authentication loop.
type Guard struct {
	transport Transport
	store     storage.ActivityStorage
	logger    *zap.Logger

	mu            sync.Mutex
	authenticated bool
}

// NewGuard wraps t. store may be nil; when set, successful logins are
// recorded as account activity samples.
func NewGuard(t Transport, store storage.ActivityStorage, logger *zap.Logger) *Guard {
	return &Guard{
		transport: t,
		store:     store,
		logger:    logger,
	}
}

// Transport returns the wrapped transport.
func (g *Guard) Transport() Transport {
	return g.transport
}

// Do runs op, authenticating first if the session is not established.
// On an expired-session failure it re-authenticates and retries op
// once. Authentication failures are returned as *AuthenticationError.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := g.ensureAuthenticated(ctx); err != nil {
		return err
	}

	err := op(ctx)
	if err == nil || !errors.Is(err, ErrAuthExpired) {
		return err
	}

	g.logger.Info("Session expired, re-authenticating",
		zap.String("platform", g.transport.Platform()))
	g.setAuthenticated(false)

	if err := g.ensureAuthenticated(ctx); err != nil {
		return err
	}

	// Single retry after a fresh login. If the session is reported
	// expired again the credentials are not usable.
	if err := op(ctx); err != nil {
		if errors.Is(err, ErrAuthExpired) {
			g.setAuthenticated(false)
			return &AuthenticationError{Platform: g.transport.Platform(), Err: err}
		}
		return err
	}
	return nil
}

// Send is a guarded Transport.Send.
func (g *Guard) Send(ctx context.Context, recipientID, text string) (SendResult, error) {
	var result SendResult
	err := g.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = g.transport.Send(ctx, recipientID, text)
		return opErr
	})
	return result, err
}

// Receive is a guarded Transport.Receive.
func (g *Guard) Receive(ctx context.Context) ([]InboundMessage, error) {
	var messages []InboundMessage
	err := g.Do(ctx, func(ctx context.Context) error {
		var opErr error
		messages, opErr = g.transport.Receive(ctx)
		return opErr
	})
	return messages, err
}

// AcceptPending is a guarded Transport.AcceptPending.
func (g *Guard) AcceptPending(ctx context.Context) (int, error) {
	var accepted int
	err := g.Do(ctx, func(ctx context.Context) error {
		var opErr error
		accepted, opErr = g.transport.AcceptPending(ctx)
		return opErr
	})
	return accepted, err
}

// UserInfo is a guarded Transport.UserInfo.
func (g *Guard) UserInfo(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := g.Do(ctx, func(ctx context.Context) error {
		var opErr error
		profile, opErr = g.transport.UserInfo(ctx, userID)
		return opErr
	})
	return profile, err
}

func (g *Guard) ensureAuthenticated(ctx context.Context) error {
	g.mu.Lock()
	authenticated := g.authenticated
	g.mu.Unlock()
	if authenticated {
		return nil
	}

	if err := g.transport.Authenticate(ctx); err != nil {
		return &AuthenticationError{Platform: g.transport.Platform(), Err: err}
	}
	g.setAuthenticated(true)

	g.logger.Info("Authenticated",
		zap.String("platform", g.transport.Platform()),
		zap.String("account", g.transport.Account()))

	if g.store != nil {
		if err := g.store.RecordActivity(ctx, &models.AccountActivity{
			Platform:    g.transport.Platform(),
			AccountName: g.transport.Account(),
			ActionType:  models.ActionLogin,
			Details:     "successful login",
		}); err != nil {
			g.logger.Warn("Failed to record login activity",
				zap.Error(err),
				zap.String("platform", g.transport.Platform()))
		}
	}
	return nil
}

func (g *Guard) setAuthenticated(v bool) {
	g.mu.Lock()
	g.authenticated = v
	g.mu.Unlock()
}
