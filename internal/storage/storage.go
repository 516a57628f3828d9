package storage

import (
	"context"
	"time"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// Storage is the persistence layer shared by all platform workers.
// Every operation is a short-lived, independently committed transaction.
type Storage interface {
	// GetOrCreateClient resolves a client by (platform, platformID),
	// creating it on first contact. Resolution is idempotent: repeated
	// calls for the same pair return the same client. On an existing
	// client the display-name fields are refreshed from profile (empty
	// fields are ignored) and last activity is bumped. The second
	// return value reports whether the client was created by this call.
	GetOrCreateClient(ctx context.Context, platform, platformID string, profile models.UserProfile) (*models.Client, bool, error)

	// UpdateClientStatus persists a lifecycle transition.
	UpdateClientStatus(ctx context.Context, clientID int64, status models.ClientStatus) error

	// AppendMessage durably records one sent or received message.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// RecentMessages returns at most limit messages for a client,
	// oldest-first. Never scans full history.
	RecentMessages(ctx context.Context, clientID int64, limit int) ([]*models.Message, error)

	ActivityStorage

	Close() error
}

// ActivityStorage records and queries per-account activity samples.
// It is the narrow dependency of the rate gate and the session guard.
type ActivityStorage interface {
	RecordActivity(ctx context.Context, activity *models.AccountActivity) error

	// CountActivity counts samples of the given action for an account
	// within [since, until).
	CountActivity(ctx context.Context, platform, account, action string, since, until time.Time) (int, error)

	// LastActivity returns the most recent sample of the given action,
	// or nil when the account has none.
	LastActivity(ctx context.Context, platform, account, action string) (*models.AccountActivity, error)
}
