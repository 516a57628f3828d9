package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// ErrAuthExpired is the signal a transport returns (wrapped) when the
// platform reports that the authenticated session is no longer valid.
// The session guard matches it with errors.Is.
var ErrAuthExpired = errors.New("session expired")

// AuthenticationError is surfaced when re-authentication failed or the
// retried operation still reports an expired session. It is fatal for
// the current cycle but never for the process.
type AuthenticationError struct {
	Platform string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Platform, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// SendResult carries platform metadata of a delivered message.
type SendResult struct {
	MessageID string
}

// InboundMessage is one event retrieved from a transport.
type InboundMessage struct {
	MessageID string
	ThreadID  string
	UserID    string
	Text      string
	Timestamp time.Time
}

// Transport is a platform adapter. Implementations report expired
// sessions by returning an error wrapping ErrAuthExpired; everything
// else is treated as a generic transport failure.
type Transport interface {
	// Platform returns the configuration key this transport is
	// registered under ("telegram", "instagram", ...).
	Platform() string

	// Account is the authenticated identity used for rate accounting.
	Account() string

	Authenticate(ctx context.Context) error
	Send(ctx context.Context, recipientID, text string) (SendResult, error)
	Receive(ctx context.Context) ([]InboundMessage, error)

	// AcceptPending approves pending conversation requests where the
	// platform has such a notion; others return (0, nil).
	AcceptPending(ctx context.Context) (int, error)

	UserInfo(ctx context.Context, userID string) (models.UserProfile, error)
}

// Registry is the closed set of transports, keyed by platform name.
// Transports are selected by configuration key, never by inspecting
// their concrete type.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

func (r *Registry) Register(t Transport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Platform()
	if _, exists := r.transports[name]; exists {
		return fmt.Errorf("transport already registered: %s", name)
	}
	r.transports[name] = t
	return nil
}

func (r *Registry) Get(platform string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transports[platform]
	return t, ok
}

// Platforms returns the registered platform names in stable order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
