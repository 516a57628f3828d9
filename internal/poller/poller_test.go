package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/lifecycle"
	"github.com/nvoskov/outreach-bot/internal/models"
	"github.com/nvoskov/outreach-bot/internal/ratelimit"
	"github.com/nvoskov/outreach-bot/internal/router"
	"github.com/nvoskov/outreach-bot/internal/storage"
	"github.com/nvoskov/outreach-bot/internal/transport"
)

// scriptedTransport returns one batch of events per Receive call.
type scriptedTransport struct {
	mu         sync.Mutex
	batches    [][]transport.InboundMessage
	receiveErr error
	sent       []string
	pending    int
}

func (s *scriptedTransport) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *scriptedTransport) Platform() string { return "telegram" }
func (s *scriptedTransport) Account() string  { return "test-bot" }

func (s *scriptedTransport) Authenticate(ctx context.Context) error { return nil }

func (s *scriptedTransport) Send(ctx context.Context, recipientID, text string) (transport.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return transport.SendResult{MessageID: fmt.Sprintf("out-%d", len(s.sent))}, nil
}

func (s *scriptedTransport) Receive(ctx context.Context) ([]transport.InboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiveErr != nil {
		return nil, s.receiveErr
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *scriptedTransport) AcceptPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted := s.pending
	s.pending = 0
	return accepted, nil
}

func (s *scriptedTransport) UserInfo(ctx context.Context, userID string) (models.UserProfile, error) {
	return models.UserProfile{FirstName: "Иван"}, nil
}

type staticGenerator struct{}

func (staticGenerator) Generate(ctx context.Context, turns []models.ContextTurn, styleHint, clientName string) (string, error) {
	return "Хорошо, понял вас!", nil
}

func newTestPoller(st *scriptedTransport) (*Poller, *storage.MemoryStorage, *transport.Guard) {
	store := storage.NewMemoryStorage()
	guard := transport.NewGuard(st, store, zap.NewNop())
	gate := ratelimit.New("telegram", "test-bot", ratelimit.Limits{DailyCeiling: 100}, store, zap.NewNop())

	r := router.New(store, staticGenerator{}, lifecycle.New(nil, nil, 0), router.Config{}, zap.NewNop())
	r.Bind("telegram", &router.Binding{Guard: guard, Gate: gate})

	p := New(r, Config{
		PollMin:      time.Millisecond,
		PollMax:      2 * time.Millisecond,
		BackoffMin:   time.Millisecond,
		BackoffMax:   2 * time.Millisecond,
		MessageDelay: 0,
	}, zap.NewNop())
	p.Add("telegram", guard)
	return p, store, guard
}

func TestDrainHandlesEventsInOrder(t *testing.T) {
	st := &scriptedTransport{
		pending: 2,
		batches: [][]transport.InboundMessage{{
			{MessageID: "1", UserID: "100", Text: "привет", Timestamp: time.Now()},
			{MessageID: "2", UserID: "100", Text: "расскажи об услугах", Timestamp: time.Now()},
		}},
	}
	p, store, _ := newTestPoller(st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return st.sentCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	client, _, err := store.GetOrCreateClient(context.Background(), "telegram", "100", models.UserProfile{})
	require.NoError(t, err)
	messages, err := store.RecentMessages(context.Background(), client.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "привет", messages[0].Content)
	assert.Equal(t, "расскажи об услугах", messages[2].Content)
}

func TestCycleErrorBacksOffAndRetries(t *testing.T) {
	st := &scriptedTransport{receiveErr: errors.New("transport unreachable")}
	p, _, _ := newTestPoller(st)

	var cycles atomic.Int32
	p.sleep = func(ctx context.Context, d time.Duration) {
		n := cycles.Add(1)
		if n >= 3 {
			// Recover the transport after a few backoffs.
			st.mu.Lock()
			st.receiveErr = nil
			st.mu.Unlock()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go p.Run(ctx)
	require.Eventually(t, func() bool { return cycles.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestStopTakesEffectAtIdleBoundary(t *testing.T) {
	st := &scriptedTransport{}
	p, _, _ := newTestPoller(st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
