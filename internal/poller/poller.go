package poller

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/metrics"
	"github.com/nvoskov/outreach-bot/internal/router"
	"github.com/nvoskov/outreach-bot/internal/transport"
)

// Config holds the scheduling tunables of the poll loop.
type Config struct {
	// Poll interval is drawn uniformly from [PollMin, PollMax] so the
	// cadence is not detectably fixed.
	PollMin time.Duration
	PollMax time.Duration
	// Backoff after a failed cycle, also jittered.
	BackoffMin time.Duration
	BackoffMax time.Duration
	// MessageDelay separates consecutive handlings within one cycle.
	MessageDelay time.Duration
}

// DefaultConfig mirrors production pacing: poll every 1-2 minutes,
// back off 5-10 minutes after a failed cycle.
func DefaultConfig() Config {
	return Config{
		PollMin:      60 * time.Second,
		PollMax:      120 * time.Second,
		BackoffMin:   5 * time.Minute,
		BackoffMax:   10 * time.Minute,
		MessageDelay: 2 * time.Second,
	}
}

// Worker drives one transport: poll, drain, hand events to the router.
type worker struct {
	platform string
	guard    *transport.Guard
}

// Poller runs one worker per registered transport. Within a worker,
// cycles run to completion and events are handled strictly
// sequentially; workers for different platforms run concurrently since
// they own disjoint account state.
type Poller struct {
	router  *router.Router
	cfg     Config
	logger  *zap.Logger
	workers []worker

	sleep func(ctx context.Context, d time.Duration)
}

func New(r *router.Router, cfg Config, logger *zap.Logger) *Poller {
	if cfg.PollMin <= 0 || cfg.PollMax < cfg.PollMin {
		def := DefaultConfig()
		cfg.PollMin, cfg.PollMax = def.PollMin, def.PollMax
	}
	if cfg.BackoffMin <= 0 || cfg.BackoffMax < cfg.BackoffMin {
		def := DefaultConfig()
		cfg.BackoffMin, cfg.BackoffMax = def.BackoffMin, def.BackoffMax
	}
	return &Poller{
		router: r,
		cfg:    cfg,
		logger: logger,
		sleep:  ctxSleep,
	}
}

// Add registers a transport worker. Must be called before Run.
func (p *Poller) Add(platform string, guard *transport.Guard) {
	p.workers = append(p.workers, worker{platform: platform, guard: guard})
}

// Run blocks until ctx is cancelled. Cancellation is honored at idle
// boundaries: an in-flight cycle always runs to completion.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w worker) {
			defer wg.Done()
			p.runWorker(ctx, w)
		}(w)
	}
	wg.Wait()
}

func (p *Poller) runWorker(ctx context.Context, w worker) {
	p.logger.Info("Poll worker started", zap.String("platform", w.platform))

	for {
		if ctx.Err() != nil {
			p.logger.Info("Poll worker stopped", zap.String("platform", w.platform))
			return
		}

		if err := p.cycle(ctx, w); err != nil {
			metrics.PollCycleErrors.WithLabelValues(w.platform).Inc()
			backoff := jitter(p.cfg.BackoffMin, p.cfg.BackoffMax)
			p.logger.Error("Poll cycle failed, backing off",
				zap.Error(err),
				zap.String("platform", w.platform),
				zap.Duration("backoff", backoff))
			p.sleep(ctx, backoff)
			continue
		}

		p.sleep(ctx, jitter(p.cfg.PollMin, p.cfg.PollMax))
	}
}

// cycle performs one poll → drain pass: accept pending conversation
// requests, fetch new events, handle them in arrival order. Per-event
// failures are contained by the router and logged here; only
// transport-level failures abort the cycle.
func (p *Poller) cycle(ctx context.Context, w worker) error {
	accepted, err := w.guard.AcceptPending(ctx)
	if err != nil {
		return err
	}
	if accepted > 0 {
		p.logger.Info("Accepted pending conversation requests",
			zap.String("platform", w.platform),
			zap.Int("count", accepted))
	}

	events, err := w.guard.Receive(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	p.logger.Info("Draining inbound events",
		zap.String("platform", w.platform),
		zap.Int("count", len(events)))

	for i, event := range events {
		outcome, err := p.router.Handle(ctx, w.platform, event)
		if err != nil {
			p.logger.Error("Failed to handle event",
				zap.Error(err),
				zap.String("platform", w.platform),
				zap.String("user_id", event.UserID),
				zap.String("outcome", string(outcome)))
		} else {
			p.logger.Info("Event handled",
				zap.String("platform", w.platform),
				zap.String("user_id", event.UserID),
				zap.String("outcome", string(outcome)))
		}

		// Smooth outbound traffic inside the cycle.
		if p.cfg.MessageDelay > 0 && i < len(events)-1 {
			p.sleep(ctx, p.cfg.MessageDelay)
		}
	}

	return nil
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
