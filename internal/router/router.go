package router

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/generator"
	"github.com/nvoskov/outreach-bot/internal/lifecycle"
	"github.com/nvoskov/outreach-bot/internal/metrics"
	"github.com/nvoskov/outreach-bot/internal/models"
	"github.com/nvoskov/outreach-bot/internal/ratelimit"
	"github.com/nvoskov/outreach-bot/internal/storage"
	"github.com/nvoskov/outreach-bot/internal/transport"
)

// ErrGenerationFailed marks a handling attempt aborted because the
// generator errored or returned nothing. No reply is fabricated.
var ErrGenerationFailed = errors.New("reply generation failed")

// Outcome reports how one inbound event was concluded.
type Outcome string

const (
	// OutcomeReplied: a generated reply was sent and recorded.
	OutcomeReplied Outcome = "replied"
	// OutcomeFarewell: the client opted out; one farewell was sent.
	OutcomeFarewell Outcome = "farewell"
	// OutcomeRateLimited: the rate gate denied the send; event dropped.
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeGenerationFailed: the generator produced nothing usable.
	OutcomeGenerationFailed Outcome = "generation_failed"
	// OutcomeSendFailed: the guarded send failed.
	OutcomeSendFailed Outcome = "send_failed"
	// OutcomeDropped: the client opted out earlier; no contact is
	// attempted, the inbound message is only recorded.
	OutcomeDropped Outcome = "dropped"
)

// Config holds the router tunables.
type Config struct {
	// ContextLimit bounds the conversation context passed to the
	// generator, independent of total history length.
	ContextLimit int
	// FarewellText is sent once when a client opts out.
	FarewellText string
	// FallbackText, when non-empty, is sent in place of a failed
	// generation instead of dropping the reply.
	FallbackText string
	// TypingEmulation inserts a reply-length-proportional delay
	// before each send.
	TypingEmulation bool
}

const (
	defaultContextLimit = 10
	defaultFarewell     = "Понял, больше не буду беспокоить. Хорошего дня!"

	typingDelayPerRune = 50 * time.Millisecond
	typingDelayMax     = 5 * time.Second
)

// Binding is the per-platform dependency set of the router.
type Binding struct {
	Guard     *transport.Guard
	Gate      *ratelimit.Gate
	StyleHint string
}

// Router decides, for every inbound event, whether and what to reply.
// Handling of events for one platform account is strictly sequential;
// the poll loop is responsible for never invoking Handle concurrently
// for the same platform.
type Router struct {
	store      storage.Storage
	gen        generator.Generator
	classifier *lifecycle.Classifier
	bindings   map[string]*Binding
	cfg        Config
	logger     *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(store storage.Storage, gen generator.Generator, classifier *lifecycle.Classifier, cfg Config, logger *zap.Logger) *Router {
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = defaultContextLimit
	}
	if cfg.FarewellText == "" {
		cfg.FarewellText = defaultFarewell
	}
	return &Router{
		store:      store,
		gen:        gen,
		classifier: classifier,
		bindings:   make(map[string]*Binding),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      ctxSleep,
	}
}

// Bind registers the transport guard, rate gate and style hint of one
// platform.
func (r *Router) Bind(platform string, binding *Binding) {
	r.bindings[platform] = binding
}

// Handle processes one inbound event end to end: resolve the client,
// record the message, classify the lifecycle, generate and send a
// reply. Errors are contained to this event; the caller decides cycle
// policy.
func (r *Router) Handle(ctx context.Context, platform string, event transport.InboundMessage) (Outcome, error) {
	binding, ok := r.bindings[platform]
	if !ok {
		return "", fmt.Errorf("no binding for platform %s", platform)
	}

	metrics.MessagesReceived.WithLabelValues(platform).Inc()

	// Display names are refreshed on every event; failures here are
	// not worth aborting for.
	profile, err := binding.Guard.UserInfo(ctx, event.UserID)
	if err != nil {
		r.logger.Debug("Failed to fetch user profile",
			zap.Error(err),
			zap.String("platform", platform),
			zap.String("user_id", event.UserID))
		profile = models.UserProfile{}
	}

	client, created, err := r.store.GetOrCreateClient(ctx, platform, event.UserID, profile)
	if err != nil {
		return "", fmt.Errorf("failed to resolve client %s:%s: %w", platform, event.UserID, err)
	}
	if created {
		metrics.ClientsCreated.WithLabelValues(platform).Inc()
		r.logger.Info("Created new client",
			zap.String("platform", platform),
			zap.String("platform_id", event.UserID),
			zap.Int64("client_id", client.ID))
	}

	// A lost history entry is less harmful than a silently dropped
	// reply, so persistence failures only log.
	r.appendMessage(ctx, client.ID, models.DirectionInbound, event.Text, event.MessageID, event.ThreadID)

	if client.Status == models.StatusRejected {
		r.logger.Debug("Ignoring message from rejected client",
			zap.String("platform", platform),
			zap.Int64("client_id", client.ID))
		return OutcomeDropped, nil
	}

	status := r.classifier.Next(client.Status, event.Text)
	if status != client.Status {
		if err := r.store.UpdateClientStatus(ctx, client.ID, status); err != nil {
			r.logger.Error("Failed to update client status",
				zap.Error(err),
				zap.Int64("client_id", client.ID),
				zap.String("status", string(status)))
		} else {
			r.logger.Info("Client status updated",
				zap.Int64("client_id", client.ID),
				zap.String("status", string(status)))
		}
	}

	if status == models.StatusRejected {
		metrics.ClientsRejected.WithLabelValues(platform).Inc()
		return r.sendFarewell(ctx, platform, binding, client, event)
	}

	reply, err := r.generateReply(ctx, binding, client)
	if err != nil {
		metrics.GenerationFailures.WithLabelValues(platform).Inc()
		if r.cfg.FallbackText == "" {
			return OutcomeGenerationFailed, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		r.logger.Warn("Generation failed, using fallback text",
			zap.Error(err),
			zap.Int64("client_id", client.ID))
		reply = r.cfg.FallbackText
	}
	reply = adaptForPlatform(reply, platform)

	if !binding.Gate.Allow() {
		metrics.RateLimitDenials.WithLabelValues(platform).Inc()
		r.logger.Warn("Send suppressed by rate gate",
			zap.String("platform", platform),
			zap.Int64("client_id", client.ID))
		return OutcomeRateLimited, nil
	}

	if r.cfg.TypingEmulation {
		r.sleep(ctx, typingDelay(reply))
	}

	result, err := binding.Guard.Send(ctx, event.UserID, reply)
	if err != nil {
		metrics.SendFailures.WithLabelValues(platform).Inc()
		return OutcomeSendFailed, fmt.Errorf("failed to send reply to %s:%s: %w", platform, event.UserID, err)
	}

	r.recordSend(ctx, platform, binding, client, reply, result)
	return OutcomeReplied, nil
}

// sendFarewell delivers the single opt-out farewell, bypassing the
// generator but not the rate gate: no code path may push the daily
// counter past the ceiling. On denial the rejected status is already
// persisted, so the client is never contacted again regardless.
func (r *Router) sendFarewell(ctx context.Context, platform string, binding *Binding, client *models.Client, event transport.InboundMessage) (Outcome, error) {
	if !binding.Gate.Allow() {
		metrics.RateLimitDenials.WithLabelValues(platform).Inc()
		r.logger.Warn("Farewell suppressed by rate gate",
			zap.String("platform", platform),
			zap.Int64("client_id", client.ID))
		return OutcomeRateLimited, nil
	}

	text := adaptForPlatform(r.cfg.FarewellText, platform)

	result, err := binding.Guard.Send(ctx, event.UserID, text)
	if err != nil {
		metrics.SendFailures.WithLabelValues(platform).Inc()
		return OutcomeSendFailed, fmt.Errorf("failed to send farewell to %s:%s: %w", platform, event.UserID, err)
	}

	r.recordSend(ctx, platform, binding, client, text, result)
	r.logger.Info("Client opted out, farewell sent",
		zap.String("platform", platform),
		zap.Int64("client_id", client.ID))
	return OutcomeFarewell, nil
}

func (r *Router) generateReply(ctx context.Context, binding *Binding, client *models.Client) (string, error) {
	history, err := r.store.RecentMessages(ctx, client.ID, r.cfg.ContextLimit)
	if err != nil {
		// Degrade to an empty context rather than dropping the event.
		r.logger.Error("Failed to read conversation context",
			zap.Error(err),
			zap.Int64("client_id", client.ID))
		history = nil
	}

	reply, err := r.gen.Generate(ctx, models.ContextFromMessages(history), binding.StyleHint, client.FirstName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("generator returned empty reply")
	}
	return reply, nil
}

// recordSend persists the outbound message and consumes rate budget.
// Both are best-effort after a successful delivery.
func (r *Router) recordSend(ctx context.Context, platform string, binding *Binding, client *models.Client, text string, result transport.SendResult) {
	r.appendMessage(ctx, client.ID, models.DirectionOutbound, text, result.MessageID, "")

	if err := binding.Gate.RecordSend(ctx, fmt.Sprintf("message sent to client %d", client.ID)); err != nil {
		r.logger.Error("Failed to record send activity",
			zap.Error(err),
			zap.String("platform", platform),
			zap.Int64("client_id", client.ID))
	}

	metrics.MessagesSent.WithLabelValues(platform).Inc()
}

func (r *Router) appendMessage(ctx context.Context, clientID int64, direction models.Direction, text, platformMessageID, threadID string) {
	err := r.store.AppendMessage(ctx, &models.Message{
		ID:                uuid.New().String(),
		ClientID:          clientID,
		Direction:         direction,
		Content:           text,
		PlatformMessageID: platformMessageID,
		ThreadID:          threadID,
		CreatedAt:         r.now(),
	})
	if err != nil {
		r.logger.Error("Failed to save message",
			zap.Error(err),
			zap.Int64("client_id", clientID),
			zap.String("direction", string(direction)))
	}
}

// typingDelay approximates human typing cadence: proportional to reply
// length, capped, with a small random component.
func typingDelay(text string) time.Duration {
	d := time.Duration(len([]rune(text))) * typingDelayPerRune
	if d > typingDelayMax {
		d = typingDelayMax
	}
	return d + time.Duration(500+rand.Intn(1500))*time.Millisecond
}

// adaptForPlatform strips formatting the target platform cannot render.
func adaptForPlatform(text, platform string) string {
	if platform == "telegram" {
		return text
	}
	replacer := strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")
	return replacer.Replace(text)
}

func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
