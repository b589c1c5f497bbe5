// Package delivery drives message sampling with bounded retry until one
// eligible message has been forwarded, or the attempt budget is spent.
package delivery

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/config"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/sampler"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/telemetry"
)

type Outcome int

const (
	Delivered Outcome = iota
	NotConfigured
	Exhausted
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NotConfigured:
		return "not_configured"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type Engine struct {
	store   *store.Store
	sampler *sampler.MessageSampler
	history history.Client
	logger  *zap.Logger
	cfg     config.SamplingConfig

	now func() time.Time
}

func NewEngine(st *store.Store, ms *sampler.MessageSampler, client history.Client, cfg config.SamplingConfig, logger *zap.Logger) *Engine {
	return &Engine{
		store:   st,
		sampler: ms,
		history: client,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Deliver samples the guild's source channel and forwards at most one
// eligible message to the destination channel. Failures are retried with a
// fixed backoff up to the configured attempt ceiling; spending the budget is
// a logged no-op, never an error surfaced to the triggering channel.
func (e *Engine) Deliver(ctx context.Context, guildID string) Outcome {
	cfg, ok := e.store.Get(guildID)
	if !ok || !cfg.Configured() || cfg.WindowStart == nil {
		e.logger.Info("delivery skipped, guild not configured", zap.String("guild_id", guildID))
		return NotConfigured
	}

	log := e.logger.With(
		zap.String("guild_id", guildID),
		zap.String("run_id", uuid.NewString()))
	tolerance := time.Duration(e.cfg.ToleranceDays) * 24 * time.Hour
	backoff := time.Duration(e.cfg.RetryBackoffMillis) * time.Millisecond

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 && !e.wait(ctx, backoff) {
			log.Info("delivery aborted", zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			return Aborted
		}
		telemetry.IncDeliveryAttempt()

		// End of the window is recomputed per attempt so it keeps up
		// with real time.
		around, err := sampler.RandomInstant(*cfg.WindowStart, e.now())
		if err != nil {
			log.Error("sampling window rejected", zap.Error(err))
			return Aborted
		}

		candidates, err := e.sampler.Candidates(ctx, cfg, around, e.cfg.FetchLimit)
		if err != nil {
			log.Warn("candidate fetch failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})

		for _, candidate := range candidates {
			// Sparse channels can resolve a sampled instant to a
			// message from a completely different era; keep only
			// candidates near the instant.
			if absDuration(candidate.CreatedAt.Sub(around)) > tolerance {
				continue
			}
			if err := e.forward(ctx, cfg.DestChannelID, candidate); err != nil {
				log.Warn("forward failed", zap.Int("attempt", attempt), zap.Error(err))
				break
			}
			log.Info("random message delivered",
				zap.String("author", candidate.AuthorName),
				zap.Time("created_at", candidate.CreatedAt),
				zap.Time("around", around))
			telemetry.IncDeliverySucceeded()
			return Delivered
		}
	}

	log.Info("delivery retries exhausted", zap.Int("max_attempts", e.cfg.MaxAttempts))
	telemetry.IncDeliveryExhausted()
	return Exhausted
}

func (e *Engine) forward(ctx context.Context, channelID string, msg history.Message) error {
	if msg.AttachmentURL != "" {
		_, err := e.history.SendAttachmentURL(ctx, channelID, msg.AttachmentURL)
		return err
	}
	_, err := e.history.SendText(ctx, channelID, msg.Content)
	return err
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
