package sampler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
)

// MessageSampler fetches history around an instant and keeps the messages
// that pass the eligibility filter. Order of the result is arbitrary; callers
// that need randomness shuffle explicitly.
type MessageSampler struct {
	history history.Client
	filter  *Filter
	logger  *zap.Logger
}

func NewMessageSampler(client history.Client, filter *Filter, logger *zap.Logger) *MessageSampler {
	return &MessageSampler{history: client, filter: filter, logger: logger}
}

func (s *MessageSampler) Candidates(ctx context.Context, cfg store.GuildConfig, around time.Time, limit int) ([]history.Message, error) {
	msgs, err := s.history.FetchAround(ctx, cfg.SourceChannelID, around, limit)
	if err != nil {
		return nil, err
	}

	eligible := make([]history.Message, 0, len(msgs))
	for _, msg := range msgs {
		if s.filter.Eligible(cfg, msg) {
			eligible = append(eligible, msg)
		}
	}
	s.logger.Info("sampled candidates",
		zap.String("channel_id", cfg.SourceChannelID),
		zap.Time("around", around),
		zap.Int("fetched", len(msgs)),
		zap.Int("eligible", len(eligible)))
	return eligible, nil
}
