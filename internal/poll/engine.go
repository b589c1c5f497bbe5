// Package poll runs the "who sent it" game: a sampled message, three author
// choices, a live countdown, and a reveal.
package poll

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/config"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/sampler"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/telemetry"
)

var ErrInvalidDuration = errors.New("invalid countdown duration")

// State holds one active poll. It exists from acceptance of the command
// until the reveal and is never persisted.
type State struct {
	ID            string
	CorrectAnswer string
	Distractors   [2]string
	RevealAt      time.Time
	Remaining     int
}

type Engine struct {
	store   *store.Store
	sampler *sampler.MessageSampler
	history history.Client
	logger  *zap.Logger
	cfg     config.SamplingConfig

	now  func() time.Time
	tick time.Duration
}

func NewEngine(st *store.Store, ms *sampler.MessageSampler, client history.Client, cfg config.SamplingConfig, logger *zap.Logger) *Engine {
	return &Engine{
		store:   st,
		sampler: ms,
		history: client,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		tick:    time.Second,
	}
}

// ParseDuration extracts the countdown length from the command arguments.
// Exactly one argument is accepted, a positive integer count of seconds;
// trailing tokens invalidate the command.
func ParseDuration(args []string) (int, error) {
	if len(args) != 1 {
		return 0, ErrInvalidDuration
	}
	arg := strings.TrimSpace(args[0])
	if arg == "" {
		return 0, ErrInvalidDuration
	}
	seconds, err := strconv.Atoi(arg)
	if err != nil || seconds <= 0 {
		return 0, ErrInvalidDuration
	}
	return seconds, nil
}

// Run collects candidates, builds the poll, and drives the countdown to the
// reveal. Collection is retried with backoff a bounded number of times when
// the sample cannot supply three distinct authors; after that the poll is abandoned
// silently. Posting or editing failures abort the poll where it stands.
func (e *Engine) Run(ctx context.Context, guildID, channelID string, duration int) {
	cfg, ok := e.store.Get(guildID)
	if !ok || !cfg.Configured() || cfg.WindowStart == nil {
		e.logger.Info("poll skipped, guild not configured", zap.String("guild_id", guildID))
		return
	}

	pollID := uuid.NewString()
	log := e.logger.With(
		zap.String("guild_id", guildID),
		zap.String("poll_id", pollID))
	telemetry.IncPollStarted()
	backoff := time.Duration(e.cfg.RetryBackoffMillis) * time.Millisecond

	for attempt := 0; attempt < e.cfg.PollBuildRetries; attempt++ {
		if attempt > 0 && !e.wait(ctx, backoff) {
			log.Info("poll aborted", zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			return
		}
		answer, distractors, ok := e.collect(ctx, cfg, log)
		if !ok {
			continue
		}

		state := &State{
			ID:            pollID,
			CorrectAnswer: answer.AuthorName,
			Distractors:   distractors,
			RevealAt:      e.now().Add(time.Duration(duration) * time.Second),
			Remaining:     duration,
		}
		if !e.post(ctx, channelID, answer, state, log) {
			return
		}
		e.countdown(ctx, channelID, state, log)
		return
	}

	log.Info("poll abandoned, not enough distinct authors",
		zap.Int("retries", e.cfg.PollBuildRetries))
	telemetry.IncPollAbandoned()
}

// collect samples one pool of candidates and picks the answer plus two
// distractor authors, all pairwise distinct.
func (e *Engine) collect(ctx context.Context, cfg store.GuildConfig, log *zap.Logger) (history.Message, [2]string, bool) {
	var none history.Message

	around, err := sampler.RandomInstant(*cfg.WindowStart, e.now())
	if err != nil {
		log.Error("sampling window rejected", zap.Error(err))
		return none, [2]string{}, false
	}
	candidates, err := e.sampler.Candidates(ctx, cfg, around, e.cfg.FetchLimit)
	if err != nil {
		log.Warn("poll candidate fetch failed", zap.Error(err))
		return none, [2]string{}, false
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) == 0 {
		return none, [2]string{}, false
	}

	answer := candidates[0]
	var distractors []string
	for _, candidate := range candidates[1:] {
		if len(distractors) == 2 {
			break
		}
		name := candidate.AuthorName
		if name == answer.AuthorName {
			continue
		}
		if len(distractors) == 1 && name == distractors[0] {
			continue
		}
		distractors = append(distractors, name)
	}
	if len(distractors) < 2 {
		return none, [2]string{}, false
	}
	return answer, [2]string{distractors[0], distractors[1]}, true
}

func (e *Engine) post(ctx context.Context, channelID string, answer history.Message, state *State, log *zap.Logger) bool {
	choices := []string{state.CorrectAnswer, state.Distractors[0], state.Distractors[1]}
	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	content := fmt.Sprintf("Who sent this message?\n%q\n1. %s\n2. %s\n3. %s",
		answer.Content, choices[0], choices[1], choices[2])
	messageID, err := e.history.SendText(ctx, channelID, content)
	if err != nil {
		log.Warn("poll post failed", zap.Error(err))
		return false
	}
	for i := range choices {
		// Digit plus combining keycap: 1️⃣, 2️⃣, 3️⃣.
		marker := fmt.Sprintf("%d⃣", i+1)
		if err := e.history.AddReaction(ctx, channelID, messageID, marker); err != nil {
			log.Warn("poll reaction failed", zap.String("marker", marker), zap.Error(err))
			return false
		}
	}
	return true
}

func (e *Engine) countdown(ctx context.Context, channelID string, state *State, log *zap.Logger) {
	counterID, err := e.history.SendText(ctx, channelID, fmt.Sprintf("Countdown: %d", state.Remaining))
	if err != nil {
		log.Warn("countdown post failed", zap.Error(err))
		return
	}

	for ; state.Remaining >= 1; state.Remaining-- {
		if !e.wait(ctx, e.tick) {
			return
		}
		if err := e.history.EditMessage(ctx, channelID, counterID, fmt.Sprintf("Countdown: %d", state.Remaining)); err != nil {
			log.Warn("countdown edit failed", zap.Error(err))
			return
		}
	}

	if err := e.history.EditMessage(ctx, channelID, counterID, "Answer: "+state.CorrectAnswer); err != nil {
		log.Warn("reveal edit failed", zap.Error(err))
		return
	}
	log.Info("poll revealed", zap.String("answer", state.CorrectAnswer))
	telemetry.IncPollCompleted()
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
