package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/config"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/delivery"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/poll"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/sampler"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	session *discordgo.Session

	history  history.Client
	delivery *delivery.Engine
	poll     *poll.Engine

	stopScheduler chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, st *store.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		cfg:           cfg,
		logger:        logger,
		store:         st,
		session:       session,
		stopScheduler: make(chan struct{}),
	}, nil
}

// Start wires the engines and connects to the gateway. The bot's own user is
// looked up over REST first so every engine is in place before the session
// opens; handlers run on their own goroutines and must never observe a
// half-built bot.
func (b *Bot) Start() error {
	self, err := b.session.User("@me")
	if err != nil {
		return err
	}
	b.wire(self.ID)

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	b.startScheduler()

	return nil
}

func (b *Bot) wire(selfID string) {
	b.history = history.NewDiscordClient(b.session, b.logger)
	ms := sampler.NewMessageSampler(b.history, sampler.NewFilter(selfID), b.logger)
	b.delivery = delivery.NewEngine(b.store, ms, b.history, b.cfg.Sampling, b.logger)
	b.poll = poll.NewEngine(b.store, ms, b.history, b.cfg.Sampling, b.logger)
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	close(b.stopScheduler)
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Guild.ID == "" {
		return
	}
	if err := b.store.EnsureGuild(event.Guild.ID, event.Guild.Name); err != nil {
		b.logger.Error("guild bootstrap failed",
			zap.String("guild_id", event.Guild.ID), zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	b.dispatchCommand(msg)
}
