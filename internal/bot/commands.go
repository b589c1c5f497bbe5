package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/delivery"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/poll"
)

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

const helpTemplate = "** Commands **\n\n" +
	"`%[1]shelp` - Shows this help message.\n" +
	"`%[1]sselectandsend #sourcechannel #destchannel` - Set the channel random messages are selected from and the channel they are sent to.\n" +
	"`%[1]surls` - Toggles the inclusion of messages containing URLs. False by default.\n" +
	"`%[1]smentions` - Toggles the inclusion of messages with mentions (@everyone, role and member mentions). False by default.\n" +
	"`%[1]sattachments` - Toggles the inclusion of messages with attachments. False by default.\n" +
	"`%[1]sranmsg` - Sends a random message from the configured source channel to the destination channel.\n" +
	"`%[1]spoll <seconds>` - Starts a who-sent-it poll with a countdown of the given length.\n\n" +
	"Use %[1]sselectandsend first so the random message feature has somewhere to read from and write to."

func (b *Bot) dispatchCommand(msg *discordgo.MessageCreate) {
	prefix := b.cfg.CommandPrefix
	if !strings.HasPrefix(msg.Content, prefix) {
		return
	}
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return
	}

	switch strings.TrimPrefix(fields[0], prefix) {
	case "help":
		b.reply(msg.ChannelID, fmt.Sprintf(helpTemplate, prefix))
	case "selectandsend":
		b.handleSelectAndSend(msg)
	case "urls":
		b.handleToggle(msg, "urls")
	case "mentions":
		b.handleToggle(msg, "mentions")
	case "attachments":
		b.handleToggle(msg, "attachments")
	case "ranmsg":
		b.handleRandomMessage(msg)
	case "poll":
		b.handlePoll(msg, fields[1:])
	}
}

// handleSelectAndSend resolves the mentioned channels and seeds the sampling
// window: start from the source channel's very first message, end from the
// moment of configuration.
func (b *Bot) handleSelectAndSend(msg *discordgo.MessageCreate) {
	if b.history == nil {
		return
	}
	channelIDs := channelMentionPattern.FindAllStringSubmatch(msg.Content, -1)
	if len(channelIDs) == 0 {
		b.reply(msg.ChannelID, "Please mention the source channel, e.g. `"+b.cfg.CommandPrefix+"selectandsend #general #random`.")
		return
	}
	sourceID := channelIDs[0][1]
	destID := sourceID
	if len(channelIDs) > 1 {
		destID = channelIDs[1][1]
	}

	ctx := context.Background()
	oldest, err := b.history.FetchOldestFirst(ctx, sourceID, 1)
	if err != nil || len(oldest) == 0 {
		b.logger.Error("first message lookup failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("channel_id", sourceID),
			zap.Error(err))
		b.reply(msg.ChannelID, fmt.Sprintf("There was an error in setting <#%s> as the source channel.", sourceID))
		return
	}

	cfg, _ := b.store.Get(msg.GuildID)
	cfg.GuildID = msg.GuildID
	cfg.SourceChannelID = sourceID
	cfg.DestChannelID = destID
	windowStart := oldest[0].CreatedAt
	windowEnd := msg.Timestamp
	cfg.WindowStart = &windowStart
	cfg.WindowEnd = &windowEnd

	if err := b.store.Put(cfg); err != nil {
		b.logger.Error("config save failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		b.reply(msg.ChannelID, "Saving the configuration failed.")
		return
	}
	b.logger.Info("relay channels configured",
		zap.String("guild_id", msg.GuildID),
		zap.String("source", sourceID),
		zap.String("dest", destID),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd))
	b.reply(msg.ChannelID, fmt.Sprintf("Random messages will be selected from <#%s> and sent to <#%s>.", sourceID, destID))
}

func (b *Bot) handleToggle(msg *discordgo.MessageCreate, which string) {
	cfg, _ := b.store.Get(msg.GuildID)
	cfg.GuildID = msg.GuildID

	var label string
	var value bool
	switch which {
	case "urls":
		cfg.AllowURLs = !cfg.AllowURLs
		label, value = "URLs", cfg.AllowURLs
	case "mentions":
		cfg.AllowMentions = !cfg.AllowMentions
		label, value = "Mentions", cfg.AllowMentions
	case "attachments":
		cfg.AllowAttachments = !cfg.AllowAttachments
		label, value = "Attachments", cfg.AllowAttachments
	}

	if err := b.store.Put(cfg); err != nil {
		b.logger.Error("config save failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		b.reply(msg.ChannelID, "Saving the configuration failed.")
		return
	}
	b.logger.Info("eligibility flag toggled",
		zap.String("guild_id", msg.GuildID),
		zap.String("flag", which),
		zap.Bool("value", value))
	b.reply(msg.ChannelID, fmt.Sprintf("%s set to %t", label, value))
}

func (b *Bot) handleRandomMessage(msg *discordgo.MessageCreate) {
	if b.delivery == nil {
		return
	}
	guildID, channelID := msg.GuildID, msg.ChannelID
	go func() {
		if b.delivery.Deliver(context.Background(), guildID) == delivery.NotConfigured {
			b.reply(channelID, "Set the source and destination channels with "+b.cfg.CommandPrefix+"selectandsend first.")
		}
	}()
}

func (b *Bot) handlePoll(msg *discordgo.MessageCreate, args []string) {
	if b.poll == nil {
		return
	}
	duration, err := poll.ParseDuration(args)
	if err != nil {
		b.reply(msg.ChannelID, "Please provide a valid countdown duration in seconds.")
		return
	}
	guildID, channelID := msg.GuildID, msg.ChannelID
	go b.poll.Run(context.Background(), guildID, channelID, duration)
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
