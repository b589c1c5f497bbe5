package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Discord epoch, the reference point of snowflake ids.
const discordEpochMillis = 1420070400000

// DiscordClient implements Client on top of a discordgo session.
type DiscordClient struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscordClient(session *discordgo.Session, logger *zap.Logger) *DiscordClient {
	return &DiscordClient{session: session, logger: logger}
}

func (c *DiscordClient) FetchAround(ctx context.Context, channelID string, around time.Time, limit int) ([]Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", snowflakeAt(around), discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, fromDiscord(channelID, m))
	}
	c.logger.Debug("fetched history around instant",
		zap.String("channel_id", channelID),
		zap.Time("around", around),
		zap.Int("count", len(out)))
	return out, nil
}

func (c *DiscordClient) FetchOldestFirst(ctx context.Context, channelID string, limit int) ([]Message, error) {
	// The channel's own snowflake predates every message in it, so paging
	// "after" it starts from the first message ever sent.
	msgs, err := c.session.ChannelMessages(channelID, limit, "", channelID, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, fromDiscord(channelID, m))
	}
	sortByCreatedAt(out)
	return out, nil
}

func (c *DiscordClient) SendText(ctx context.Context, channelID, content string) (string, error) {
	msg, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}
	return msg.ID, nil
}

func (c *DiscordClient) SendAttachmentURL(ctx context.Context, channelID, url string) (string, error) {
	return c.SendText(ctx, channelID, url)
}

func (c *DiscordClient) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	if _, err := c.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (c *DiscordClient) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func fromDiscord(channelID string, m *discordgo.Message) Message {
	out := Message{
		ID:               m.ID,
		ChannelID:        channelID,
		Content:          m.Content,
		HasEmbed:         len(m.Embeds) > 0,
		MentionsUser:     len(m.Mentions) > 0,
		MentionsRole:     len(m.MentionRoles) > 0,
		MentionsEveryone: m.MentionEveryone,
		CreatedAt:        m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = m.Author.Username
		out.AuthorBot = m.Author.Bot
	}
	if len(m.Attachments) > 0 && m.Attachments[0] != nil {
		out.AttachmentURL = m.Attachments[0].URL
	}
	return out
}

// snowflakeAt builds a synthetic message id whose embedded timestamp is t,
// which is how the history endpoint is positioned at an arbitrary instant.
func snowflakeAt(t time.Time) string {
	millis := t.UnixMilli() - discordEpochMillis
	if millis < 0 {
		millis = 0
	}
	return fmt.Sprintf("%d", millis<<22)
}

func classify(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeMissingAccess,
			discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %v", ErrChannelUnreachable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrHistoryFetchFailed, err)
}

func sortByCreatedAt(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
