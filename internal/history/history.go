// Package history wraps channel history access and outbound sends behind a
// narrow client interface so the sampling engines can be tested without a
// live gateway session.
package history

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChannelUnreachable marks a channel that cannot be fetched at all:
	// deleted, or the bot lost read permission.
	ErrChannelUnreachable = errors.New("channel unreachable")
	// ErrHistoryFetchFailed marks a transient network or API fault.
	ErrHistoryFetchFailed = errors.New("history fetch failed")
)

// Message is the transient view of a channel message the engines work with.
// It lives only for the duration of one sampling call.
type Message struct {
	ID               string
	ChannelID        string
	AuthorID         string
	AuthorName       string
	AuthorBot        bool
	Content          string
	AttachmentURL    string
	HasEmbed         bool
	MentionsUser     bool
	MentionsRole     bool
	MentionsEveryone bool
	CreatedAt        time.Time
}

type Client interface {
	// FetchAround returns up to limit messages positioned around the given
	// instant; the platform returns neighbours on both sides, order
	// unspecified.
	FetchAround(ctx context.Context, channelID string, around time.Time, limit int) ([]Message, error)
	// FetchOldestFirst pages from the very beginning of the channel. Used
	// once per guild to seed the sampling window start.
	FetchOldestFirst(ctx context.Context, channelID string, limit int) ([]Message, error)
	SendText(ctx context.Context, channelID, content string) (string, error)
	SendAttachmentURL(ctx context.Context, channelID, url string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}
