package sampler

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
)

// Matches http(s):// links, www.-prefixed hosts, and bare domain-like tokens
// followed by a path.
var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://\S+|www\d{0,3}\.\S+|[a-z0-9.\-]+\.[a-z]{2,4}/\S*)`)

// Filter decides whether a message qualifies for delivery or poll use. It is
// a pure predicate; the same config and message always yield the same answer.
type Filter struct {
	selfID string
}

// NewFilter builds a filter that always rejects messages authored by the
// given bot user.
func NewFilter(selfID string) *Filter {
	return &Filter{selfID: selfID}
}

func (f *Filter) Eligible(cfg store.GuildConfig, msg history.Message) bool {
	if f.selfID != "" && msg.AuthorID == f.selfID {
		return false
	}
	if !cfg.AllowURLs && ContainsURL(msg.Content) {
		return false
	}
	if !cfg.AllowAttachments && (msg.AttachmentURL != "" || msg.HasEmbed) {
		return false
	}
	if !cfg.AllowMentions && (msg.MentionsUser || msg.MentionsRole || msg.MentionsEveryone) {
		return false
	}
	return true
}

// ContainsURL reports whether the content carries at least one token that
// both looks like a URL and parses to a real host.
func ContainsURL(content string) bool {
	for _, match := range urlPattern.FindAllString(content, -1) {
		if _, ok := normalizedHost(match); ok {
			return true
		}
	}
	return false
}

func normalizedHost(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host, true
}
