package delivery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/config"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/history"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/sampler"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
)

type fakeHistory struct {
	messages []history.Message
	fetchErr error
	fetches  int
	sent     []string
}

func (f *fakeHistory) FetchAround(ctx context.Context, channelID string, around time.Time, limit int) ([]history.Message, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]history.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeHistory) FetchOldestFirst(ctx context.Context, channelID string, limit int) ([]history.Message, error) {
	return nil, nil
}

func (f *fakeHistory) SendText(ctx context.Context, channelID, content string) (string, error) {
	f.sent = append(f.sent, content)
	return "sent", nil
}

func (f *fakeHistory) SendAttachmentURL(ctx context.Context, channelID, url string) (string, error) {
	f.sent = append(f.sent, url)
	return "sent", nil
}

func (f *fakeHistory) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return nil
}

func (f *fakeHistory) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return nil
}

func testSampling() config.SamplingConfig {
	return config.SamplingConfig{
		FetchLimit:         100,
		MaxAttempts:        3,
		RetryBackoffMillis: 0,
		ToleranceDays:      10,
	}
}

// newTestEngine pins the sampling window to a single instant so the sampled
// "around" value is deterministic.
func newTestEngine(t *testing.T, fake *fakeHistory, at time.Time) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "configs.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	windowStart := at
	if err := st.Put(store.GuildConfig{
		GuildID:         "g1",
		SourceChannelID: "c1",
		DestChannelID:   "c2",
		WindowStart:     &windowStart,
		WindowEnd:       &windowStart,
	}); err != nil {
		t.Fatalf("put config: %v", err)
	}

	ms := sampler.NewMessageSampler(fake, sampler.NewFilter("bot1"), zap.NewNop())
	engine := NewEngine(st, ms, fake, testSampling(), zap.NewNop())
	engine.now = func() time.Time { return at }
	return engine, st
}

func TestDeliverNotConfigured(t *testing.T) {
	fake := &fakeHistory{}
	st, err := store.Open(filepath.Join(t.TempDir(), "configs.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.EnsureGuild("g1", "guild"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	ms := sampler.NewMessageSampler(fake, sampler.NewFilter("bot1"), zap.NewNop())
	engine := NewEngine(st, ms, fake, testSampling(), zap.NewNop())

	if got := engine.Deliver(context.Background(), "g1"); got != NotConfigured {
		t.Fatalf("expected NotConfigured, got %v", got)
	}
	if len(fake.sent) != 0 {
		t.Fatalf("NotConfigured must not send, sent %v", fake.sent)
	}
	if fake.fetches != 0 {
		t.Fatalf("NotConfigured must not fetch, fetched %d times", fake.fetches)
	}
}

func TestDeliverWithinTolerance(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{messages: []history.Message{
		{ID: "1", AuthorID: "user1", AuthorName: "alice", Content: "vintage take",
			CreatedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
	}}
	engine, _ := newTestEngine(t, fake, around)

	if got := engine.Deliver(context.Background(), "g1"); got != Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(fake.sent) != 1 || fake.sent[0] != "vintage take" {
		t.Fatalf("expected the message text to be forwarded once, sent %v", fake.sent)
	}
}

func TestDeliverSendsAtMostOne(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{}
	for i := 0; i < 20; i++ {
		fake.messages = append(fake.messages, history.Message{
			ID: string(rune('a' + i)), AuthorID: "user1", AuthorName: "alice",
			Content: "candidate", CreatedAt: around,
		})
	}
	engine, _ := newTestEngine(t, fake, around)

	if got := engine.Deliver(context.Background(), "g1"); got != Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("at most one send per invocation, sent %d", len(fake.sent))
	}
}

func TestDeliverPrefersAttachmentURL(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{messages: []history.Message{
		{ID: "1", AuthorID: "user1", AuthorName: "alice", Content: "with pic",
			AttachmentURL: "https://cdn.example.com/cat.png", CreatedAt: around},
	}}
	engine, st := newTestEngine(t, fake, around)

	cfg, _ := st.Get("g1")
	cfg.AllowAttachments = true
	if err := st.Put(cfg); err != nil {
		t.Fatalf("put: %v", err)
	}

	if got := engine.Deliver(context.Background(), "g1"); got != Delivered {
		t.Fatalf("expected Delivered, got %v", got)
	}
	if len(fake.sent) != 1 || fake.sent[0] != "https://cdn.example.com/cat.png" {
		t.Fatalf("expected attachment URL to be forwarded, sent %v", fake.sent)
	}
}

func TestDeliverRejectsFarCandidatesUntilExhausted(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{messages: []history.Message{
		{ID: "1", AuthorID: "user1", AuthorName: "alice", Content: "ancient",
			CreatedAt: around.Add(-20 * 24 * time.Hour)},
	}}
	engine, _ := newTestEngine(t, fake, around)

	if got := engine.Deliver(context.Background(), "g1"); got != Exhausted {
		t.Fatalf("expected Exhausted, got %v", got)
	}
	if len(fake.sent) != 0 {
		t.Fatalf("out-of-tolerance candidate must not be sent, sent %v", fake.sent)
	}
	if fake.fetches != 3 {
		t.Fatalf("expected one fetch per attempt, got %d", fake.fetches)
	}
}

func TestDeliverRetriesOnFetchError(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{fetchErr: history.ErrHistoryFetchFailed}
	engine, _ := newTestEngine(t, fake, around)

	if got := engine.Deliver(context.Background(), "g1"); got != Exhausted {
		t.Fatalf("expected Exhausted, got %v", got)
	}
	if fake.fetches != 3 {
		t.Fatalf("expected the full attempt budget, got %d fetches", fake.fetches)
	}
	if len(fake.sent) != 0 {
		t.Fatalf("no sends expected, sent %v", fake.sent)
	}
}

func TestDeliverAbortedOnCancel(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{fetchErr: history.ErrHistoryFetchFailed}
	engine, _ := newTestEngine(t, fake, around)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := engine.Deliver(ctx, "g1"); got != Aborted {
		t.Fatalf("expected Aborted, got %v", got)
	}
	if fake.fetches != 1 {
		t.Fatalf("cancellation must stop the retry loop, got %d fetches", fake.fetches)
	}
}

func TestDeliverAbortedOnInvalidWindow(t *testing.T) {
	around := time.Date(2024, 3, 15, 9, 59, 0, 0, time.UTC)
	fake := &fakeHistory{}
	engine, _ := newTestEngine(t, fake, around)
	engine.now = func() time.Time { return around.Add(-time.Hour) }

	if got := engine.Deliver(context.Background(), "g1"); got != Aborted {
		t.Fatalf("expected Aborted, got %v", got)
	}
	if fake.fetches != 0 {
		t.Fatalf("a rejected window must not fetch, got %d fetches", fake.fetches)
	}
	if len(fake.sent) != 0 {
		t.Fatalf("no sends expected, sent %v", fake.sent)
	}
}
