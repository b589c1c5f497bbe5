package bot

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Beast-East/RandomMessageDiscordBot/internal/config"
	"github.com/Beast-East/RandomMessageDiscordBot/internal/store"
)

// Message handlers dispatch on their own goroutines as soon as the session is
// open, so everything they touch has to exist before Open is called. wire is
// that step; this pins down that it leaves no engine behind.
func TestWireBuildsAllEngines(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "configs.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.DiscordToken = "token"

	b, err := New(cfg, zap.NewNop(), st)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	b.wire("self1")

	if b.history == nil {
		t.Fatalf("history client not wired")
	}
	if b.delivery == nil {
		t.Fatalf("delivery engine not wired")
	}
	if b.poll == nil {
		t.Fatalf("poll engine not wired")
	}
}
