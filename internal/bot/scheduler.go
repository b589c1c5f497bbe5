package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startScheduler runs the periodic relay: every interval, one delivery per
// configured guild. Each delivery runs in its own goroutine so a slow or
// retrying guild never holds up the others.
func (b *Bot) startScheduler() {
	if !b.cfg.Scheduler.Enabled {
		return
	}
	interval := time.Duration(b.cfg.Scheduler.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopScheduler:
				return
			case <-ticker.C:
				b.deliverAll()
			}
		}
	}()
	b.logger.Info("delivery scheduler started", zap.Duration("interval", interval))
}

func (b *Bot) deliverAll() {
	if b.delivery == nil {
		return
	}
	for _, guildID := range b.store.GuildIDs() {
		cfg, ok := b.store.Get(guildID)
		if !ok || !cfg.Configured() {
			continue
		}
		go b.delivery.Deliver(context.Background(), guildID)
	}
}
