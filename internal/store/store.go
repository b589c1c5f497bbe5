// Package store persists per-guild settings as a single JSON document,
// rewritten in full on every mutation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const schemaVersion = 1

var (
	ErrInvalidWindow = errors.New("window start is after window end")
	ErrUnknownSchema = errors.New("unknown store schema version")
)

// GuildConfig holds one guild's relay settings. WindowStart and WindowEnd are
// either both nil or both set, seeded when the source channel is configured:
// start from the channel's first message, end from the moment of configuration.
type GuildConfig struct {
	GuildID          string     `json:"guild_id"`
	GuildName        string     `json:"guild_name,omitempty"`
	SourceChannelID  string     `json:"channel_to_select_from,omitempty"`
	DestChannelID    string     `json:"channel_to_send_to,omitempty"`
	WindowStart      *time.Time `json:"start_date,omitempty"`
	WindowEnd        *time.Time `json:"end_date,omitempty"`
	AllowURLs        bool       `json:"enable_urls"`
	AllowAttachments bool       `json:"enable_attachments"`
	AllowMentions    bool       `json:"enable_mentions"`
}

// Configured reports whether both relay channels are set.
func (c GuildConfig) Configured() bool {
	return c.SourceChannelID != "" && c.DestChannelID != ""
}

type document struct {
	Version int                    `json:"version"`
	Guilds  map[string]GuildConfig `json:"guilds"`
}

type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	doc document
}

// Open loads the document at path, or starts empty when the file does not
// exist yet. Documents with a schema version this build does not know are
// rejected rather than silently reinterpreted.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		doc:    document{Version: schemaVersion, Guilds: make(map[string]GuildConfig)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("store file not found, starting empty", zap.String("path", path))
			return s, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", path, err)
	}
	if doc.Version != schemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnknownSchema, doc.Version, schemaVersion)
	}
	if doc.Guilds == nil {
		doc.Guilds = make(map[string]GuildConfig)
	}
	for id, cfg := range doc.Guilds {
		if cfg.WindowStart != nil && cfg.WindowEnd != nil && cfg.WindowStart.After(*cfg.WindowEnd) {
			return nil, fmt.Errorf("guild %s: %w", id, ErrInvalidWindow)
		}
	}
	s.doc = doc
	return s, nil
}

// Get returns a snapshot of the guild's config. Mutating the returned value
// does not affect the store until it is written back with Put.
func (s *Store) Get(guildID string) (GuildConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.doc.Guilds[guildID]
	return cfg, ok
}

// Put replaces the guild's config and rewrites the whole document.
func (s *Store) Put(cfg GuildConfig) error {
	if cfg.GuildID == "" {
		return errors.New("guild id is required")
	}
	if cfg.WindowStart != nil && cfg.WindowEnd != nil && cfg.WindowStart.After(*cfg.WindowEnd) {
		return ErrInvalidWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Guilds[cfg.GuildID] = cfg
	return s.persistLocked()
}

// EnsureGuild creates a default record for a guild the bot just joined.
// Existing records are left untouched.
func (s *Store) EnsureGuild(guildID, guildName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Guilds[guildID]; ok {
		return nil
	}
	s.doc.Guilds[guildID] = GuildConfig{GuildID: guildID, GuildName: guildName}
	s.logger.Info("guild added to store", zap.String("guild_id", guildID), zap.String("guild_name", guildName))
	return s.persistLocked()
}

// GuildIDs returns the ids of all known guilds in stable order.
func (s *Store) GuildIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.doc.Guilds))
	for id := range s.doc.Guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
