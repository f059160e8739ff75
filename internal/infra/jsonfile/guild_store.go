package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"discord-quiz-bot/internal/domain"
)

// GuildStore keeps every guild config in one JSON document keyed by guild ID,
// the layout used by the bot's config.json. Writes go to a temp file that is
// renamed over the original.
type GuildStore struct {
	path string
	mu   sync.Mutex
}

func NewGuildStore(path string) *GuildStore {
	return &GuildStore{path: path}
}

func (s *GuildStore) Load(_ context.Context, guildID string) (domain.GuildConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return domain.GuildConfig{}, false, err
	}
	raw, ok := doc[guildID]
	if !ok {
		return domain.DefaultGuildConfig(), false, nil
	}
	cfg, err := domain.DecodeGuildConfig(raw)
	if err != nil {
		return domain.GuildConfig{}, false, fmt.Errorf("guild %s: %w", guildID, err)
	}
	return cfg, true, nil
}

func (s *GuildStore) Update(_ context.Context, guildID string, fn func(*domain.GuildConfig) error) (domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return domain.GuildConfig{}, err
	}
	cfg := domain.DefaultGuildConfig()
	if raw, ok := doc[guildID]; ok {
		if cfg, err = domain.DecodeGuildConfig(raw); err != nil {
			return domain.GuildConfig{}, fmt.Errorf("guild %s: %w", guildID, err)
		}
	}
	if err := fn(&cfg); err != nil {
		return domain.GuildConfig{}, err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("encode guild %s: %w", guildID, err)
	}
	doc[guildID] = raw
	if err := s.write(doc); err != nil {
		return domain.GuildConfig{}, err
	}
	return cfg, nil
}

func (s *GuildStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfigCorrupt, s.path, err)
	}
	return doc, nil
}

func (s *GuildStore) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
