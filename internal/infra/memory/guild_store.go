package memory

import (
	"context"
	"encoding/json"
	"sync"

	"discord-quiz-bot/internal/domain"
)

// GuildStore is an in-memory implementation of app.GuildRepository.
// Records are copied through JSON so callers never share slices with the store.
type GuildStore struct {
	mu     sync.Mutex
	guilds map[string][]byte
}

func NewGuildStore() *GuildStore {
	return &GuildStore{guilds: make(map[string][]byte)}
}

func (s *GuildStore) Load(_ context.Context, guildID string) (domain.GuildConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.guilds[guildID]
	if !ok {
		return domain.DefaultGuildConfig(), false, nil
	}
	cfg, err := domain.DecodeGuildConfig(raw)
	return cfg, true, err
}

func (s *GuildStore) Update(_ context.Context, guildID string, fn func(*domain.GuildConfig) error) (domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := domain.DefaultGuildConfig()
	if raw, ok := s.guilds[guildID]; ok {
		var err error
		if cfg, err = domain.DecodeGuildConfig(raw); err != nil {
			return domain.GuildConfig{}, err
		}
	}
	if err := fn(&cfg); err != nil {
		return domain.GuildConfig{}, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	s.guilds[guildID] = raw
	return cfg, nil
}
