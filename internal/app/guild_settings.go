package app

import (
	"context"
	"fmt"
	"log/slog"

	"discord-quiz-bot/internal/domain"
)

// GuildSettings is the per-guild configuration store used by the quiz and the editor.
// Every mutation is a full read-modify-write through the repository.
type GuildSettings struct {
	repo   GuildRepository
	logger *slog.Logger
}

func NewGuildSettings(repo GuildRepository, logger *slog.Logger) *GuildSettings {
	return &GuildSettings{repo: repo, logger: logger}
}

// Get returns the guild record, creating and persisting defaults when absent.
func (s *GuildSettings) Get(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	cfg, found, err := s.repo.Load(ctx, guildID)
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	if found {
		return cfg, nil
	}
	cfg, err = s.repo.Update(ctx, guildID, func(*domain.GuildConfig) error { return nil })
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("create guild %s: %w", guildID, err)
	}
	s.logger.Info("created default guild config", "guild", guildID)
	return cfg, nil
}

// Put replaces the whole guild record.
func (s *GuildSettings) Put(ctx context.Context, guildID string, cfg domain.GuildConfig) error {
	return s.update(ctx, guildID, func(c *domain.GuildConfig) error {
		*c = cfg
		return nil
	})
}

func (s *GuildSettings) Embed(ctx context.Context, guildID string, kind domain.EmbedKind) (domain.Embed, error) {
	cfg, err := s.Get(ctx, guildID)
	if err != nil {
		return domain.Embed{}, err
	}
	return cfg.Embed(kind), nil
}

func (s *GuildSettings) SetEmbed(ctx context.Context, guildID string, kind domain.EmbedKind, e domain.Embed) error {
	return s.update(ctx, guildID, func(c *domain.GuildConfig) error {
		c.SetEmbed(kind, e)
		return nil
	})
}

func (s *GuildSettings) AnnounceLocation(ctx context.Context, guildID string) (domain.MessageLocation, error) {
	cfg, err := s.Get(ctx, guildID)
	if err != nil {
		return domain.MessageLocation{}, err
	}
	return cfg.AnnounceLocation(), nil
}

func (s *GuildSettings) SetAnnounceLocation(ctx context.Context, guildID string, loc domain.MessageLocation) error {
	return s.update(ctx, guildID, func(c *domain.GuildConfig) error {
		c.SetAnnounceLocation(loc)
		return nil
	})
}

// MarkQuizzed records a member as having passed. Repeated calls are no-ops.
func (s *GuildSettings) MarkQuizzed(ctx context.Context, guildID, memberID string) error {
	return s.update(ctx, guildID, func(c *domain.GuildConfig) error {
		c.MarkQuizzed(memberID)
		return nil
	})
}

func (s *GuildSettings) update(ctx context.Context, guildID string, fn func(*domain.GuildConfig) error) error {
	if _, err := s.repo.Update(ctx, guildID, fn); err != nil {
		return fmt.Errorf("update guild %s: %w", guildID, err)
	}
	return nil
}
