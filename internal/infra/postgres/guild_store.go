package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"discord-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// GuildStore keeps one JSONB row per guild in guild_configs. Updates lock the
// row so concurrent read-modify-write cycles from several replicas serialize.
type GuildStore struct {
	pool *pgxpool.Pool
}

func NewGuildStore(pool *pgxpool.Pool) *GuildStore {
	return &GuildStore{pool: pool}
}

func (s *GuildStore) Load(ctx context.Context, guildID string) (domain.GuildConfig, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM guild_configs WHERE guild_id=$1`, guildID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultGuildConfig(), false, nil
	}
	if err != nil {
		return domain.GuildConfig{}, false, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	cfg, err := domain.DecodeGuildConfig(raw)
	if err != nil {
		return domain.GuildConfig{}, false, fmt.Errorf("guild %s: %w", guildID, err)
	}
	return cfg, true, nil
}

func (s *GuildStore) Update(ctx context.Context, guildID string, fn func(*domain.GuildConfig) error) (domain.GuildConfig, error) {
	var out domain.GuildConfig
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		// Claim the row first so the FOR UPDATE below always has something to lock.
		_, err := tx.Exec(ctx, `
			INSERT INTO guild_configs (guild_id, data) VALUES ($1, $2)
			ON CONFLICT (guild_id) DO NOTHING`, guildID, mustDefault())
		if err != nil {
			return fmt.Errorf("claim guild %s: %w", guildID, err)
		}

		var raw []byte
		if err := tx.QueryRow(ctx, `SELECT data FROM guild_configs WHERE guild_id=$1 FOR UPDATE`, guildID).Scan(&raw); err != nil {
			return fmt.Errorf("lock guild %s: %w", guildID, err)
		}
		cfg, err := domain.DecodeGuildConfig(raw)
		if err != nil {
			return fmt.Errorf("guild %s: %w", guildID, err)
		}
		if err := fn(&cfg); err != nil {
			return err
		}

		updated, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode guild %s: %w", guildID, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE guild_configs SET data=$2, updated_at=now() WHERE guild_id=$1`, guildID, updated); err != nil {
			return fmt.Errorf("save guild %s: %w", guildID, err)
		}
		out = cfg
		return nil
	})
	if err != nil {
		return domain.GuildConfig{}, err
	}
	return out, nil
}

func mustDefault() []byte {
	raw, err := json.Marshal(domain.DefaultGuildConfig())
	if err != nil {
		panic(err)
	}
	return raw
}
