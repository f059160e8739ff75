package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"discord-quiz-bot/internal/app"
	"discord-quiz-bot/internal/config"
	"discord-quiz-bot/internal/infra/jsonfile"
	"discord-quiz-bot/internal/infra/memory"
	"discord-quiz-bot/internal/infra/postgres"
	infraredis "discord-quiz-bot/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// stores is the storage selected by config: Postgres or the JSON files for
// guild settings and the bank, Redis or process memory for the cooldown table
// and the bank cache.
type stores struct {
	guilds  app.GuildRepository
	bank    app.BankRepository
	limiter app.Limiter
	loader  memory.BankLoader

	pool  *pgxpool.Pool
	redis *redis.Client
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	cooldown := config.TTLDuration(cfg.Quiz.Cooldown, 600*time.Second)
	bankTTL := config.TTLDuration(cfg.Storage.BankTTL, 10*time.Minute)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		s.guilds = postgres.NewGuildStore(pool)
		s.loader = postgres.NewBankLoader(pool, cfg.Storage.BankID)
		logger.Info("using postgres storage", "bank_id", cfg.Storage.BankID)
	} else {
		s.guilds = jsonfile.NewGuildStore(cfg.Storage.ConfigPath)
		s.loader = jsonfile.NewBankLoader(cfg.Storage.QuestionsPath)
		logger.Info("using json file storage", "config", cfg.Storage.ConfigPath, "questions", cfg.Storage.QuestionsPath)
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.limiter = infraredis.NewCooldown(s.redis, cooldown)
		s.bank = infraredis.NewBankCache(s.redis, s.loader, cfg.Storage.BankID, config.TTLDuration(cfg.Redis.TTL, bankTTL))
		logger.Info("using redis cooldowns and bank cache", "addr", cfg.Redis.Addr)
	} else {
		s.limiter = memory.NewCooldown(cooldown)
		s.bank = memory.NewBankCache(s.loader, bankTTL)
	}
	return s, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
