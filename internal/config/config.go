package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Discord struct {
		Token   string `yaml:"token"`
		AppID   string `yaml:"app_id"`
		GuildID string `yaml:"guild_id"`
	} `yaml:"discord"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Storage struct {
		ConfigPath    string `yaml:"config_path"`
		QuestionsPath string `yaml:"questions_path"`
		BankID        string `yaml:"bank_id"`
		BankTTL       string `yaml:"bank_ttl"`
	} `yaml:"storage"`
	Quiz Quiz `yaml:"quiz"`
	Log  struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Quiz holds the quiz policy. Role IDs can be overridden per guild.
type Quiz struct {
	AnswerTimeout string                `yaml:"answer_timeout"`
	Cooldown      string                `yaml:"cooldown"`
	IntroDelay    string                `yaml:"intro_delay"`
	PassThreshold int                   `yaml:"pass_threshold"`
	RequiredRoles []string              `yaml:"required_roles"`
	PassRole      string                `yaml:"pass_role"`
	BlockRetakes  bool                  `yaml:"block_retakes"`
	Guilds        map[string]GuildRoles `yaml:"guilds"`
}

// GuildRoles overrides the global role policy for one guild.
type GuildRoles struct {
	RequiredRoles []string `yaml:"required_roles"`
	PassRole      string   `yaml:"pass_role"`
}

// RolesFor returns the required roles and the pass role for a guild.
func (q Quiz) RolesFor(guildID string) ([]string, string) {
	required, pass := q.RequiredRoles, q.PassRole
	if g, ok := q.Guilds[guildID]; ok {
		if g.RequiredRoles != nil {
			required = g.RequiredRoles
		}
		if g.PassRole != "" {
			pass = g.PassRole
		}
	}
	return required, pass
}

// UnrewardedScopes lists where passing members would get no role: "default"
// when the global pass role is empty, followed by overridden guilds that still
// resolve to no role. Guilds are sorted.
func (q Quiz) UnrewardedScopes() []string {
	var scopes []string
	if q.PassRole == "" {
		scopes = append(scopes, "default")
	}
	var guilds []string
	for id := range q.Guilds {
		if _, pass := q.RolesFor(id); pass == "" {
			guilds = append(guilds, id)
		}
	}
	sort.Strings(guilds)
	return append(scopes, guilds...)
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Storage.ConfigPath = "data/config.json"
	cfg.Storage.QuestionsPath = "data/questions.json"
	cfg.Storage.BankID = "default"
	cfg.Storage.BankTTL = "10m"
	cfg.Quiz.AnswerTimeout = "60s"
	cfg.Quiz.Cooldown = "600s"
	cfg.Quiz.IntroDelay = "2s"
	cfg.Quiz.PassThreshold = 3
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path on top of the defaults. A missing file is
// not an error. DISCORD_TOKEN (or the legacy TOKEN) overrides the file token.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if token := firstEnv("DISCORD_TOKEN", "TOKEN"); token != "" {
		cfg.Discord.Token = token
	}
	return cfg, nil
}

// Validate checks the settings needed to run the bot.
func (c Config) Validate() error {
	if c.Discord.Token == "" {
		return errors.New("discord token not configured (set DISCORD_TOKEN)")
	}
	if c.Quiz.PassThreshold <= 0 {
		return fmt.Errorf("quiz.pass_threshold must be positive, got %d", c.Quiz.PassThreshold)
	}
	for name, raw := range map[string]string{
		"quiz.answer_timeout": c.Quiz.AnswerTimeout,
		"quiz.cooldown":       c.Quiz.Cooldown,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", name, raw)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
