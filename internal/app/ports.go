package app

import (
	"context"
	"time"

	"discord-quiz-bot/internal/domain"
)

// BankRepository loads the question bank (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context) ([]domain.QuizItem, error)
}

// GuildRepository abstracts where guild configuration lives (JSON file, Postgres, memory).
type GuildRepository interface {
	// Load returns the stored record and whether one existed.
	Load(ctx context.Context, guildID string) (domain.GuildConfig, bool, error)
	// Update runs fn on the current record (defaults when absent) and persists the result.
	Update(ctx context.Context, guildID string, fn func(*domain.GuildConfig) error) (domain.GuildConfig, error)
}

// Limiter is a fixed-window rate limiter allowing one hit per key per window.
type Limiter interface {
	// Hit records an attempt. When the key is still inside its window the
	// attempt is refused and retryAt reports when the window ends.
	Hit(ctx context.Context, key string) (retryAt time.Time, ok bool, err error)
}

// RolePolicy resolves the role requirements of a guild.
type RolePolicy interface {
	RolesFor(guildID string) (required []string, passRole string)
}

// Anchor is the single message a session edits turn by turn. Implementations
// return domain.ErrMessageUnreachable once the message can no longer be edited.
type Anchor interface {
	Edit(ctx context.Context, msg domain.Message) error
}

// RoleGranter adds a role to a guild member.
type RoleGranter interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
}

// Announcer posts and edits the standing "Start Quiz" message.
type Announcer interface {
	EditMessage(ctx context.Context, loc domain.MessageLocation, msg domain.Message) error
	PostMessage(ctx context.Context, channelID string, msg domain.Message) (domain.MessageLocation, error)
}
