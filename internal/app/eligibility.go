package app

import (
	"context"
	"fmt"
	"log/slog"

	"discord-quiz-bot/internal/domain"
)

// Gate decides whether a member may start a quiz.
//
// Role membership is checked first and a missing role never consumes the
// cooldown. Once roles pass, the cooldown is recorded at the moment of the
// check, so an abandoned quiz still spends the window.
type Gate struct {
	limiter      Limiter
	roles        RolePolicy
	settings     *GuildSettings
	blockRetakes bool
	logger       *slog.Logger
}

func NewGate(limiter Limiter, roles RolePolicy, settings *GuildSettings, blockRetakes bool, logger *slog.Logger) *Gate {
	return &Gate{
		limiter:      limiter,
		roles:        roles,
		settings:     settings,
		blockRetakes: blockRetakes,
		logger:       logger,
	}
}

// Check returns nil when the member may start, a *domain.IneligibleError when
// denied, or another error if the cooldown table or config store failed.
func (g *Gate) Check(ctx context.Context, m domain.Member) error {
	required, _ := g.roles.RolesFor(m.GuildID)
	var missing []string
	for _, role := range required {
		if !m.HasRole(role) {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return &domain.IneligibleError{Reason: domain.ReasonMissingRoles, Required: required, Missing: missing}
	}

	if g.blockRetakes && g.settings != nil {
		cfg, err := g.settings.Get(ctx, m.GuildID)
		if err != nil {
			return err
		}
		if cfg.HasQuizzed(m.UserID) {
			return &domain.IneligibleError{Reason: domain.ReasonAlreadyPassed}
		}
	}

	retryAt, ok, err := g.limiter.Hit(ctx, CooldownKey(m.GuildID, m.UserID))
	if err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}
	if !ok {
		return &domain.IneligibleError{Reason: domain.ReasonOnCooldown, RetryAt: retryAt}
	}
	return nil
}

// CooldownKey scopes the cooldown to a user within one guild.
func CooldownKey(guildID, userID string) string {
	return "quiz:cooldown:" + guildID + ":" + userID
}
