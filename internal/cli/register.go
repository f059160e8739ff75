package cli

import (
	"errors"
	"fmt"

	"discord-quiz-bot/internal/transport/discord"
	"github.com/spf13/cobra"
)

// NewRegisterCmd publishes the slash commands without starting the bot.
func NewRegisterCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the bot's slash commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Discord.Token == "" {
				return errors.New("discord token not configured (set DISCORD_TOKEN)")
			}
			session, err := discord.NewSession(cfg.Discord.Token, logger)
			if err != nil {
				return err
			}

			appID := cfg.Discord.AppID
			if appID == "" {
				me, err := session.User("@me")
				if err != nil {
					return fmt.Errorf("resolve application id: %w", err)
				}
				appID = me.ID
			}
			created, err := discord.RegisterCommands(session, appID, cfg.Discord.GuildID)
			if err != nil {
				return err
			}
			scope := "global"
			if cfg.Discord.GuildID != "" {
				scope = "guild " + cfg.Discord.GuildID
			}
			logger.Info("slash commands registered", "count", len(created), "scope", scope)
			return nil
		},
	}
}
