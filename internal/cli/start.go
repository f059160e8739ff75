package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-quiz-bot/internal/app"
	"discord-quiz-bot/internal/config"
	"discord-quiz-bot/internal/transport/discord"
	transport "discord-quiz-bot/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the bot.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Connect to Discord and serve quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *configPath, *port)
		},
	}
}

func runBot(parent context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.bank.GetBank(ctx); err != nil {
		return fmt.Errorf("question bank: %w", err)
	}
	warnUnrewarded(cfg.Quiz, logger)

	session, err := discord.NewSession(cfg.Discord.Token, logger)
	if err != nil {
		return err
	}

	settings := app.NewGuildSettings(st.guilds, logger)
	clicks := app.NewDispatcher()
	feed := app.NewFeed()
	quiz := app.NewQuizService(app.QuizDeps{
		Bank:     st.bank,
		Settings: settings,
		Gate:     app.NewGate(st.limiter, cfg.Quiz, settings, cfg.Quiz.BlockRetakes, logger),
		Clicks:   clicks,
		Roles:    cfg.Quiz,
		Granter:  discord.NewRoleGranter(session),
		Feed:     feed,
		Logger:   logger,
	}, app.QuizPolicy{
		AnswerTimeout: config.TTLDuration(cfg.Quiz.AnswerTimeout, 60*time.Second),
		IntroDelay:    config.TTLDuration(cfg.Quiz.IntroDelay, 2*time.Second),
		Cooldown:      config.TTLDuration(cfg.Quiz.Cooldown, 600*time.Second),
		PassThreshold: cfg.Quiz.PassThreshold,
	})
	editor := app.NewEmbedEditor(settings, discord.NewAnnouncer(session), logger)
	bot := discord.NewBot(session, session.State, discord.Deps{
		Quiz:   quiz,
		Editor: editor,
		Clicks: clicks,
		Logger: logger,
	})

	if appID := cfg.Discord.AppID; appID != "" {
		if _, err := discord.RegisterCommands(session, appID, cfg.Discord.GuildID); err != nil {
			return err
		}
		logger.Info("slash commands registered", "guild", cfg.Discord.GuildID)
	} else {
		logger.Warn("discord.app_id not set, skipping command registration; run the register command once")
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return bot.Run(gctx, session)
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort != "" {
		feedHandler := transport.NewFeedHandler(feed, clicks, logger)
		server := &http.Server{
			Addr:        ":" + finalPort,
			Handler:     feedHandler.Routes(),
			ReadTimeout: 15 * time.Second,
		}
		group.Go(func() error {
			logger.Info("starting activity feed", "port", finalPort)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("activity feed: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info("quiz bot running", "pass_threshold", quiz.Policy().PassThreshold, "cooldown", quiz.Policy().Cooldown)
	err = group.Wait()
	logger.Info("quiz bot stopped")
	return err
}

// warnUnrewarded reports role scopes in which a pass grants nothing.
func warnUnrewarded(q config.Quiz, logger *slog.Logger) bool {
	scopes := q.UnrewardedScopes()
	if len(scopes) == 0 {
		return false
	}
	logger.Warn("quiz.pass_role not set; members who pass get no role", "scopes", scopes)
	return true
}
