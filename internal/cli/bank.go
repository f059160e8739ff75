package cli

import (
	"fmt"

	"discord-quiz-bot/internal/infra/jsonfile"
	"discord-quiz-bot/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewCheckBankCmd validates the configured question bank.
func NewCheckBankCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-bank",
		Short: "Load and validate the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			items, err := st.loader.LoadBank(cmd.Context())
			if err != nil {
				return err
			}
			threshold := cfg.Quiz.PassThreshold
			if len(items) < threshold {
				logger.Warn("bank is smaller than the pass threshold; nobody can pass", "items", len(items), "pass_threshold", threshold)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "question bank ok: %d items\n", len(items))
			return nil
		},
	}
}

// NewSeedBankCmd copies a JSON question bank into Postgres.
func NewSeedBankCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-bank",
		Short: "Upsert a JSON question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if file == "" {
				file = cfg.Storage.QuestionsPath
			}

			items, err := jsonfile.NewBankLoader(file).LoadBank(cmd.Context())
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := postgres.NewBankLoader(pool, cfg.Storage.BankID).SaveBank(cmd.Context(), items); err != nil {
				return err
			}
			logger.Info("question bank seeded", "bank_id", cfg.Storage.BankID, "items", len(items), "source", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank JSON (default storage.questions_path)")
	return cmd
}
