package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/infra/postgres"
)

// newSeedCmd loads a YAML question bank into Postgres.
func newSeedCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert question sets from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Questions.File
			}
			bank, err := memory.ReadQuestionFile(file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewSeeder(db).Upsert(cmd.Context(), bank.Sets)
			if err != nil {
				return err
			}
			log.Info().Int("sets", n).Str("file", file).Msg("question sets seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank YAML (default: questions.file from config)")
	return cmd
}
