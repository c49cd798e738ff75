package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatforge/chatforge/internal/db"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = strings.ToLower(strings.TrimSpace(args[0]))
		}
		cfg, err := provideConfig()
		if err != nil {
			return err
		}
		log := provideLogger(cfg).With(slog.String("command", "migrate"))

		switch direction {
		case "up":
			return db.Migrate(log, cfg.Postgres)
		case "down":
			if migrateSteps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			return db.Rollback(log, cfg.Postgres, migrateSteps)
		default:
			return fmt.Errorf("unknown direction %q (want up or down)", direction)
		}
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back with down")
}
