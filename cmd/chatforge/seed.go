package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatforge/chatforge/internal/catalog"
	"github.com/chatforge/chatforge/internal/db"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the catalog of render types, personas, output formats and models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := provideConfig()
		if err != nil {
			return err
		}
		log := provideLogger(cfg).With(slog.String("command", "seed"))

		c, err := catalog.Default()
		if seedFile != "" {
			c, err = catalog.Load(seedFile)
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		conn, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer conn.Close()

		formats := outputformats.NewService(log, conn)
		summary, err := catalog.Apply(ctx, log, catalog.Stores{
			RenderTypes:   formats,
			OutputFormats: formats,
			Personas:      personas.NewService(log, conn),
			Models:        models.NewService(log, conn),
		}, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d render types, %d personas, %d output formats, %d models\n",
			summary.RenderTypes, summary.Personas, summary.OutputFormats, summary.Models)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "catalog YAML file (default: built-in catalog)")
}
