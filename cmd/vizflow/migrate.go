package main

import (
	"github.com/rpattn/vizflow/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return db.RunMigrations(cfg.Database)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return db.RollbackMigrations(cfg.Database, steps)
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}
