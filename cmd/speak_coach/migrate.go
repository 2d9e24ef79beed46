package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/speaking-coach/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		if processEnv.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		return db.Migrate(processEnv.DatabaseURL)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
