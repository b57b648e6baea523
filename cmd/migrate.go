package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations to set up or update the database schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDatabase(loadConfig())
		defer db.Close() //nolint: errcheck

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to reach database: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Database migrations completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
