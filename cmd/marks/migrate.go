package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store/postgres"
)

var migrateFlags struct {
	databaseURL string
	logLevel    string
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFlags.databaseURL, "database-url", "", "PostgreSQL DSN (default $MARKS_DATABASE_URL)")
	migrateCmd.Flags().StringVar(&migrateFlags.logLevel, "log-level", "warn", "log level of the SQL logger")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the bookmarks table",
	Long: `Creates the bookmarks table and its indexes, including the unique
(user_id, url) index that guarantees one bookmark per URL and user.
Only PostgreSQL needs this; serve also migrates when MARKS_AUTO_MIGRATE=true.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateFlags.databaseURL
		if dsn == "" {
			dsn = os.Getenv("MARKS_DATABASE_URL")
		}
		if dsn == "" {
			return errors.New("no database: set --database-url or MARKS_DATABASE_URL")
		}

		loggerClient := logger.New(logger.Options{Level: migrateFlags.logLevel, Pretty: true})
		defer func() { _ = loggerClient.Sync() }()

		store, err := postgres.Open(dsn, postgres.DefaultOptions(), loggerClient)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}

		_, _ = green.Fprintln(cmd.OutOrStdout(), "✔ bookmarks table is up to date")
		return nil
	},
}
