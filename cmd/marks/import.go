package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/importer"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store/postgres"
)

var importFlags struct {
	subject     string
	databaseURL string
	dryRun      bool
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFlags.subject, "sub", "", "principal id that will own the bookmarks (required)")
	f.StringVar(&importFlags.databaseURL, "database-url", "", "PostgreSQL DSN (default $MARKS_DATABASE_URL)")
	f.BoolVar(&importFlags.dryRun, "dry-run", false, "only list what would be imported")
	_ = importCmd.MarkFlagRequired("sub")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import bookmarks from a Homepage bookmarks.yaml",
	Long: `Adds every bookmark of a Homepage (gethomepage.dev) bookmarks.yaml to the
collection of --sub. URLs already in the collection are skipped.`,
	Example: `  marks import --sub 1098765 ~/homepage/config/bookmarks.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := importer.LoadFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if importFlags.dryRun {
			for _, it := range items {
				_, _ = fmt.Fprintf(out, "%-20s %-30s %s\n", it.Category, it.Title, cyan.Sprint(it.URL))
			}
			_, _ = green.Fprintf(out, "%d bookmarks found\n", len(items))
			return nil
		}

		dsn := importFlags.databaseURL
		if dsn == "" {
			dsn = os.Getenv("MARKS_DATABASE_URL")
		}
		if dsn == "" {
			return errors.New("no database: set --database-url or MARKS_DATABASE_URL")
		}

		loggerClient := logger.New(logger.Options{Level: "warn", Pretty: true})
		defer func() { _ = loggerClient.Sync() }()

		store, err := postgres.Open(dsn, postgres.DefaultOptions(), loggerClient)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		im := importer.New(bookmarks.NewService(store, loggerClient), loggerClient)
		report, err := im.Run(cmd.Context(), &domain.Principal{ID: importFlags.subject}, items)
		_, _ = green.Fprintf(out, "✔ %d added, %d already present, %d invalid\n",
			report.Added, report.Duplicates, report.Invalid)
		return err
	},
}
