package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/app"
	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Connects to Redis and the bookmark store, then serves the API until
SIGINT or SIGTERM. All settings come from MARKS_* environment variables,
a .env file or the YAML file named by MARKS_CONFIG_FILE.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		loggerClient := logger.New(logger.Options{
			Level:  cfg.LogLevel,
			Pretty: cfg.PrettyLog,
			File:   cfg.LogFile,
		})
		defer func() { _ = loggerClient.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, loggerClient)
		if err != nil {
			loggerClient.Error("marks failed to start", logger.Error(err))
			return err
		}
		return a.Run(ctx)
	},
}
