package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	red   = color.New(color.FgRed).Add(color.Bold)
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "marks",
	Short: "Personal bookmark manager",
	Long: `marks serves a per-user bookmark collection over HTTP.

Users sign in with Google (browser sessions kept in Redis) or call the API
with a bearer token. Bookmarks live in PostgreSQL, or in memory for local
runs (MARKS_STORE_DRIVER=memory).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional, real environment variables win
		_ = godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = red.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
