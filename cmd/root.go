// Package cmd defines the scrivo command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/scrivo-ai/scrivo/internal/log"
)

var (
	debugFlag   bool
	logJSONFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "scrivo",
	Short: "scrivo - AI writing assistant for your content site",
	Long: `scrivo is an AI writing assistant backend. It drives an LLM
function-calling loop over your content: drafting posts, editing them
block by block, researching pages on the web and finding images.

Run "scrivo serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: logJSONFlag})
}
