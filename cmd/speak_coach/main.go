// Package main provides the entry point for the speaking coach HTTP API server and tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/speaking-coach/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "speak_coach",
	Short: "Speaking Coach practice and feedback server",
	Long: "Speaking Coach runs mock interviews, evaluates practice transcripts " +
		"and keeps a rolling speaking profile per user.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		env, err := config.LoadEnv()
		if err != nil {
			return err
		}
		processEnv = env
		slog.SetDefault(newLogger(env))
		return nil
	},
}

// processEnv is populated before any subcommand runs.
var processEnv *config.Env

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(env *config.Env) *slog.Logger {
	opts := &slog.HandlerOptions{Level: env.SlogLevel()}
	if env.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
