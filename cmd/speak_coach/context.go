package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/profile"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print a user's speaking profile and personalized context",
	RunE:  runContext,
}

var contextUserID string

func init() {
	contextCmd.Flags().StringVarP(&contextUserID, "user", "u", "", "User ID (required)")
	if err := contextCmd.MarkFlagRequired("user"); err != nil {
		panic(fmt.Sprintf("failed to mark user flag as required: %v", err))
	}
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, _ []string) error {
	if processEnv.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := openProfileStore(ctx, processEnv.DatabaseURL, false)
	if err != nil {
		return err
	}
	defer closeStore()

	return printContext(ctx, cmd, profile.NewAggregator(store, profile.Options{}), contextUserID)
}

func printContext(ctx context.Context, cmd *cobra.Command, agg *profile.Aggregator, userID string) error {
	p, err := agg.Profile(ctx, userID)
	if err != nil {
		return err
	}
	text, err := agg.PersonalizedContext(ctx, userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	observability.NewPrinter(out).PrintProfile(p)
	fmt.Fprintln(out, "Personalized context:")
	fmt.Fprintln(out, text)
	return nil
}
