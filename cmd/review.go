package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pensiv/pensiv/internal/app"
	"github.com/pensiv/pensiv/internal/config"
	"github.com/pensiv/pensiv/internal/reasoning"
)

var (
	reviewSession string
	reviewClear   bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Print or clear a reasoning chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview()
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewSession, "session", reasoning.DefaultSession, "session identifier")
	reviewCmd.Flags().BoolVar(&reviewClear, "clear", false, "delete the session's chain instead of printing it")
	rootCmd.AddCommand(reviewCmd)
}

func runReview() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if reviewClear {
		if err := a.Engine.Clear(ctx, reviewSession); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Printf("Session '%s' cleared.\n", reviewSession)
		return nil
	}

	fmt.Println(a.Engine.Review(ctx, reviewSession))
	return nil
}
