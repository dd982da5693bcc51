package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pensiv/pensiv/internal/app"
	"github.com/pensiv/pensiv/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List reasoning sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessions()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions() error {
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

	ids, err := a.Engine.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	for _, id := range ids {
		stats := a.Engine.Stats(ctx, id)
		line := fmt.Sprintf("%s  %d thoughts, %d tokens", id, stats.Thoughts, stats.Tokens)
		if stats.LastUpdated > 0 {
			line += ", updated " + formatTime(time.Unix(stats.LastUpdated, 0))
		}
		fmt.Println(line)
		if stats.LastPreview != "" {
			fmt.Printf("  last: %s\n", stats.LastPreview)
		}
	}

	return nil
}

// formatTime formats time in a human-readable relative format.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
