package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pensiv/pensiv/internal/app"
	"github.com/pensiv/pensiv/internal/config"
	"github.com/pensiv/pensiv/internal/reasoning"
)

var (
	thinkSession string
	thinkOp      string
	thinkTarget  int
)

var thinkCmd = &cobra.Command{
	Use:   "think <thought>",
	Short: "Record a thought in a reasoning chain",
	Long: `Record a thought in a reasoning chain and print the updated transcript.

The default operation appends to the end of the chain. Use --operation
revise to rewrite an earlier thought or --operation branch to fork from
one; both take the target index via --target.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThink(args[0])
	},
}

func init() {
	thinkCmd.Flags().StringVar(&thinkSession, "session", reasoning.DefaultSession, "session identifier")
	thinkCmd.Flags().StringVar(&thinkOp, "operation", "append", "append, revise, or branch")
	thinkCmd.Flags().IntVar(&thinkTarget, "target", -1, "thought index for revise or branch")
	rootCmd.AddCommand(thinkCmd)
}

func runThink(text string) error {
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

	op, err := reasoning.ParseOperation(thinkOp)
	if err != nil {
		return err
	}

	req := reasoning.Request{
		SessionID: thinkSession,
		Text:      text,
		Operation: op,
	}
	if thinkTarget >= 0 {
		target := thinkTarget
		req.BranchFrom = &target
	}

	res, err := a.Engine.Think(ctx, req)
	if err != nil {
		return fmt.Errorf("recording thought: %w", err)
	}

	if res.Merged {
		fmt.Printf("merged into thought %02d\n\n", res.Thought.Step)
	}
	fmt.Println(res.Transcript)

	if !res.Save.FullyPersisted() {
		fmt.Fprintln(os.Stderr, "warning: chain not fully persisted, primary store unavailable")
	}
	return nil
}
