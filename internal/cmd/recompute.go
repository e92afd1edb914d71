package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rahiman13/Personal-assistant/internal/engine"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild patterns from the experience log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Recompute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s scanned %d rows in %s: %d temporal, %d sequential, %d frequency\n",
			okStyle.Render("recomputed"),
			res.Scanned, res.Duration.Round(time.Millisecond),
			res.Temporal, res.Sequential, res.Frequency)
		if res.Warning != nil {
			fmt.Println(warnStyle.Render(res.Warning.Error()))
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run in the foreground with periodic recompute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		interval := time.Duration(cfg.Patterns.RecomputeIntervalMin) * time.Minute
		runner := engine.NewRunner(eng, interval)

		// One pass up front so suggestions work immediately.
		if _, err := eng.Recompute(ctx); err != nil {
			return err
		}
		runner.Run(ctx, nil)
		return nil
	},
}
