package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/config"
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/render/dot"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		feeds    feedFlags
		tui      bool
		interval time.Duration
		out      string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a transaction feed in the terminal",
		Long: `Follow a transaction feed and keep the visualizer state in memory.

Without --tui, a status line is logged periodically. With --tui, an
interactive view lists the newest transactions; select one to highlight its
cones and type / to search.

The feed comes from the [feed] section of the config or from --redis, --ws
or --replay.`,
		Example: `  tanglescope watch --replay testdata/tangle.jsonl --pace --tui
  tanglescope watch --redis redis://localhost:6379/0 --out tangle.dot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, path, err := c.loadConfig(ctx)
			if err != nil {
				return err
			}
			feeds.apply(cmd, &cfg.Feed)
			src, err := newSource(cfg.Feed, logger)
			if err != nil {
				return err
			}

			var mirror *dot.Mirror
			port := render.Discard
			if out != "" {
				mirror = dot.NewMirror()
				port = mirror
			}
			viz, err := newVisualizer(cfg, port, logger, nil)
			if err != nil {
				return err
			}
			runner := visualizer.NewRunner(viz, visualizer.RunnerOptions{SearchDebounce: searchDebounce(cfg)})

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			runner.Start(ctx)
			defer runner.Stop()

			if path != "" {
				go func() {
					if err := config.Watch(ctx, path, logger, applyReloads(runner, logger)); err != nil {
						logger.Warn("config watch stopped", "err", err)
					}
				}()
			}

			if tui {
				// The view owns the terminal; keep log output from tearing it.
				prev := c.Logger.GetLevel()
				c.SetLogLevel(LogError)
				done := startFeed(ctx, src, runner, logger)
				_, err = tea.NewProgram(newWatchModel(ctx, runner, done), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				c.SetLogLevel(prev)
				if err != nil && ctx.Err() == nil {
					return fmt.Errorf("interactive view: %w", err)
				}
			} else if err := c.logWhileRunning(ctx, runner, startFeed(ctx, src, runner, logger), interval); err != nil {
				return err
			}

			if mirror != nil {
				// Let queued operations land before exporting. A stopped
				// runner has already drawn everything it will.
				_, _ = runner.Stats(context.WithoutCancel(ctx))
				if err := os.WriteFile(out, []byte(dot.ToDOT(mirror.Graph(), dot.Options{})), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				printFile(out)
			}
			return nil
		},
	}

	feeds.bind(cmd)
	cmd.Flags().BoolVar(&tui, "tui", false, "interactive terminal view")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "status log interval")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final graph as DOT on exit")

	return cmd
}

// logWhileRunning logs a status line every interval until the feed stops
// or ctx is cancelled, then prints a summary.
func (c *CLI) logWhileRunning(ctx context.Context, r *visualizer.Runner, done <-chan error, interval time.Duration) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	ticker := time.NewTicker(max(interval, 100*time.Millisecond))
	defer ticker.Stop()

	var feedErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case feedErr = <-done:
			break loop
		case <-ticker.C:
			st, err := r.Stats(ctx)
			if err != nil {
				break loop
			}
			logger.Info("graph",
				"nodes", st.Nodes,
				"edges", st.Edges,
				"placeholders", st.Placeholders,
				"confirmed", st.States["confirmed_value"]+st.States["confirmed_zero"],
				"evicted", st.Totals.Evicted)
		}
	}

	st, err := r.Stats(context.WithoutCancel(ctx))
	if err == nil {
		prog.done("processed feed", "items", st.Totals.Items, "batches", st.Totals.Batches)
		printStats(st.Nodes, st.Edges, fmt.Sprintf("%d evicted", st.Totals.Evicted))
	}
	return feedErr
}

func searchDebounce(cfg config.Config) time.Duration {
	if cfg.SearchDebounceMS == 0 {
		return -1
	}
	return cfg.SearchDebounce()
}
