package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/feed/replay"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// recordCommand creates the record command.
func (c *CLI) recordCommand() *cobra.Command {
	var (
		feeds    feedFlags
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Save a live feed to a replay file",
		Long: `Subscribe to a feed and write every message to a JSON-lines recording
with its arrival offset. Stop with Ctrl-C or --duration.

Recordings play back with --replay on watch and serve, or with snapshot.`,
		Example: `  tanglescope record feed.jsonl --redis redis://localhost:6379/0 --duration 5m`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, _, err := c.loadConfig(ctx)
			if err != nil {
				return err
			}
			feeds.apply(cmd, &cfg.Feed)
			src, err := newSource(cfg.Feed, logger)
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			defer f.Close()

			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			rec := &replay.Recorder{W: replay.NewWriter(f), Next: discardSink{}}
			sink := &countingSink{next: rec}
			prog := newProgress(logger)
			spin := newSpinner(ctx, os.Stderr, func() string {
				return fmt.Sprintf("Recording... %d items, %d metadata updates", sink.items.Load(), sink.metadata.Load())
			})
			spin.Start()
			runErr := src.Run(ctx, sink)
			spin.Stop()

			if err := rec.W.Flush(); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			if rec.Err != nil {
				return fmt.Errorf("write %s: %w", args[0], rec.Err)
			}
			prog.done("recorded feed", "items", sink.items.Load(), "metadata", sink.metadata.Load())
			printFile(args[0])
			return runErr
		},
	}

	feeds.bind(cmd)
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = until interrupted)")

	return cmd
}

// discardSink drops everything.
type discardSink struct{}

func (discardSink) PushItems([]tangle.Payload)                   {}
func (discardSink) PushMetadata(map[string]tangle.MetadataDelta) {}

var _ feed.Sink = discardSink{}
