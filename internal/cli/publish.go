package cli

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/feed/redisfeed"
	"github.com/matzehuels/tanglescope/pkg/feed/replay"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// publishCommand creates the publish command.
func (c *CLI) publishCommand() *cobra.Command {
	var (
		redisURL        string
		pace, loop      bool
		speed           float64
		itemsChannel    string
		metadataChannel string
	)

	cmd := &cobra.Command{
		Use:   "publish [recording]",
		Short: "Publish a recording to Redis",
		Long: `Play a recording into Redis pub/sub so that watch and serve instances
subscribed with --redis see it as a live feed. Useful for demos and for
load-testing a deployment.`,
		Example: `  tanglescope publish feed.jsonl --redis redis://localhost:6379/0 --pace --loop`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			pub, err := redisfeed.NewPublisher(redisURL)
			if err != nil {
				return err
			}
			defer pub.Close()
			if err := pub.Ping(ctx); err != nil {
				return err
			}

			src, err := replay.Open(args[0], replay.Options{Pace: pace, Speed: speed, Loop: loop}, logger)
			if err != nil {
				return err
			}

			sink := &publishSink{
				ctx:      ctx,
				pub:      pub,
				logger:   logger,
				items:    itemsChannel,
				metadata: metadataChannel,
			}
			prog := newProgress(logger)
			if err := src.Run(ctx, sink); err != nil {
				return err
			}
			prog.done("published recording", "sent", sink.sent, "failed", sink.failed, "receivers", sink.receivers)
			return sink.err
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis", "redis://localhost:6379/0", "Redis URL")
	cmd.Flags().BoolVar(&pace, "pace", false, "publish at recorded speed")
	cmd.Flags().Float64Var(&speed, "speed", 1, "speed multiplier (with --pace)")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart the recording at EOF")
	cmd.Flags().StringVar(&itemsChannel, "items-channel", redisfeed.DefaultItemsChannel, "channel for item batches")
	cmd.Flags().StringVar(&metadataChannel, "metadata-channel", redisfeed.DefaultMetadataChannel, "channel for metadata updates")

	return cmd
}

// publishSink forwards replayed messages to Redis. It is driven by a single
// source goroutine.
type publishSink struct {
	ctx             context.Context
	pub             *redisfeed.Publisher
	logger          *log.Logger
	items, metadata string

	sent, failed int
	receivers    int64
	err          error
}

func (s *publishSink) PushItems(items []tangle.Payload) {
	s.publish(s.items, feed.Envelope{Type: feed.KindItems, Items: items})
}

func (s *publishSink) PushMetadata(updates map[string]tangle.MetadataDelta) {
	s.publish(s.metadata, feed.Envelope{Type: feed.KindMetadata, Metadata: updates})
}

func (s *publishSink) publish(channel string, env feed.Envelope) {
	n, err := s.pub.Publish(s.ctx, channel, env)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.failed++
		if s.err == nil {
			s.err = err
		}
		s.logger.Warn("publish failed", "channel", channel, "err", err)
		return
	}
	s.sent++
	s.receivers += n
}
