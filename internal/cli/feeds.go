package cli

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/config"
	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/feed/redisfeed"
	"github.com/matzehuels/tanglescope/pkg/feed/replay"
	"github.com/matzehuels/tanglescope/pkg/feed/wsfeed"
	"github.com/matzehuels/tanglescope/pkg/observability"
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/tangle"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

// feedFlags override the [feed] section of the configuration.
type feedFlags struct {
	redis    string
	ws       string
	file     string
	channels []string
	pace     bool
	speed    float64
	loop     bool
}

func (f *feedFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.redis, "redis", "", "subscribe to a Redis server (redis://host:port/db)")
	fl.StringVar(&f.ws, "ws", "", "read from a websocket feed (ws://host/path)")
	fl.StringVar(&f.file, "replay", "", "play back a recording")
	fl.StringSliceVar(&f.channels, "channels", nil, "Redis channels (default tanglescope:items,tanglescope:metadata)")
	fl.BoolVar(&f.pace, "pace", false, "replay at recorded speed")
	fl.Float64Var(&f.speed, "speed", 1, "replay speed multiplier (with --pace)")
	fl.BoolVar(&f.loop, "loop", false, "restart the recording at EOF")
	cmd.MarkFlagsMutuallyExclusive("redis", "ws", "replay")
}

// apply overlays explicitly set flags onto fc.
func (f *feedFlags) apply(cmd *cobra.Command, fc *config.Feed) {
	fl := cmd.Flags()
	switch {
	case f.redis != "":
		*fc = config.Feed{Kind: config.FeedRedis, URL: f.redis, Channels: fc.Channels}
	case f.ws != "":
		*fc = config.Feed{Kind: config.FeedWS, URL: f.ws}
	case f.file != "":
		*fc = config.Feed{Kind: config.FeedReplay, File: f.file, Pace: fc.Pace, Speed: fc.Speed, Loop: fc.Loop}
	}
	if fl.Changed("channels") {
		fc.Channels = f.channels
	}
	if fl.Changed("pace") {
		fc.Pace = f.pace
	}
	if fl.Changed("speed") {
		fc.Speed = f.speed
	}
	if fl.Changed("loop") {
		fc.Loop = f.loop
	}
}

// newSource builds the configured feed source.
func newSource(fc config.Feed, logger *log.Logger) (feed.Source, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	switch fc.Kind {
	case config.FeedRedis:
		return redisfeed.New(redisfeed.Config{URL: fc.URL, Channels: fc.Channels}, logger)
	case config.FeedWS:
		return wsfeed.New(wsfeed.Config{URL: fc.URL}, logger)
	case config.FeedReplay:
		return replay.Open(fc.File, replay.Options{Pace: fc.Pace, Speed: fc.Speed, Loop: fc.Loop}, logger)
	default:
		return nil, errs.New(errs.ErrCodeInvalidConfig,
			"no feed configured: set [feed] in %s or pass --redis, --ws or --replay", config.FileName)
	}
}

// newVisualizer creates a visualizer from cfg drawing on port.
func newVisualizer(cfg config.Config, port render.Port, logger *log.Logger, hooks observability.VisualizerHooks) (*visualizer.Visualizer, error) {
	pal, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	return visualizer.New(port, visualizer.Options{
		MaxItems:  cfg.MaxItems,
		ConeDepth: cfg.ConeDepth,
		Palette:   &pal,
		Logger:    logger,
		Hooks:     hooks,
	}), nil
}

// startFeed runs src into sink in the background. The returned channel
// receives the source's result once it stops.
func startFeed(ctx context.Context, src feed.Source, sink feed.Sink, logger *log.Logger) <-chan error {
	done := make(chan error, 1)
	go func() {
		logger.Info("feed started", "source", src.Name())
		err := src.Run(ctx, sink)
		if err != nil {
			logger.Error("feed stopped", "source", src.Name(), "err", err)
		} else if ctx.Err() == nil {
			logger.Info("feed finished", "source", src.Name())
		}
		done <- err
	}()
	return done
}

// applyReloads pushes configuration changes to a running visualizer.
func applyReloads(r *visualizer.Runner, logger *log.Logger) func(config.Config) {
	return func(cfg config.Config) {
		pal, err := cfg.Palette()
		if err != nil {
			logger.Warn("ignoring palette", "err", err)
		} else {
			r.SetPalette(pal)
		}
		r.SetMaxItems(cfg.MaxItems)
	}
}

// syncSink feeds a visualizer directly on the caller's goroutine.
type syncSink struct {
	viz *visualizer.Visualizer
}

func (s syncSink) PushItems(items []tangle.Payload) { s.viz.Ingest(items) }

func (s syncSink) PushMetadata(updates map[string]tangle.MetadataDelta) {
	s.viz.ApplyMetadata(updates)
}

// countingSink counts messages on their way to next.
type countingSink struct {
	next     feed.Sink
	items    atomic.Int64
	metadata atomic.Int64
}

func (s *countingSink) PushItems(items []tangle.Payload) {
	s.items.Add(int64(len(items)))
	s.next.PushItems(items)
}

func (s *countingSink) PushMetadata(updates map[string]tangle.MetadataDelta) {
	s.metadata.Add(int64(len(updates)))
	s.next.PushMetadata(updates)
}
