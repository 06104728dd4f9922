package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/cache"
	"github.com/matzehuels/tanglescope/pkg/config"
	"github.com/matzehuels/tanglescope/pkg/observability"
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/render/dot"
	"github.com/matzehuels/tanglescope/pkg/render/wsport"
	"github.com/matzehuels/tanglescope/pkg/server"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		feeds      feedFlags
		addr       string
		redisCache string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the visualizer over HTTP and websockets",
		Long: `Follow a transaction feed and serve the visualizer.

Browsers connect to /ws for a live render stream and drive selection and
search over the same socket. The JSON API, DOT/SVG export and Prometheus
metrics are served alongside. The config file is watched and colors and the
retention cap are applied without a restart.`,
		Example: `  tanglescope serve --redis redis://localhost:6379/0
  tanglescope serve --replay testdata/tangle.jsonl --pace --loop --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			logger := loggerFromContext(ctx)

			cfg, path, err := c.loadConfig(ctx)
			if err != nil {
				return err
			}
			feeds.apply(cmd, &cfg.Feed)
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := observability.NewPrometheus(reg)
			observability.SetFeedHooks(metrics)

			src, err := newSource(cfg.Feed, logger)
			if err != nil {
				return err
			}

			svgCache := cache.Cache(cache.NewMemoryCache(16))
			if redisCache != "" {
				rc, err := cache.NewRedisCache(redisCache)
				if err != nil {
					return err
				}
				svgCache = rc
			}
			defer svgCache.Close()

			hub := wsport.NewHub(wsport.Options{AllowedOrigins: cfg.Server.AllowedOrigins, Logger: logger})
			defer hub.Close()
			mirror := dot.NewMirror()

			viz, err := newVisualizer(cfg, render.Multi(hub, mirror), logger, metrics)
			if err != nil {
				return err
			}
			runner := visualizer.NewRunner(viz, visualizer.RunnerOptions{SearchDebounce: searchDebounce(cfg)})
			hub.Bind(runner)
			runner.Start(ctx)
			defer runner.Stop()

			startFeed(ctx, src, runner, logger)
			if path != "" {
				go func() {
					if err := config.Watch(ctx, path, logger, applyReloads(runner, logger)); err != nil {
						logger.Warn("config watch stopped", "err", err)
					}
				}()
			}

			srv := server.New(runner, server.Options{
				Mirror:   mirror,
				SVGCache: cache.Prefixed(svgCache, "tanglescope:"),
				Stream:   hub,
				Gatherer: reg,
				Logger:   logger,
			})
			printInfo("Serving on %s", StyleLink.Render("http://"+displayAddr(cfg.Server.Addr)))
			return server.ListenAndServe(ctx, cfg.Server.Addr, srv, logger)
		},
	}

	feeds.bind(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringVar(&redisCache, "redis-cache", "", "share rendered SVGs through Redis (redis://host:port/db)")

	return cmd
}

// displayAddr turns a listen address into something a browser can open.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
