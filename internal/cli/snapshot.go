package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/cache"
	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed/replay"
	"github.com/matzehuels/tanglescope/pkg/render/dot"
)

// Output formats for snapshot.
const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// snapshotCommand creates the snapshot command.
func (c *CLI) snapshotCommand() *cobra.Command {
	var (
		out         string
		format      string
		selectID    string
		pattern     string
		maxItems    int
		coneDepth   int
		labelLength int
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot [recording]",
		Short: "Replay a recording and export the resulting graph",
		Long: `Replay a recording as fast as possible and write the final graph as
Graphviz DOT or SVG.

The output format follows the file extension of --output unless --format is
given. Selection and search are applied after the replay, so the export
shows the same cones and highlights the live view would.`,
		Example: `  tanglescope snapshot feed.jsonl -o tangle.svg
  tanglescope snapshot feed.jsonl -o tangle.dot --select 9f3c... --search '^9f'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(out), ".")
			}
			if format != formatDOT && format != formatSVG {
				return errs.New(errs.ErrCodeInvalidInput, "unsupported format %q (valid: dot, svg)", format)
			}
			if err := errs.ValidateNodeID(selectID); err != nil {
				return err
			}
			if err := errs.ValidatePattern(pattern); err != nil {
				return err
			}

			cfg, _, err := c.loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-items") {
				if err := errs.ValidateMaxItems(maxItems); err != nil {
					return err
				}
				cfg.MaxItems = maxItems
			}
			if cmd.Flags().Changed("cone-depth") {
				cfg.ConeDepth = max(coneDepth, 0)
			}

			src, err := replay.Open(args[0], replay.Options{}, logger)
			if err != nil {
				return err
			}
			mirror := dot.NewMirror()
			viz, err := newVisualizer(cfg, mirror, logger, nil)
			if err != nil {
				return err
			}

			prog := newProgress(logger)
			sink := &countingSink{next: syncSink{viz}}
			if err := src.Run(ctx, sink); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			prog.done("replayed recording", "items", sink.items.Load(), "metadata", sink.metadata.Load())

			if selectID != "" {
				viz.Select(selectID)
				if viz.Selected() == "" {
					printWarning("%s is not in the final graph window", selectID)
				}
			}
			if pattern != "" {
				if m := viz.SetSearchPattern(pattern); m.Invalid {
					printWarning("search pattern %q is not a valid regular expression", pattern)
				}
			}

			dotSrc := dot.ToDOT(mirror.Graph(), dot.Options{LabelLength: labelLength})
			data := []byte(dotSrc)
			cached := false
			if format == formatSVG {
				store, err := newCache(noCache)
				if err != nil {
					return err
				}
				defer store.Close()

				spin := newSpinner(ctx, os.Stderr, staticStatus("Rendering SVG..."))
				spin.Start()
				data, cached, err = cache.GetOrCompute(ctx, store, cache.Key("svg", dotSrc), 7*24*time.Hour, func() ([]byte, error) {
					return dot.RenderSVG(ctx, dotSrc)
				})
				if err != nil {
					spin.StopWithError("Rendering failed")
					return errs.Wrap(errs.ErrCodeRenderFailed, err, "render svg")
				}
				spin.Stop()
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			nodes, edges := mirror.Len()
			printSuccess("Wrote %s", format)
			printFile(out)
			status := ""
			if format == formatSVG {
				status = renderStatus(cached)
			}
			printStats(nodes, edges, status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "tangle.svg", "output file")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: dot or svg (default from --output)")
	cmd.Flags().StringVar(&selectID, "select", "", "select a transaction and highlight its cones")
	cmd.Flags().StringVar(&pattern, "search", "", "highlight transactions matching a regular expression")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "retention cap (default from config)")
	cmd.Flags().IntVar(&coneDepth, "cone-depth", 0, "limit cone highlighting to N hops (0 = unlimited)")
	cmd.Flags().IntVar(&labelLength, "label-length", 0, "node label length (0 = 8, negative hides labels)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "render without the SVG cache")

	return cmd
}
