package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tanglescope/pkg/config"
	"github.com/matzehuels/tanglescope/pkg/style"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(c.configCheckCommand())
	cmd.AddCommand(c.configDefaultCommand())

	return cmd
}

// configCheckCommand creates the "config check" subcommand.
func (c *CLI) configCheckCommand() *cobra.Command {
	var colors bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := c.loadConfig(cmd.Context())
			if err != nil {
				printError("%v", err)
				return err
			}
			if path == "" {
				printInfo("No config file found, using defaults")
			} else {
				printSuccess("%s is valid", path)
			}

			printKeyValue("max_items", strconv.Itoa(cfg.MaxItems))
			printKeyValue("debounce", cfg.SearchDebounce().String())
			cone := "unlimited"
			if cfg.ConeDepth > 0 {
				cone = strconv.Itoa(cfg.ConeDepth)
			}
			printKeyValue("cone_depth", cone)
			printKeyValue("feed", describeFeed(cfg.Feed))
			printKeyValue("server", cfg.Server.Addr)
			if len(cfg.Colors) > 0 {
				printKeyValue("colors", fmt.Sprintf("%d overrides", len(cfg.Colors)))
			}
			if colors {
				pal, err := cfg.Palette()
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout)
				resolved := paletteColors(pal)
				for _, key := range style.Keys() {
					printSwatch(key, resolved[key])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&colors, "colors", false, "print the effective palette")

	return cmd
}

// configDefaultCommand creates the "config default" subcommand.
func (c *CLI) configDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the built-in configuration as TOML",
		Long: `Print the built-in configuration, including every color key, as TOML.
Redirect it to ` + config.FileName + ` as a starting point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Colors = paletteColors(style.DefaultPalette())
			return toml.NewEncoder(stdout).Encode(cfg)
		},
	}
}

func describeFeed(f config.Feed) string {
	switch f.Kind {
	case "":
		return "none"
	case config.FeedReplay:
		var opts []string
		if f.Pace {
			opts = append(opts, "paced")
		}
		if f.Loop {
			opts = append(opts, "loop")
		}
		if len(opts) == 0 {
			return "replay " + f.File
		}
		return fmt.Sprintf("replay %s (%s)", f.File, strings.Join(opts, ", "))
	default:
		return f.Kind + " " + f.URL
	}
}

// paletteColors flattens a palette into [colors] keys.
func paletteColors(p style.Palette) map[string]string {
	out := make(map[string]string, len(p.Nodes)+4)
	for s, color := range p.Nodes {
		out[s.String()] = color
	}
	out[style.EdgeDefault] = p.Edge
	out[style.EdgePredecessor] = p.EdgePredecessor
	out[style.EdgeSuccessor] = p.EdgeSuccessor
	out[style.EdgeSearch] = p.EdgeSearch
	return out
}
