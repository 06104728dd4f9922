// Package config loads tanglescope's TOML configuration.
//
// A configuration file looks like this; every key is optional:
//
//	max_items = 5000
//	search_debounce_ms = 250
//	cone_depth = 0
//
//	[colors]
//	milestone = "#d92121"
//	edge_successor = "#00f3ff"
//
//	[feed]
//	kind = "redis"
//	url = "redis://localhost:6379/0"
//
//	[server]
//	addr = ":8080"
//
// [Load] applies defaults, then the file, then validates. [Watch] reloads
// the file when it changes so a running viewer can pick up new colors or a
// new retention cap.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "tanglescope.toml"

// Feed kinds.
const (
	FeedRedis  = "redis"
	FeedWS     = "ws"
	FeedReplay = "replay"
)

// Config is the complete configuration.
type Config struct {
	MaxItems         int               `toml:"max_items"`
	SearchDebounceMS int               `toml:"search_debounce_ms"`
	ConeDepth        int               `toml:"cone_depth"`
	Colors           map[string]string `toml:"colors"`
	Feed             Feed              `toml:"feed"`
	Server           Server            `toml:"server"`
}

// Feed selects and configures the data source.
type Feed struct {
	Kind     string   `toml:"kind"`
	URL      string   `toml:"url"`
	Channels []string `toml:"channels"`
	File     string   `toml:"file"`
	Pace     bool     `toml:"pace"`
	Speed    float64  `toml:"speed"`
	Loop     bool     `toml:"loop"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr"`
	// AllowedOrigins restricts websocket clients. Empty allows same-origin
	// requests only; "*" allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxItems:         tangle.DefaultMaxItems,
		SearchDebounceMS: 250,
		Server:           Server{Addr: "127.0.0.1:8080"},
	}
}

// SearchDebounce returns the debounce as a duration.
func (c Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// Palette returns the default palette with the configured colors applied.
func (c Config) Palette() (style.Palette, error) {
	p := style.DefaultPalette()
	if err := p.Apply(c.Colors); err != nil {
		return p, errs.Wrap(errs.ErrCodeInvalidConfig, err, "[colors]")
	}
	return p, nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	if c.MaxItems < 1 {
		return errs.New(errs.ErrCodeInvalidConfig, "max_items must be at least 1, got %d", c.MaxItems)
	}
	if c.SearchDebounceMS < 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "search_debounce_ms must not be negative, got %d", c.SearchDebounceMS)
	}
	if c.ConeDepth < 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "cone_depth must not be negative, got %d", c.ConeDepth)
	}
	if _, err := c.Palette(); err != nil {
		return err
	}
	return c.Feed.Validate()
}

// Validate checks the feed section. An empty kind is valid and means no
// feed is configured.
func (f Feed) Validate() error {
	switch f.Kind {
	case "":
		return nil
	case FeedRedis:
		return wrapFeed(errs.ValidateURL(f.URL, "redis", "rediss"))
	case FeedWS:
		return wrapFeed(errs.ValidateURL(f.URL, "ws", "wss"))
	case FeedReplay:
		if f.File == "" {
			return errs.New(errs.ErrCodeInvalidConfig, "[feed] kind %q requires file", f.Kind)
		}
		if f.Speed < 0 {
			return errs.New(errs.ErrCodeInvalidConfig, "[feed] speed must not be negative")
		}
		return nil
	default:
		return errs.New(errs.ErrCodeInvalidConfig, "[feed] unknown kind %q (valid: %s)", f.Kind,
			strings.Join([]string{FeedRedis, FeedWS, FeedReplay}, ", "))
	}
}

func wrapFeed(err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.ErrCodeInvalidConfig, err, "[feed] url")
}

// Load reads path on top of the defaults and validates the result. An empty
// path returns the validated defaults. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errs.Wrap(errs.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return Parse(data, filepath.Base(path))
}

// Parse decodes TOML data on top of the defaults and validates it. name is
// used in error messages.
func Parse(data []byte, name string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Default(), errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", name)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Default(), errs.New(errs.ErrCodeInvalidConfig, "%s: unknown keys %s", name, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Find returns the configuration file to use: explicit if set, otherwise
// [FileName] in the working directory, otherwise tanglescope/config.toml in
// the user config directory. It returns "" when none exists.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "tanglescope", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
