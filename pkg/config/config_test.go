package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/style"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.MaxItems != 5000 {
		t.Errorf("MaxItems = %d, want 5000", cfg.MaxItems)
	}
	if cfg.SearchDebounce() != 250*time.Millisecond {
		t.Errorf("SearchDebounce() = %v", cfg.SearchDebounce())
	}
	if cfg.ConeDepth != 0 {
		t.Errorf("ConeDepth = %d, want 0", cfg.ConeDepth)
	}
}

func TestParse(t *testing.T) {
	data := `
max_items = 300
search_debounce_ms = 0
cone_depth = 2

[colors]
milestone = "#000000"
edge_successor = "#123"

[feed]
kind = "redis"
url = "redis://localhost:6379/0"
channels = ["a", "b"]

[server]
addr = ":9000"
`
	cfg, err := Parse([]byte(data), "test.toml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.MaxItems != 300 || cfg.SearchDebounceMS != 0 || cfg.ConeDepth != 2 {
		t.Errorf("scalars = %d/%d/%d", cfg.MaxItems, cfg.SearchDebounceMS, cfg.ConeDepth)
	}
	if cfg.Feed.Kind != FeedRedis || len(cfg.Feed.Channels) != 2 {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}

	p, err := cfg.Palette()
	if err != nil {
		t.Fatalf("Palette() error = %v", err)
	}
	if got := p.Nodes[style.StateMilestone]; got != "#000000" {
		t.Errorf("milestone color = %q", got)
	}
	if p.EdgeSuccessor != "#123" {
		t.Errorf("EdgeSuccessor = %q", p.EdgeSuccessor)
	}
	if got, want := p.Nodes[style.StatePending], style.DefaultPalette().Nodes[style.StatePending]; got != want {
		t.Errorf("pending color = %q, want default %q", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `max_items = `},
		{"unknown key", `max_itemz = 3`},
		{"unknown nested key", "[feed]\nkindd = \"ws\""},
		{"zero max", `max_items = 0`},
		{"negative debounce", `search_debounce_ms = -1`},
		{"negative cone", `cone_depth = -1`},
		{"bad color", "[colors]\nmilestone = \"red\""},
		{"unknown color key", "[colors]\nsparkly = \"#fff\""},
		{"unknown feed", "[feed]\nkind = \"kafka\""},
		{"redis scheme", "[feed]\nkind = \"redis\"\nurl = \"ws://x\""},
		{"ws missing url", "[feed]\nkind = \"ws\""},
		{"replay missing file", "[feed]\nkind = \"replay\""},
		{"replay negative speed", "[feed]\nkind = \"replay\"\nfile = \"a.jsonl\"\nspeed = -1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), "bad.toml")
			if err == nil {
				t.Fatalf("Parse() = %+v, want error", cfg)
			}
			if !errs.Is(err, errs.ErrCodeInvalidConfig) {
				t.Errorf("code = %v, want INVALID_CONFIG (%v)", errs.GetCode(err), err)
			}
			if cfg.MaxItems != Default().MaxItems {
				t.Errorf("failed Parse should return defaults, got MaxItems %d", cfg.MaxItems)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil || cfg.MaxItems != Default().MaxItems {
			t.Errorf("Load(\"\") = %+v, %v", cfg, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		if !errs.Is(err, errs.ErrCodeFileNotFound) {
			t.Errorf("Load() error = %v, want FILE_NOT_FOUND", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.toml")
		if err := os.WriteFile(path, []byte("max_items = 42\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.MaxItems != 42 {
			t.Errorf("MaxItems = %d, want 42", cfg.MaxItems)
		}
	})
}

func TestFind(t *testing.T) {
	if got := Find("explicit.toml"); got != "explicit.toml" {
		t.Errorf("Find(explicit) = %q", got)
	}

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	if got := Find(""); got != "" {
		t.Errorf("Find(\"\") = %q, want empty", got)
	}
	if err := os.WriteFile(FileName, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Find(""); got != FileName {
		t.Errorf("Find(\"\") = %q, want %q", got, FileName)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.toml")
	if err := os.WriteFile(path, []byte("max_items = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid write is ignored.
	if err := os.WriteFile(path, []byte("max_items = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * reloadDelay)
	select {
	case c := <-got:
		t.Fatalf("invalid config delivered: %+v", c)
	default:
	}

	// Writes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("max_items = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("max_items = 77\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-got:
		if c.MaxItems != 77 {
			t.Errorf("reloaded MaxItems = %d, want 77", c.MaxItems)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
