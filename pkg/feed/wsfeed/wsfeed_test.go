package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/feed/feedtest"
)

func TestNewValidatesURL(t *testing.T) {
	if _, err := New(Config{URL: "http://example.org"}, nil); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("New(http) = %v, want INVALID_INPUT", err)
	}
	if _, err := New(Config{URL: "wss://example.org/feed"}, nil); err != nil {
		t.Errorf("New(wss) = %v", err)
	}
}

func serve(t *testing.T, messages ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "tanglescope/") {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRun(t *testing.T) {
	url := serve(t,
		`{"type":"items","items":[{"id":"a"},{"id":"b","parentIds":["a"]}]}`,
		`not json`,
		`{"type":"metadata","metadata":{"a":{"confirmed":true}}}`,
	)
	src, err := New(Config{URL: url, Backoff: feed.Backoff{Initial: time.Millisecond}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sink := feedtest.NewSink()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	for len(sink.Metadata()) == 0 {
		select {
		case <-sink.Notify():
		case <-ctx.Done():
			t.Fatal("timed out waiting for metadata")
		}
	}
	if got := sink.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("IDs = %v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectedHandshakeIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Run(ctx, feedtest.NewSink()); !errs.Is(err, errs.ErrCodeInvalidConfig) {
		t.Errorf("Run() = %v, want INVALID_CONFIG", err)
	}
}
