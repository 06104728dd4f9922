// Package wsfeed reads feed envelopes from a websocket endpoint.
//
// Each text or binary frame is one JSON [feed.Envelope]. The connection is
// re-established with backoff when it drops.
package wsfeed

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/tanglescope/pkg/buildinfo"
	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/observability"
)

// Default limits.
const (
	DefaultReadLimit = 4 << 20
	defaultPongWait  = 60 * time.Second
)

// Config configures a websocket source.
type Config struct {
	// URL is a ws:// or wss:// endpoint.
	URL string
	// Header is sent with the handshake (e.g. authorization).
	Header http.Header
	// ReadLimit caps a single message. Zero selects [DefaultReadLimit].
	ReadLimit int64
	// Backoff controls reconnection.
	Backoff feed.Backoff
}

// Source is a [feed.Source] reading from a websocket.
type Source struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *log.Logger
	hooks  observability.FeedHooks
}

// New validates cfg and creates a source. No connection is made until Run.
func New(cfg Config, logger *log.Logger) (*Source, error) {
	if err := errs.ValidateURL(cfg.URL, "ws", "wss"); err != nil {
		return nil, err
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		logger: logger.With("feed", "ws"),
		hooks:  observability.Feed(),
	}, nil
}

// Name implements [feed.Source].
func (s *Source) Name() string { return "ws" }

// Run connects and pushes every decoded message into sink until ctx is
// cancelled.
func (s *Source) Run(ctx context.Context, sink feed.Sink) error {
	return feed.Retry(ctx, s.cfg.Backoff, s.logger, func(ctx context.Context) error {
		return s.session(ctx, sink)
	})
}

func (s *Source) session(ctx context.Context, sink feed.Sink) error {
	header := s.cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("User-Agent", buildinfo.UserAgent())

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.hooks.OnDisconnect(s.Name(), err)
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "dial %s: status %d", s.cfg.URL, resp.StatusCode)
		}
		return errs.Wrap(errs.ErrCodeNetwork, err, "dial %s", s.cfg.URL)
	}
	defer conn.Close()

	s.hooks.OnConnect(s.Name())
	s.logger.Info("connected", "url", s.cfg.URL)

	conn.SetReadLimit(s.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	})

	// Unblock ReadMessage on cancellation and keep the connection alive.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ping := time.NewTicker(defaultPongWait / 2)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.hooks.OnDisconnect(s.Name(), nil)
				return nil
			}
			s.hooks.OnDisconnect(s.Name(), err)
			return errs.Wrap(errs.ErrCodeNetwork, err, "read %s", s.cfg.URL)
		}
		_ = conn.SetReadDeadline(time.Now().Add(defaultPongWait))

		env, err := feed.Handle(sink, data)
		if err != nil {
			s.hooks.OnDecodeError(s.Name(), err)
			s.logger.Debug("skipping message", "err", err)
			continue
		}
		if err := env.DroppedErr(); err != nil {
			s.hooks.OnDecodeError(s.Name(), err)
			s.logger.Debug("skipping entries", "err", err)
		}
		s.hooks.OnMessage(s.Name(), env.Type, len(data))
	}
}
