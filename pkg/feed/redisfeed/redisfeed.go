// Package redisfeed reads feed envelopes from Redis pub/sub channels.
//
// Every message on a subscribed channel is a JSON [feed.Envelope]. A
// [Publisher] writes envelopes in the same format, which is how recorded
// feeds are replayed into a shared Redis for several viewers.
package redisfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/observability"
)

// Default channel names.
const (
	DefaultItemsChannel    = "tanglescope:items"
	DefaultMetadataChannel = "tanglescope:metadata"
)

// Config configures a Redis source or publisher.
type Config struct {
	// URL is a redis:// or rediss:// URL.
	URL string
	// Channels to subscribe to. Empty selects the two default channels.
	Channels []string
	// Backoff controls reconnection.
	Backoff feed.Backoff
}

func (c Config) channels() []string {
	if len(c.Channels) == 0 {
		return []string{DefaultItemsChannel, DefaultMetadataChannel}
	}
	return c.Channels
}

func newClient(rawURL string) (*redis.Client, error) {
	if err := errs.ValidateURL(rawURL, "redis", "rediss"); err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse redis URL")
	}
	return redis.NewClient(opts), nil
}

// Source is a [feed.Source] backed by Redis pub/sub.
type Source struct {
	cfg    Config
	client *redis.Client
	logger *log.Logger
	hooks  observability.FeedHooks
}

// New validates cfg and creates a source. No connection is made until Run.
func New(cfg Config, logger *log.Logger) (*Source, error) {
	client, err := newClient(cfg.URL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		cfg:    cfg,
		client: client,
		logger: logger.With("feed", "redis"),
		hooks:  observability.Feed(),
	}, nil
}

// Name implements [feed.Source].
func (s *Source) Name() string { return "redis" }

// Close releases the client.
func (s *Source) Close() error { return s.client.Close() }

// Run subscribes and pushes every decoded message into sink, reconnecting
// with backoff when the connection fails.
func (s *Source) Run(ctx context.Context, sink feed.Sink) error {
	return feed.Retry(ctx, s.cfg.Backoff, s.logger, func(ctx context.Context) error {
		return s.session(ctx, sink)
	})
}

func (s *Source) session(ctx context.Context, sink feed.Sink) error {
	channels := s.cfg.channels()
	pubsub := s.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// Wait for the subscription confirmation so connection errors surface
	// here rather than as a silently closed channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.hooks.OnDisconnect(s.Name(), err)
		return errs.Wrap(errs.ErrCodeNetwork, err, "subscribe %v", channels)
	}
	s.hooks.OnConnect(s.Name())
	s.logger.Info("subscribed", "channels", channels)

	msgs := pubsub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-ctx.Done():
			s.hooks.OnDisconnect(s.Name(), nil)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				err := fmt.Errorf("subscription closed")
				s.hooks.OnDisconnect(s.Name(), err)
				return errs.Wrap(errs.ErrCodeNetwork, err, "redis pub/sub")
			}
			env, err := feed.Handle(sink, []byte(msg.Payload))
			if err != nil {
				s.hooks.OnDecodeError(s.Name(), err)
				s.logger.Debug("skipping message", "channel", msg.Channel, "err", err)
				continue
			}
			if err := env.DroppedErr(); err != nil {
				s.hooks.OnDecodeError(s.Name(), err)
				s.logger.Debug("skipping entries", "channel", msg.Channel, "err", err)
			}
			s.hooks.OnMessage(s.Name(), env.Type, len(msg.Payload))
		}
	}
}

// Publisher writes envelopes to Redis.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a publisher for the given redis URL.
func NewPublisher(rawURL string) (*Publisher, error) {
	client, err := newClient(rawURL)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client}, nil
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeNetwork, err, "ping redis")
	}
	return nil
}

// Publish sends env on channel and returns the number of subscribers that
// received it.
func (p *Publisher) Publish(ctx context.Context, channel string, env feed.Envelope) (int64, error) {
	data, err := feed.Encode(env)
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeInternal, err, "encode envelope")
	}
	n, err := p.client.Publish(ctx, channel, data).Result()
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeNetwork, err, "publish to %s", channel)
	}
	return n, nil
}

// ChannelFor returns the default channel for an envelope kind.
func ChannelFor(kind string) string {
	if kind == feed.KindMetadata {
		return DefaultMetadataChannel
	}
	return DefaultItemsChannel
}

// Close releases the client.
func (p *Publisher) Close() error { return p.client.Close() }
