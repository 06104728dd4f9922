// Package replay plays back a recorded feed from a JSON-lines file.
//
// Each non-empty line is one [feed.Envelope]. Lines may carry an optional
// "at" offset (milliseconds since the start of the recording); with pacing
// enabled the source sleeps so messages are delivered at their recorded
// offsets, scaled by Speed.
//
//	{"at": 0, "type": "items", "items": [{"id": "a"}]}
//	{"at": 120, "type": "metadata", "metadata": {"a": {"confirmed": true}}}
//
// Replay is a development and test tool: it feeds the visualizer
// deterministically without a live node.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed"
	"github.com/matzehuels/tanglescope/pkg/observability"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// MaxLineSize bounds a single recorded message.
const MaxLineSize = 16 << 20

// Record is one line of a recording.
type Record struct {
	// At is the offset from the start of the recording in milliseconds.
	At int64 `json:"at,omitempty"`
	feed.Envelope
}

// UnmarshalJSON implements [json.Unmarshaler]. It is needed because the
// embedded envelope's method would otherwise hide At.
func (r *Record) UnmarshalJSON(data []byte) error {
	var head struct {
		At int64 `json:"at"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	r.At = head.At
	return r.Envelope.UnmarshalJSON(data)
}

// Options configures playback.
type Options struct {
	// Pace delivers messages at their recorded offsets. Without it the
	// file is pushed as fast as the sink accepts it.
	Pace bool
	// Speed multiplies playback speed when pacing. Zero selects 1.
	Speed float64
	// Loop restarts from the beginning at EOF until ctx is cancelled.
	Loop bool
}

// Source is a [feed.Source] reading a recording.
type Source struct {
	open   func() (io.ReadCloser, error)
	name   string
	opts   Options
	logger *log.Logger
	hooks  observability.FeedHooks
	sleep  func(ctx context.Context, d time.Duration) bool
}

// Open creates a source for the recording at path.
func Open(path string, opts Options, logger *log.Logger) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open recording")
	}
	return newSource(path, func() (io.ReadCloser, error) { return os.Open(path) }, opts, logger), nil
}

// FromReader creates a source that plays r once. Loop is ignored.
func FromReader(r io.Reader, opts Options, logger *log.Logger) *Source {
	used := false
	opts.Loop = false
	return newSource("reader", func() (io.ReadCloser, error) {
		if used {
			return nil, io.EOF
		}
		used = true
		return io.NopCloser(r), nil
	}, opts, logger)
}

func newSource(name string, open func() (io.ReadCloser, error), opts Options, logger *log.Logger) *Source {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		open:   open,
		name:   name,
		opts:   opts,
		logger: logger.With("feed", "replay"),
		hooks:  observability.Feed(),
		sleep:  sleepCtx,
	}
}

// Name implements [feed.Source].
func (s *Source) Name() string { return "replay" }

// Run plays the recording into sink. It returns nil at EOF (unless looping)
// or on cancellation. Malformed lines are skipped.
func (s *Source) Run(ctx context.Context, sink feed.Sink) error {
	s.hooks.OnConnect(s.Name())
	defer s.hooks.OnDisconnect(s.Name(), nil)

	for pass := 1; ; pass++ {
		n, err := s.play(ctx, sink)
		if err != nil || ctx.Err() != nil {
			return err
		}
		s.logger.Debug("recording finished", "source", s.name, "pass", pass, "messages", n)
		if !s.opts.Loop {
			return nil
		}
	}
}

func (s *Source) play(ctx context.Context, sink feed.Sink) (int, error) {
	rc, err := s.open()
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeFileNotFound, err, "open recording %s", s.name)
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64<<10), MaxLineSize)

	start := time.Now()
	line, delivered := 0, 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.hooks.OnDecodeError(s.Name(), err)
			s.logger.Warn("skipping line", "line", line, "err", err)
			continue
		}
		if rec.Type != feed.KindItems && rec.Type != feed.KindMetadata {
			s.hooks.OnDecodeError(s.Name(), feed.ErrUnknownKind)
			s.logger.Warn("skipping line", "line", line, "type", rec.Type)
			continue
		}

		if err := rec.DroppedErr(); err != nil {
			s.hooks.OnDecodeError(s.Name(), err)
			s.logger.Warn("skipping entries", "line", line, "err", err)
		}

		if s.opts.Pace && rec.At > 0 {
			due := start.Add(time.Duration(float64(rec.At) * float64(time.Millisecond) / s.opts.Speed))
			if !s.sleep(ctx, time.Until(due)) {
				return delivered, nil
			}
		}
		if ctx.Err() != nil {
			return delivered, nil
		}

		feed.Dispatch(sink, rec.Envelope)
		s.hooks.OnMessage(s.Name(), rec.Type, len(data))
		delivered++
	}
	if err := sc.Err(); err != nil {
		return delivered, errs.Wrap(errs.ErrCodeInvalidFormat, err, "read recording %s", s.name)
	}
	return delivered, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Writer records envelopes as JSON lines with offsets relative to the first
// write. It is the counterpart of [Source].
type Writer struct {
	w     *bufio.Writer
	enc   *json.Encoder
	start time.Time
	now   func() time.Time
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{w: bw, enc: json.NewEncoder(bw), now: time.Now}
}

// Write appends env.
func (w *Writer) Write(env feed.Envelope) error {
	now := w.now()
	if w.start.IsZero() {
		w.start = now
	}
	return w.enc.Encode(Record{At: now.Sub(w.start).Milliseconds(), Envelope: env})
}

// Flush writes buffered records.
func (w *Writer) Flush() error { return w.w.Flush() }

// Recorder is a [feed.Sink] that writes everything it receives to W and
// forwards it to Next, if set. The first write error is kept in Err and
// stops further recording; forwarding continues.
type Recorder struct {
	W    *Writer
	Next feed.Sink
	Err  error
}

func (r *Recorder) PushItems(items []tangle.Payload) {
	r.record(feed.Envelope{Type: feed.KindItems, Items: items})
	if r.Next != nil {
		r.Next.PushItems(items)
	}
}

func (r *Recorder) PushMetadata(updates map[string]tangle.MetadataDelta) {
	r.record(feed.Envelope{Type: feed.KindMetadata, Metadata: updates})
	if r.Next != nil {
		r.Next.PushMetadata(updates)
	}
}

func (r *Recorder) record(env feed.Envelope) {
	if r.Err == nil {
		r.Err = r.W.Write(env)
	}
}
