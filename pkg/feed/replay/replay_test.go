package replay

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed/feedtest"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

const recording = `{"at":0,"type":"items","items":[{"id":"a"}]}

{"at":100,"type":"items","items":[{"id":"b","parentIds":["a"]}]}
not json
{"at":150,"type":"price","items":[{"id":"x"}]}
{"at":250,"type":"metadata","metadata":{"a":{"confirmed":true}}}
`

func TestFromReader(t *testing.T) {
	sink := feedtest.NewSink()
	src := FromReader(strings.NewReader(recording), Options{}, nil)
	if err := src.Run(context.Background(), sink); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := sink.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("IDs = %v", got)
	}
	if len(sink.Metadata()) != 1 {
		t.Errorf("metadata batches = %d", len(sink.Metadata()))
	}
}

func TestPacing(t *testing.T) {
	var slept []time.Duration
	src := FromReader(strings.NewReader(recording), Options{Pace: true, Speed: 2}, nil)
	src.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return true
	}
	if err := src.Run(context.Background(), feedtest.NewSink()); err != nil {
		t.Fatal(err)
	}
	// Lines at 100ms and 250ms are paced; "at":0 is not.
	if len(slept) != 2 {
		t.Fatalf("sleeps = %v", slept)
	}
	if slept[1] > 125*time.Millisecond {
		t.Errorf("second sleep %v exceeds scaled offset", slept[1])
	}
}

func TestPacingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := FromReader(strings.NewReader(recording), Options{Pace: true}, nil)
	src.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}
	sink := feedtest.NewSink()
	if err := src.Run(ctx, sink); err != nil {
		t.Fatal(err)
	}
	if got := sink.IDs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("IDs = %v, want delivery to stop at cancellation", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.jsonl"), Options{}, nil)
	if !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("Open() = %v, want FILE_NOT_FOUND", err)
	}
}

func TestOpenLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"items","items":[{"id":"a"}]}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := Open(path, Options{Loop: true}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := feedtest.NewSink()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	for len(sink.Items()) < 3 {
		<-sink.Notify()
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(40 * time.Millisecond)}
	w.now = func() time.Time {
		t := ticks[0]
		ticks = ticks[1:]
		return t
	}

	rec := &Recorder{W: w, Next: feedtest.NewSink()}
	rec.PushItems([]tangle.Payload{{ID: "a"}})
	rec.PushMetadata(map[string]tangle.MetadataDelta{"a": {Included: tangle.Bool(true)}})
	if rec.Err != nil {
		t.Fatal(rec.Err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"at":40`) {
		t.Fatalf("recording = %q", buf.String())
	}

	sink := feedtest.NewSink()
	if err := FromReader(&buf, Options{}, nil).Run(context.Background(), sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.Items()) != 1 || len(sink.Metadata()) != 1 {
		t.Errorf("replayed %d item and %d metadata batches", len(sink.Items()), len(sink.Metadata()))
	}
	if got := rec.Next.(*feedtest.Sink).IDs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("forwarded IDs = %v", got)
	}
}

func TestMalformedItemInLine(t *testing.T) {
	const mixed = `{"at":40,"type":"items","items":[{"id":"t1"},{"id":"t2","value":"oops"},{"id":7}]}` + "\n"

	var slept []time.Duration
	sink := feedtest.NewSink()
	src := FromReader(strings.NewReader(mixed), Options{Pace: true, Speed: 1}, nil)
	src.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return true
	}
	if err := src.Run(context.Background(), sink); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := sink.IDs(); !slices.Equal(got, []string{"t1"}) {
		t.Errorf("IDs = %v, want [t1]", got)
	}
	// The offset survives the lenient envelope decoding.
	if len(slept) != 1 {
		t.Errorf("sleeps = %v, want one paced line", slept)
	}
}
