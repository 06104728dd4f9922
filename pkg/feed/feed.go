// Package feed connects live transaction sources to a visualizer.
//
// # Overview
//
// A [Source] reads messages from somewhere (a Redis channel, a websocket,
// a recorded file) and pushes decoded batches into a [Sink]. The
// visualizer's Runner is the usual sink.
//
// Messages use a small JSON envelope:
//
//	{"type": "items", "items": [{"id": "...", "parentIds": ["..."], "value": 0}]}
//	{"type": "metadata", "metadata": {"<id>": {"confirmed": true, "milestoneIndex": 12}}}
//
// Implementations live in subpackages:
//
//   - [redisfeed]: Redis pub/sub
//   - [wsfeed]: websocket client
//   - [replay]: JSON-lines file with optional pacing
//
// Network sources reconnect with exponential backoff via [Retry].
//
// [redisfeed]: github.com/matzehuels/tanglescope/pkg/feed/redisfeed
// [wsfeed]: github.com/matzehuels/tanglescope/pkg/feed/wsfeed
// [replay]: github.com/matzehuels/tanglescope/pkg/feed/replay
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Message kinds.
const (
	KindItems    = "items"
	KindMetadata = "metadata"
)

// Sentinel errors for message decoding.
var (
	ErrEmptyMessage  = errors.New("empty message")
	ErrUnknownKind   = errors.New("unknown message type")
	ErrMalformedItem = errors.New("malformed entry")
)

// Sink receives decoded feed data. Implementations must not retain the
// slices or maps they are given beyond the call if the caller reuses them;
// sources in this module never do.
type Sink interface {
	PushItems(items []tangle.Payload)
	PushMetadata(updates map[string]tangle.MetadataDelta)
}

// Source produces feed data until ctx is cancelled or it fails for good.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Run blocks, pushing into sink. It returns nil when ctx is cancelled
	// or the source is exhausted.
	Run(ctx context.Context, sink Sink) error
}

// Envelope is the wire format of one feed message.
//
// Entries are decoded one at a time: an item or metadata update that does
// not fit its type is left out and counted in Dropped, and the rest of the
// batch is kept.
type Envelope struct {
	Type     string                          `json:"type"`
	Items    []tangle.Payload                `json:"items,omitempty"`
	Metadata map[string]tangle.MetadataDelta `json:"metadata,omitempty"`

	// Dropped counts malformed entries skipped while decoding.
	Dropped int `json:"-"`
}

// UnmarshalJSON implements [json.Unmarshaler].
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type     string                     `json:"type"`
		Items    []json.RawMessage          `json:"items"`
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*e = Envelope{Type: wire.Type}
	for _, raw := range wire.Items {
		var p tangle.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			e.Dropped++
			continue
		}
		e.Items = append(e.Items, p)
	}
	if wire.Metadata != nil {
		e.Metadata = make(map[string]tangle.MetadataDelta, len(wire.Metadata))
		for id, raw := range wire.Metadata {
			var d tangle.MetadataDelta
			if err := json.Unmarshal(raw, &d); err != nil {
				e.Dropped++
				continue
			}
			e.Metadata[id] = d
		}
	}
	return nil
}

// DroppedErr describes the entries skipped while decoding, or returns nil
// when there were none.
func (e Envelope) DroppedErr() error {
	if e.Dropped == 0 {
		return nil
	}
	return errs.Wrap(errs.ErrCodeInvalidPayload, fmt.Errorf("%w: %d skipped", ErrMalformedItem, e.Dropped), "decode %s batch", e.Type)
}

// Decode parses one message. Errors carry the INVALID_PAYLOAD code. A
// malformed entry inside a batch is not an error; see [Envelope.Dropped].
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if len(data) == 0 {
		return env, errs.Wrap(errs.ErrCodeInvalidPayload, ErrEmptyMessage, "decode feed message")
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, errs.Wrap(errs.ErrCodeInvalidPayload, err, "decode feed message")
	}
	switch env.Type {
	case KindItems, KindMetadata:
		return env, nil
	default:
		return env, errs.Wrap(errs.ErrCodeInvalidPayload, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type), "decode feed message")
	}
}

// Encode is the inverse of [Decode].
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Dispatch pushes env into sink. Empty batches are skipped.
func Dispatch(sink Sink, env Envelope) {
	switch env.Type {
	case KindItems:
		if len(env.Items) > 0 {
			sink.PushItems(env.Items)
		}
	case KindMetadata:
		if len(env.Metadata) > 0 {
			sink.PushMetadata(env.Metadata)
		}
	}
}

// Handle decodes data and dispatches it, returning the decoded envelope.
func Handle(sink Sink, data []byte) (Envelope, error) {
	env, err := Decode(data)
	if err != nil {
		return Envelope{}, err
	}
	Dispatch(sink, env)
	return env, nil
}
