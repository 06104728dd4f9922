package feed

import (
	"errors"
	"slices"
	"testing"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/feed/feedtest"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
		wantErr  error
	}{
		{"items", `{"type":"items","items":[{"id":"a","parentIds":["b"],"value":3}]}`, KindItems, nil},
		{"metadata", `{"type":"metadata","metadata":{"a":{"confirmed":true,"milestoneIndex":9}}}`, KindMetadata, nil},
		{"empty", ``, "", ErrEmptyMessage},
		{"unknown type", `{"type":"price"}`, "", ErrUnknownKind},
		{"bad json", `{"type":`, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.in))
			if tt.wantType != "" {
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if env.Type != tt.wantType {
					t.Errorf("Type = %q, want %q", env.Type, tt.wantType)
				}
				return
			}
			if err == nil {
				t.Fatal("Decode() error = nil")
			}
			if !errs.Is(err, errs.ErrCodeInvalidPayload) {
				t.Errorf("code = %v, want INVALID_PAYLOAD", errs.GetCode(err))
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeFields(t *testing.T) {
	env, err := Decode([]byte(`{"type":"metadata","metadata":{"a":{"conflicting":true,"milestoneIndex":9}}}`))
	if err != nil {
		t.Fatal(err)
	}
	d := env.Metadata["a"]
	if d.Conflicting == nil || !*d.Conflicting || d.MilestoneIndex == nil || *d.MilestoneIndex != 9 {
		t.Errorf("delta = %+v", d)
	}
	if d.Confirmed != nil {
		t.Error("absent field should stay nil")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := Envelope{Type: KindItems, Items: []tangle.Payload{{ID: "x", ParentIDs: []string{"y"}}}}
	data, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Items[0].ID != "x" || !slices.Equal(out.Items[0].ParentIDs, []string{"y"}) {
		t.Errorf("round trip = %+v", out)
	}
}

func TestHandle(t *testing.T) {
	sink := feedtest.NewSink()

	if env, err := Handle(sink, []byte(`{"type":"items","items":[{"id":"a"},{"id":"b"}]}`)); err != nil || env.Type != KindItems {
		t.Fatalf("Handle() = %q, %v", env.Type, err)
	}
	if _, err := Handle(sink, []byte(`{"type":"metadata","metadata":{"a":{"included":true}}}`)); err != nil {
		t.Fatal(err)
	}
	// Empty batches are not forwarded.
	if _, err := Handle(sink, []byte(`{"type":"items","items":[]}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := Handle(sink, []byte(`garbage`)); err == nil {
		t.Error("Handle(garbage) error = nil")
	}

	if got := sink.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("IDs = %v", got)
	}
	if len(sink.Items()) != 1 || len(sink.Metadata()) != 1 {
		t.Errorf("items %d metadata %d", len(sink.Items()), len(sink.Metadata()))
	}
}

func TestDecodeSkipsMalformedEntries(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantIDs     []string
		wantMeta    []string
		wantDropped int
	}{
		{
			name:        "wrong value type and numeric id",
			in:          `{"type":"items","items":[{"id":"t1"},{"id":"t2","value":"oops"},{"id":7}]}`,
			wantIDs:     []string{"t1"},
			wantDropped: 2,
		},
		{
			name:        "non-object item",
			in:          `{"type":"items","items":["t0",{"id":"t1","parentIds":["t0"]},{"id":"t2"}]}`,
			wantIDs:     []string{"t1", "t2"},
			wantDropped: 1,
		},
		{
			name:        "bad metadata entry",
			in:          `{"type":"metadata","metadata":{"a":{"confirmed":true},"b":{"milestoneIndex":"x"}}}`,
			wantMeta:    []string{"a"},
			wantDropped: 1,
		},
		{
			name:    "all good",
			in:      `{"type":"items","items":[{"id":"t1"}]}`,
			wantIDs: []string{"t1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			var ids []string
			for _, p := range env.Items {
				ids = append(ids, p.ID)
			}
			if !slices.Equal(ids, tt.wantIDs) {
				t.Errorf("items = %v, want %v", ids, tt.wantIDs)
			}
			var meta []string
			for id := range env.Metadata {
				meta = append(meta, id)
			}
			slices.Sort(meta)
			if !slices.Equal(meta, tt.wantMeta) {
				t.Errorf("metadata = %v, want %v", meta, tt.wantMeta)
			}
			if env.Dropped != tt.wantDropped {
				t.Errorf("Dropped = %d, want %d", env.Dropped, tt.wantDropped)
			}
			derr := env.DroppedErr()
			if (derr != nil) != (tt.wantDropped > 0) {
				t.Fatalf("DroppedErr() = %v", derr)
			}
			if derr != nil && (!errors.Is(derr, ErrMalformedItem) || !errs.Is(derr, errs.ErrCodeInvalidPayload)) {
				t.Errorf("DroppedErr() = %v", derr)
			}
		})
	}
}

func TestHandleKeepsGoodItemsOfMixedBatch(t *testing.T) {
	sink := feedtest.NewSink()

	env, err := Handle(sink, []byte(`{"type":"items","items":[{"id":"t1"},{"id":"t2","value":"oops"},{"id":7}]}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if env.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", env.Dropped)
	}
	if got := sink.IDs(); !slices.Equal(got, []string{"t1"}) {
		t.Errorf("IDs = %v, want [t1]", got)
	}
}
