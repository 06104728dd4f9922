package tangle

import (
	"slices"
	"testing"
)

func TestMetadataMerge(t *testing.T) {
	tests := []struct {
		name  string
		start Metadata
		delta MetadataDelta
		want  Metadata
	}{
		{
			name:  "Empty delta",
			start: Metadata{Confirmed: true},
			delta: MetadataDelta{},
			want:  Metadata{Confirmed: true},
		},
		{
			name:  "Overwrite present field",
			start: Metadata{Confirmed: true, Included: true},
			delta: MetadataDelta{Confirmed: Bool(false)},
			want:  Metadata{Confirmed: false, Included: true},
		},
		{
			name:  "Add flags",
			start: Metadata{},
			delta: MetadataDelta{Conflicting: Bool(true), Referenced: Bool(true)},
			want:  Metadata{Conflicting: true, Referenced: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.Merge(tt.delta)
			if got.Confirmed != tt.want.Confirmed || got.Included != tt.want.Included ||
				got.Conflicting != tt.want.Conflicting || got.Referenced != tt.want.Referenced {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMetadataMergeMilestoneIsCopied(t *testing.T) {
	idx := uint32(7)
	d := MetadataDelta{MilestoneIndex: &idx}
	m := Metadata{}.Merge(d)
	idx = 8

	if !m.IsMilestone() || *m.MilestoneIndex != 7 {
		t.Errorf("MilestoneIndex = %v, want 7", m.MilestoneIndex)
	}
}

func TestApplyMetadata(t *testing.T) {
	s := NewStore()
	s.AddNode("b", &Payload{ID: "b"})
	s.AddNode("a", &Payload{ID: "a"})
	s.AddEdge("a", "b")

	touched := ApplyMetadata(s, map[string]MetadataDelta{
		"b":       {Included: Bool(true)},
		"a":       {Confirmed: Bool(true)},
		"evicted": {Confirmed: Bool(true)},
	})

	if !slices.Equal(touched, []string{"a", "b"}) {
		t.Errorf("touched = %v, want [a b]", touched)
	}
	if _, ok := s.Node("evicted"); ok {
		t.Error("metadata for unknown id must not create a node")
	}

	a, _ := s.Node("a")
	if !a.Meta.Confirmed {
		t.Error("a should be confirmed")
	}

	// A second delta keeps fields it does not mention.
	ApplyMetadata(s, map[string]MetadataDelta{"a": {Referenced: Bool(true)}})
	if !a.Meta.Confirmed || !a.Meta.Referenced {
		t.Errorf("a.Meta = %+v, want confirmed and referenced", a.Meta)
	}
	if s.EdgeCount() != 1 || s.Len() != 2 {
		t.Error("metadata changed topology")
	}
	if got := collectIDs(s); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("order = %v, metadata must not reorder", got)
	}
}

func TestMetadataDeltaIsEmpty(t *testing.T) {
	if !(MetadataDelta{}).IsEmpty() {
		t.Error("zero delta should be empty")
	}
	if (MetadataDelta{MilestoneIndex: Index(1)}).IsEmpty() {
		t.Error("delta with milestone should not be empty")
	}
}
