package tangle

import "slices"

// Metadata holds the confirmation state of a node. It starts empty and is
// filled in by [ApplyMetadata] as updates arrive.
type Metadata struct {
	Confirmed      bool    `json:"confirmed,omitempty"`
	Included       bool    `json:"included,omitempty"`
	Conflicting    bool    `json:"conflicting,omitempty"`
	Referenced     bool    `json:"referenced,omitempty"`
	MilestoneIndex *uint32 `json:"milestoneIndex,omitempty"`
}

// IsMilestone reports whether a milestone index has been set.
func (m Metadata) IsMilestone() bool { return m.MilestoneIndex != nil }

// MetadataDelta is a partial metadata update. Nil fields are absent from the
// update and leave the current value untouched.
type MetadataDelta struct {
	Confirmed      *bool   `json:"confirmed,omitempty"`
	Included       *bool   `json:"included,omitempty"`
	Conflicting    *bool   `json:"conflicting,omitempty"`
	Referenced     *bool   `json:"referenced,omitempty"`
	MilestoneIndex *uint32 `json:"milestoneIndex,omitempty"`
}

// IsEmpty reports whether the delta carries no fields.
func (d MetadataDelta) IsEmpty() bool {
	return d.Confirmed == nil && d.Included == nil && d.Conflicting == nil &&
		d.Referenced == nil && d.MilestoneIndex == nil
}

// Merge returns m with every field present in d overwritten.
func (m Metadata) Merge(d MetadataDelta) Metadata {
	if d.Confirmed != nil {
		m.Confirmed = *d.Confirmed
	}
	if d.Included != nil {
		m.Included = *d.Included
	}
	if d.Conflicting != nil {
		m.Conflicting = *d.Conflicting
	}
	if d.Referenced != nil {
		m.Referenced = *d.Referenced
	}
	if d.MilestoneIndex != nil {
		idx := *d.MilestoneIndex
		m.MilestoneIndex = &idx
	}
	return m
}

// ApplyMetadata shallow-merges each delta into the node with the matching id
// and returns the ids of the nodes it touched, sorted. Updates for ids that are
// not in the store (never seen, or already evicted) are dropped silently.
//
// Metadata never affects topology or insertion order.
func ApplyMetadata(s *Store, updates map[string]MetadataDelta) []string {
	touched := make([]string, 0, len(updates))
	for id, d := range updates {
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		n.Meta = n.Meta.Merge(d)
		touched = append(touched, id)
	}
	slices.Sort(touched)
	return touched
}

// Bool returns a pointer to b, for building deltas.
func Bool(b bool) *bool { return &b }

// Index returns a pointer to i, for building deltas.
func Index(i uint32) *uint32 { return &i }
