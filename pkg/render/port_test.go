package render_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/render/rendertest"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

func drive(p render.Port) {
	e := tangle.Edge{From: "a", To: "b"}
	p.AddNode("a")
	p.AddNode("b")
	p.AddEdge(e)
	p.SetNodeStyle("a", style.Style{Color: "#fff", Size: 10})
	p.SetEdgeColor(e, "#000")
	p.RemoveEdge(e)
	p.RemoveNode("b")
}

func TestMultiFansOut(t *testing.T) {
	r1, r2 := rendertest.New(), rendertest.New()
	m := render.Multi(r1, nil, r2)
	drive(m)
	if err := render.Commit(m, render.Cycle{Seq: 1, Reason: "ingest"}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	c1, c2 := r1.Calls(), r2.Calls()
	if len(c1) != 8 || !slices.Equal(c1, c2) {
		t.Errorf("calls differ:\n%v\n%v", c1, c2)
	}
	if v := r1.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
	if got := r1.Nodes(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Nodes() = %v", got)
	}
}

func TestMultiFlattens(t *testing.T) {
	r := rendertest.New()
	m := render.Multi(render.Multi(r), render.Discard)
	m.AddNode("x")
	if got := r.Nodes(); !slices.Equal(got, []string{"x"}) {
		t.Errorf("Nodes() = %v", got)
	}
}

func TestMultiCommitJoinsErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	r1, r2, r3 := rendertest.New(), rendertest.New(), rendertest.New()
	r1.CommitErr = errA
	r3.CommitErr = errB

	err := render.Commit(render.Multi(r1, r2, r3), render.Cycle{Reason: "select"})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Commit() = %v, want both errors", err)
	}
	if len(r2.Cycles()) != 1 {
		t.Error("healthy port was not committed")
	}
}

func TestCommitNonCommitter(t *testing.T) {
	if err := render.Commit(render.Discard, render.Cycle{}); err != nil {
		t.Errorf("Commit(Discard) = %v", err)
	}
	drive(render.Discard)
}
