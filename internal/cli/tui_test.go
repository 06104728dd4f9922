package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

type fakeController struct {
	stats    visualizer.Stats
	recent   []visualizer.NodeView
	err      error
	selected []string
	searches []string
}

func (f *fakeController) Stats(context.Context) (visualizer.Stats, error) { return f.stats, f.err }

func (f *fakeController) Recent(_ context.Context, n int) ([]visualizer.NodeView, error) {
	return f.recent[:min(n, len(f.recent))], f.err
}

func (f *fakeController) Select(id string)      { f.selected = append(f.selected, id) }
func (f *fakeController) Search(pattern string) { f.searches = append(f.searches, pattern) }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// send applies msg and returns the updated model.
func send(t *testing.T, m watchModel, msg tea.Msg) watchModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(watchModel)
}

func refreshed(t *testing.T, m watchModel) watchModel {
	t.Helper()
	return send(t, m, m.refresh()())
}

func newTestModel(t *testing.T) (watchModel, *fakeController) {
	t.Helper()
	ctl := &fakeController{
		stats: visualizer.Stats{Nodes: 3, Edges: 2, MaxItems: 5000},
		recent: []visualizer.NodeView{
			{ID: "tx3", State: "pending", Parents: []string{"tx2"}},
			{ID: "tx2", State: "confirmed_value", Value: 7, Parents: []string{"tx1"}},
			{ID: "tx1", State: "milestone"},
		},
	}
	m := refreshed(t, newWatchModel(context.Background(), ctl, nil))
	return m, ctl
}

func TestWatchModelSelect(t *testing.T) {
	m, ctl := newTestModel(t)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, runes("j"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown}) // stays on the last row
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want 2", m.cursor)
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = send(t, m, runes("x"))

	want := []string{"tx1", ""}
	if strings.Join(ctl.selected, ",") != strings.Join(want, ",") {
		t.Errorf("selections = %q, want %q", ctl.selected, want)
	}
}

func TestWatchModelSearch(t *testing.T) {
	m, ctl := newTestModel(t)

	m = send(t, m, runes("/"))
	if !m.search.Focused() {
		t.Fatal("/ should focus the search box")
	}
	m = send(t, m, runes("t"))
	m = send(t, m, runes("x"))
	m = send(t, m, runes("q")) // typed into the box, does not quit
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	want := []string{"t", "tx", "txq", ""}
	if strings.Join(ctl.searches, "|") != strings.Join(want, "|") {
		t.Errorf("searches = %q, want %q", ctl.searches, want)
	}
	if m.search.Focused() || m.search.Value() != "" {
		t.Error("esc should blur and clear the search box")
	}
	if len(ctl.selected) != 0 {
		t.Errorf("keys typed into the search box changed the selection: %q", ctl.selected)
	}
}

func TestWatchModelView(t *testing.T) {
	m, ctl := newTestModel(t)
	ctl.stats.Selected = "tx2"
	ctl.stats.ConeEdges = 1
	m = refreshed(t, m)
	m = send(t, m, feedDoneMsg{})

	view := m.View()
	for _, want := range []string{"3/5000 nodes", "tx3", "confirmed_value", "7", "selected tx2", "1 cone edges", "feed finished"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	ctl.err = errors.New("runner stopped")
	m = refreshed(t, m)
	if !strings.Contains(m.View(), "runner stopped") {
		t.Error("view should show refresh errors")
	}
	if len(m.recent) != 3 {
		t.Error("a failed refresh should keep the last rows")
	}
}

func TestWatchModelQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("tx1"); got != "tx1" {
		t.Errorf("shortID(tx1) = %q", got)
	}
	long := strings.Repeat("a", 8) + strings.Repeat("b", 50) + "cccccc"
	if got := shortID(long); got != "aaaaaaaa…cccccc" {
		t.Errorf("shortID(long) = %q", got)
	}
}
