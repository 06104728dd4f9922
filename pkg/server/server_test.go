package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/tanglescope/pkg/cache"
	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/observability"
	"github.com/matzehuels/tanglescope/pkg/render/dot"
	"github.com/matzehuels/tanglescope/pkg/tangle"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snapErr  error
	recentN  int
	snapshot visualizer.Snapshot
}

func (f *fakeController) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeController) Snapshot(context.Context) (visualizer.Snapshot, error) {
	return f.snapshot, f.snapErr
}

func (f *fakeController) Stats(context.Context) (visualizer.Stats, error) {
	return visualizer.Stats{Nodes: 3}, f.snapErr
}

func (f *fakeController) Recent(_ context.Context, n int) ([]visualizer.NodeView, error) {
	f.recentN = n
	return nil, nil
}

func (f *fakeController) Select(id string)      { f.record("select %q", id) }
func (f *fakeController) Search(pattern string) { f.record("search %q", pattern) }
func (f *fakeController) SetMaxItems(n int)     { f.record("max %d", n) }
func (f *fakeController) Reset()                { f.record("reset") }

func quiet() *log.Logger { return log.New(io.Discard) }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMutations(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCall   string
		wantCode   errs.Code
	}{
		{"select", "POST", "/api/select", `{"id":"t1"}`, 202, `select "t1"`, ""},
		{"clear selection", "POST", "/api/select", `{"id":""}`, 202, `select ""`, ""},
		{"select control char", "POST", "/api/select", `{"id":"a\u0001"}`, 400, "", errs.ErrCodeInvalidInput},
		{"select unknown field", "POST", "/api/select", `{"node":"t1"}`, 400, "", errs.ErrCodeInvalidFormat},
		{"select bad json", "POST", "/api/select", `{`, 400, "", errs.ErrCodeInvalidFormat},
		{"search", "POST", "/api/search", `{"pattern":"^ab"}`, 202, `search "^ab"`, ""},
		{"search invalid regex accepted", "POST", "/api/search", `{"pattern":"("}`, 202, `search "("`, ""},
		{"search too long", "POST", "/api/search", `{"pattern":"` + strings.Repeat("a", errs.MaxPatternLength+1) + `"}`, 400, "", errs.ErrCodeInvalidInput},
		{"max items", "PUT", "/api/max-items", `{"max_items":50}`, 202, "max 50", ""},
		{"max items zero", "PUT", "/api/max-items", `{"max_items":0}`, 400, "", errs.ErrCodeInvalidInput},
		{"reset", "DELETE", "/api/graph", "", 202, "reset", ""},
		{"wrong method", "GET", "/api/select", "", 405, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{}
			srv := New(ctl, Options{Logger: quiet()})
			rec := do(t, srv, tt.method, tt.path, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantCall != "" {
				if len(ctl.calls) != 1 || ctl.calls[0] != tt.wantCall {
					t.Errorf("calls = %v, want [%s]", ctl.calls, tt.wantCall)
				}
			} else if len(ctl.calls) != 0 {
				t.Errorf("unexpected calls %v", ctl.calls)
			}
			if tt.wantCode != "" {
				var body errorBody
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body.Error != tt.wantCode {
					t.Errorf("error code = %s, want %s", body.Error, tt.wantCode)
				}
			}
		})
	}
}

func TestRecent(t *testing.T) {
	ctl := &fakeController{}
	srv := New(ctl, Options{Logger: quiet()})

	rec := do(t, srv, "GET", "/api/recent", "")
	if rec.Code != 200 || ctl.recentN != defaultRecent {
		t.Errorf("default: status %d, n %d", rec.Code, ctl.recentN)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty recent should encode as [], got %s", rec.Body)
	}

	rec = do(t, srv, "GET", "/api/recent?n=5", "")
	if rec.Code != 200 || ctl.recentN != 5 {
		t.Errorf("n=5: status %d, n %d", rec.Code, ctl.recentN)
	}
	for _, q := range []string{"0", "x", "100000"} {
		if rec := do(t, srv, "GET", "/api/recent?n="+q, ""); rec.Code != 400 {
			t.Errorf("n=%s: status %d, want 400", q, rec.Code)
		}
	}
}

func TestStoppedController(t *testing.T) {
	ctl := &fakeController{snapErr: visualizer.ErrStopped}
	srv := New(ctl, Options{Logger: quiet()})
	for _, path := range []string{"/api/graph", "/api/stats"} {
		rec := do(t, srv, "GET", path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), string(errs.ErrCodeUnavailable)) {
			t.Errorf("%s body = %s", path, rec.Body)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.New(errs.ErrCodeInvalidInput, "x"), 400},
		{errs.New(errs.ErrCodeNotFound, "x"), 404},
		{errs.New(errs.ErrCodeTimeout, "x"), 504},
		{errs.New(errs.ErrCodeNetwork, "x"), 503},
		{errs.New(errs.ErrCodeRenderFailed, "x"), 502},
		{errs.Wrap(errs.ErrCodeRenderFailed, errors.New("layout"), "render svg"), 502},
		{fmt.Errorf("wrapped: %w", visualizer.ErrStopped), 503},
		{context.DeadlineExceeded, 504},
		{errors.New("plain"), 500},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := New(&fakeController{}, Options{Logger: quiet()})
	rec := do(t, srv, "GET", "/healthz", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
}

func TestOptionalEndpointsDisabled(t *testing.T) {
	srv := New(&fakeController{}, Options{Logger: quiet()})
	for _, path := range []string{"/api/graph.dot", "/api/graph.svg", "/ws", "/metrics"} {
		if rec := do(t, srv, "GET", path, ""); rec.Code != 404 {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

// startLive wires a real runner, DOT mirror and Prometheus hooks.
func startLive(t *testing.T) (*Server, *visualizer.Runner, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	mirror := dot.NewMirror()
	r := visualizer.NewRunner(visualizer.New(mirror, visualizer.Options{
		MaxItems: 100,
		Logger:   quiet(),
		Hooks:    observability.NewPrometheus(reg),
	}), visualizer.RunnerOptions{SearchDebounce: -1})
	r.Start(context.Background())
	t.Cleanup(r.Stop)

	srv := New(r, Options{
		Mirror:   mirror,
		Gatherer: reg,
		SVGCache: cache.NewMemoryCache(4),
		Logger:   quiet(),
	})
	return srv, r, reg
}

func TestLiveGraph(t *testing.T) {
	srv, r, _ := startLive(t)
	r.PushItems([]tangle.Payload{{ID: "t1"}, {ID: "t2", ParentIDs: []string{"t1"}}})

	if rec := do(t, srv, "POST", "/api/select", `{"id":"t2"}`); rec.Code != 202 {
		t.Fatalf("select status %d", rec.Code)
	}

	rec := do(t, srv, "GET", "/api/graph", "")
	if rec.Code != 200 {
		t.Fatalf("graph status %d: %s", rec.Code, rec.Body)
	}
	var snap visualizer.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 || snap.Selected != "t2" {
		t.Errorf("snapshot = %+v", snap)
	}

	rec = do(t, srv, "GET", "/api/graph.dot", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"t1" -> "t2"`) {
		t.Errorf("dot = %d %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("dot content type = %q", ct)
	}

	if rec := do(t, srv, "DELETE", "/api/graph", ""); rec.Code != 202 {
		t.Fatalf("reset status %d", rec.Code)
	}
	st, err := r.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Nodes != 0 {
		t.Errorf("nodes after reset = %d", st.Nodes)
	}
}

func TestLiveMetrics(t *testing.T) {
	srv, r, _ := startLive(t)
	r.PushItems([]tangle.Payload{{ID: "t1"}})
	if _, err := r.Stats(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := do(t, srv, "GET", "/metrics", "")
	if rec.Code != 200 {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tanglescope_") {
		t.Errorf("metrics body missing tanglescope_ series:\n%s", rec.Body)
	}
}

func TestLiveSVG(t *testing.T) {
	if testing.Short() {
		t.Skip("graphviz rendering is slow")
	}
	srv, r, _ := startLive(t)
	r.PushItems([]tangle.Payload{{ID: "t1"}, {ID: "t2", ParentIDs: []string{"t1"}}})
	if _, err := r.Stats(context.Background()); err != nil {
		t.Fatal(err)
	}

	first := do(t, srv, "GET", "/api/graph.svg", "")
	if first.Code != 200 || !strings.Contains(first.Body.String(), "<svg") {
		t.Fatalf("svg = %d %.200s", first.Code, first.Body)
	}
	if first.Header().Get("X-Cache") != "miss" {
		t.Errorf("first render X-Cache = %q", first.Header().Get("X-Cache"))
	}
	second := do(t, srv, "GET", "/api/graph.svg", "")
	if second.Header().Get("X-Cache") != "hit" {
		t.Errorf("second render X-Cache = %q", second.Header().Get("X-Cache"))
	}
}
