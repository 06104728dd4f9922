package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/tanglescope/pkg/buildinfo"
	"github.com/matzehuels/tanglescope/pkg/cache"
	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/render/dot"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

// Controller is the visualizer the server drives. [visualizer.Runner]
// implements it.
type Controller interface {
	Snapshot(ctx context.Context) (visualizer.Snapshot, error)
	Stats(ctx context.Context) (visualizer.Stats, error)
	Recent(ctx context.Context, n int) ([]visualizer.NodeView, error)
	Select(id string)
	Search(pattern string)
	SetMaxItems(n int)
	Reset()
}

// Options configures optional endpoints. Nil fields disable the endpoint
// they serve.
type Options struct {
	// Mirror backs /api/graph.dot and /api/graph.svg.
	Mirror *dot.Mirror
	DOT    dot.Options
	// SVGCache stores rendered SVGs. Nil selects a small in-memory cache.
	SVGCache cache.Cache
	// RenderTimeout bounds a single SVG render. Zero selects 30s.
	RenderTimeout time.Duration
	// Stream serves /ws, typically a [wsport.Hub].
	Stream http.Handler
	// Gatherer serves /metrics.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// Server is the HTTP front end. It implements http.Handler.
type Server struct {
	ctl    Controller
	opts   Options
	logger *log.Logger
	router chi.Router
}

const (
	maxBodyBytes  = 16 << 10
	defaultRecent = 20
	maxRecent     = 1000
)

// New builds the router.
func New(ctl Controller, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SVGCache == nil {
		opts.SVGCache = cache.NewMemoryCache(16)
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}
	s := &Server{ctl: ctl, opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.graph)
		r.Delete("/graph", s.reset)
		if opts.Mirror != nil {
			r.Get("/graph.dot", s.graphDOT)
			r.Get("/graph.svg", s.graphSVG)
		}
		r.Get("/stats", s.stats)
		r.Get("/recent", s.recent)
		r.Post("/select", s.selectNode)
		r.Post("/search", s.search)
		r.Put("/max-items", s.maxItems)
	})
	if opts.Stream != nil {
		r.Handle("/ws", opts.Stream)
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return errs.Wrap(errs.ErrCodeUnavailable, err, "listen on %s", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start).Round(time.Microsecond),
			"req", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctl.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.ctl.Reset()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctl.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	n := defaultRecent
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxRecent {
			s.fail(w, r, errs.New(errs.ErrCodeInvalidInput, "n must be an integer between 1 and %d", maxRecent))
			return
		}
		n = v
	}
	nodes, err := s.ctl.Recent(r.Context(), n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []visualizer.NodeView{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) graphDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = io.WriteString(w, dot.ToDOT(s.opts.Mirror.Graph(), s.opts.DOT))
}

func (s *Server) graphSVG(w http.ResponseWriter, r *http.Request) {
	src := dot.ToDOT(s.opts.Mirror.Graph(), s.opts.DOT)
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RenderTimeout)
	defer cancel()

	svg, hit, err := cache.GetOrCompute(ctx, s.opts.SVGCache, cache.Key("svg", src), time.Hour, func() ([]byte, error) {
		return dot.RenderSVG(ctx, src)
	})
	if err != nil {
		s.fail(w, r, errs.Wrap(errs.ErrCodeRenderFailed, err, "render svg"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	_, _ = w.Write(svg)
}

type selectRequest struct {
	ID string `json:"id"`
}

func (s *Server) selectNode(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := errs.ValidateNodeID(req.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ctl.Select(req.ID)
	w.WriteHeader(http.StatusAccepted)
}

type searchRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := errs.ValidatePattern(req.Pattern); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ctl.Search(req.Pattern)
	w.WriteHeader(http.StatusAccepted)
}

type maxItemsRequest struct {
	MaxItems int `json:"max_items"`
}

func (s *Server) maxItems(w http.ResponseWriter, r *http.Request) {
	var req maxItemsRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := errs.ValidateMaxItems(req.MaxItems); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ctl.SetMaxItems(req.MaxItems)
	w.WriteHeader(http.StatusAccepted)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode request body")
	}
	return nil
}

type errorBody struct {
	Error   errs.Code `json:"error"`
	Message string    `json:"message"`
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, visualizer.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch errs.GetCode(err) {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidConfig,
		errs.ErrCodeInvalidPayload, errs.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errs.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrCodeRenderFailed:
		return http.StatusBadGateway
	case errs.ErrCodeUnavailable, errs.ErrCodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
		if status == http.StatusServiceUnavailable {
			code = errs.ErrCodeUnavailable
		} else if status == http.StatusGatewayTimeout {
			code = errs.ErrCodeTimeout
		}
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "req", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, errorBody{Error: code, Message: errs.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
