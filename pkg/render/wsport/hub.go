package wsport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 4096
)

// Source is the visualizer a Hub serves. [visualizer.Runner] implements it.
type Source interface {
	Query(ctx context.Context, fn func(v *visualizer.Visualizer)) error
	Select(id string)
	Search(pattern string)
}

// Options configures a [Hub].
type Options struct {
	// SendBuffer is the number of frames queued per client before it is
	// dropped. Zero selects 256.
	SendBuffer int
	// AllowedOrigins lists accepted Origin header values. Empty accepts
	// same-host requests only; "*" accepts any origin.
	AllowedOrigins []string
	Logger         *log.Logger
}

// Hub is a render port that broadcasts each cycle to websocket clients.
//
// Port methods and Commit must be called from a single goroutine, the
// visualizer loop. ServeHTTP may be called concurrently.
type Hub struct {
	builder
	src      Source
	logger   *log.Logger
	buffer   int
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// abandoned is set under Hub.mu once ServeHTTP gives up on the client.
	// A queued attach that runs later must not register it.
	abandoned bool
}

// NewHub returns a hub. src may be set later with [Hub.Bind], because the
// hub is usually the port of the visualizer that becomes its source.
func NewHub(opts Options) *Hub {
	h := &Hub{
		logger:  opts.Logger,
		buffer:  opts.SendBuffer,
		clients: make(map[*client]struct{}),
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	if h.buffer <= 0 {
		h.buffer = 256
	}
	origins := slices.Clone(opts.AllowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return checkOrigin(r, origins) },
	}
	return h
}

// Bind sets the visualizer served to clients.
func (h *Hub) Bind(src Source) { h.src = src }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Commit broadcasts the buffered calls as one frame. Empty cycles are not
// sent.
func (h *Hub) Commit(c render.Cycle) error {
	ops := h.take()
	if len(ops) == 0 {
		return nil
	}
	data, err := json.Marshal(Frame{Cycle: c, Ops: ops})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			h.logger.Warn("dropping slow websocket client", "client", cl.id, "cycle", c.Seq)
			h.dropLocked(cl)
		}
	}
	return nil
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		h.dropLocked(cl)
	}
}

func (h *Hub) dropLocked(cl *client) {
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(cl)
}

// ServeHTTP upgrades the request, sends a full frame and then streams
// incremental frames until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		http.Error(w, "visualizer not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	cl := &client{
		id:   uuid.NewString()[:8],
		conn: conn,
		send: make(chan []byte, h.buffer),
	}
	logger := h.logger.With("client", cl.id)

	if err := h.attach(r.Context(), cl); err != nil {
		logger.Warn("websocket attach failed", "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	logger.Info("websocket client connected", "remote", r.RemoteAddr)

	go h.writePump(cl)
	h.readPump(cl, logger)
	logger.Info("websocket client disconnected")
}

// attach queues the client's full frame and registers it on the visualizer
// loop. Query can give up on ctx while the op is still queued, so the client
// is marked abandoned before attach returns an error.
func (h *Hub) attach(ctx context.Context, cl *client) error {
	var attachErr error
	err := h.src.Query(ctx, func(v *visualizer.Visualizer) {
		var snap snapshot
		if attachErr = v.Replay(&snap); attachErr != nil {
			return
		}
		var data []byte
		if data, attachErr = json.Marshal(snap.frame); attachErr != nil {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed || cl.abandoned {
			attachErr = http.ErrServerClosed
			return
		}
		cl.send <- data
		h.clients[cl] = struct{}{}
	})
	if err == nil {
		err = attachErr
	}
	if err != nil {
		h.mu.Lock()
		cl.abandoned = true
		h.dropLocked(cl)
		h.mu.Unlock()
	}
	return err
}

// Command is a message sent by a client.
type Command struct {
	Action  string `json:"action"`
	ID      string `json:"id,omitzero"`
	Pattern string `json:"pattern,omitzero"`
}

func (h *Hub) readPump(cl *client, logger *log.Logger) {
	defer func() {
		h.drop(cl)
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(readLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := cl.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", "err", err)
			}
			return
		}
		switch cmd.Action {
		case "select":
			if err := errs.ValidateNodeID(cmd.ID); err != nil {
				logger.Debug("rejecting select", "err", err)
				continue
			}
			h.src.Select(cmd.ID)
		case "search":
			if err := errs.ValidatePattern(cmd.Pattern); err != nil {
				logger.Debug("rejecting search", "err", err)
				continue
			}
			h.src.Search(cmd.Pattern)
		default:
			logger.Debug("ignoring websocket command", "action", cmd.Action)
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.drop(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(cl)
				return
			}
		}
	}
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
