// Package eventfeed streams playback and selection events to websocket clients.
package eventfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/soundboard/internal/events"
)

const (
	// Path is the websocket endpoint.
	Path = "/events"

	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 4 * 1024
	clientBuffer       = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     allowOrigin,
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// Options configures the hub.
type Options struct {
	// Addr is the listen address. "127.0.0.1:0" picks a free port.
	Addr   string
	Logger *slog.Logger
}

// Hub fans bus events out to every connected client as JSON text frames.
// A client whose buffer fills is disconnected rather than slowing the bus.
type Hub struct {
	opts Options

	mu      sync.Mutex
	clients map[*client]struct{}

	listener  net.Listener
	server    *http.Server
	url       string
	closeOnce sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. It does not listen until Start.
func NewHub(opts Options) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts, clients: make(map[*client]struct{})}
}

// Start listens on the configured address and serves the feed.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("eventfeed: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("eventfeed: listen: %w", err)
	}
	h.listener = ln
	h.url = "ws://" + ln.Addr().String() + Path

	mux := http.NewServeMux()
	mux.HandleFunc(Path, h.ServeHTTP)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			h.logError("event feed server failed", serveErr)
		}
	}()

	h.logInfo("event feed started", "url", h.url)
	return nil
}

// Stop closes every client and shuts the server down. Safe to call repeatedly.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			c.close()
		}
		h.mu.Unlock()

		if h.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(ctx); err != nil {
				stopErr = fmt.Errorf("eventfeed: shutdown: %w", err)
			}
		}
	})
	return stopErr
}

// URL returns the feed URL once started.
func (h *Hub) URL() string {
	return h.url
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish encodes ev and queues it for every client. It never blocks, so it
// is safe to use as a bus listener.
func (h *Hub) Publish(ev events.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logError("encode event failed", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			delete(h.clients, c)
			c.close()
			h.logInfo("event feed client dropped", "reason", "slow consumer")
		}
	}
}

// allowOrigin accepts any origin on loopback connections and only same-origin
// requests on every other interface.
func allowOrigin(r *http.Request) bool {
	if local, ok := r.Context().Value(http.LocalAddrContextKey).(*net.TCPAddr); ok && local.IP.IsLoopback() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP upgrades the request and runs the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logError("websocket upgrade failed", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logInfo("event feed client connected", "remote", conn.RemoteAddr().String())

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages; it exists to process pongs and closes.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logError("event feed read failed", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) logInfo(msg string, args ...any) {
	if h.opts.Logger != nil {
		h.opts.Logger.Info(msg, args...)
	}
}

func (h *Hub) logError(msg string, err error) {
	if h.opts.Logger != nil {
		h.opts.Logger.Warn(msg, "error", err.Error())
	}
}
