// Package remote accepts pointer events from a browser over a websocket and
// forwards them to the frame pipeline.
package remote

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ripplefx/internal/pipeline"
	"ripplefx/internal/ripple"
)

//go:embed pointer.html
var pointerPage []byte

// Sink receives decoded events. *pipeline.Pipeline satisfies it.
type Sink interface {
	Push(ev pipeline.Event)
}

// Message is one JSON frame from the client.
type Message struct {
	Type string   `json:"type"` // "move", "leave" or "rect"
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	Rect *RectMsg `json:"rect,omitempty"`
}

// RectMsg mirrors a DOMRect.
type RectMsg struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Hello is sent to every client after the upgrade.
type Hello struct {
	Type       string `json:"type"`
	Resolution int    `json:"resolution"`
}

// Events converts m into pipeline events. A move carrying a rect first
// updates the viewport.
func (m Message) Events() ([]pipeline.Event, error) {
	var evs []pipeline.Event
	if m.Rect != nil {
		evs = append(evs, pipeline.Event{
			Kind: pipeline.EventRect,
			Rect: ripple.Rect{Left: m.Rect.Left, Top: m.Rect.Top, Width: m.Rect.Width, Height: m.Rect.Height},
		})
	}
	switch m.Type {
	case "move":
		evs = append(evs, pipeline.Event{Kind: pipeline.EventMove, X: m.X, Y: m.Y})
	case "leave":
		evs = append(evs, pipeline.Event{Kind: pipeline.EventLeave})
	case "rect":
		if m.Rect == nil {
			return nil, errors.New("rect message without rect")
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
	return evs, nil
}

// Server serves the pointer page and the websocket endpoint.
type Server struct {
	sink       Sink
	path       string
	resolution int
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	srv   *http.Server
}

// NewServer returns a server forwarding to sink. path is the websocket route.
func NewServer(sink Sink, path string, resolution int) *Server {
	if path == "" {
		path = "/pointer"
	}
	return &Server{
		sink:       sink,
		path:       path,
		resolution: resolution,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler routes "/" to the pointer page and path to the websocket.
func (s *Server) Handler() http.Handler {
	page := bytes.ReplaceAll(pointerPage, []byte("/pointer`"), []byte(s.path+"`"))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
	mux.HandleFunc(s.path, s.handleWebSocket)
	return mux
}

// Start listens on addr in the background and returns the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pointer feed stopped", "error", err)
		}
	}()
	slog.Info("pointer feed listening", "addr", ln.Addr().String(), "path", s.path)
	return ln.Addr(), nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		// the client vanished; treat it like the pointer leaving
		s.sink.Push(pipeline.Event{Kind: pipeline.EventLeave})
	}()

	if err := conn.WriteJSON(Hello{Type: "hello", Resolution: s.resolution}); err != nil {
		slog.Warn("websocket hello failed", "error", err)
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		evs, err := msg.Events()
		if err != nil {
			slog.Debug("ignoring pointer message", "error", err)
			continue
		}
		for _, ev := range evs {
			s.sink.Push(ev)
		}
	}
}

// Close stops the listener and drops every client.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
