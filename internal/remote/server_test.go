package remote

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ripplefx/internal/pipeline"
	"ripplefx/internal/ripple"
)

type chanSink struct {
	mu     sync.Mutex
	events []pipeline.Event
	notify chan struct{}
}

func newChanSink() *chanSink {
	return &chanSink{notify: make(chan struct{}, 64)}
}

func (c *chanSink) Push(ev pipeline.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *chanSink) waitFor(t *testing.T, n int) []pipeline.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.events) >= n {
			evs := append([]pipeline.Event(nil), c.events...)
			c.mu.Unlock()
			return evs
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	return conn
}

func TestMessageEvents(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		kinds   []pipeline.EventKind
		wantErr bool
	}{
		{"move", Message{Type: "move", X: 1, Y: 2}, []pipeline.EventKind{pipeline.EventMove}, false},
		{"move with rect", Message{Type: "move", Rect: &RectMsg{Width: 10, Height: 10}}, []pipeline.EventKind{pipeline.EventRect, pipeline.EventMove}, false},
		{"leave", Message{Type: "leave"}, []pipeline.EventKind{pipeline.EventLeave}, false},
		{"rect", Message{Type: "rect", Rect: &RectMsg{Width: 1, Height: 1}}, []pipeline.EventKind{pipeline.EventRect}, false},
		{"rect missing", Message{Type: "rect"}, nil, true},
		{"unknown", Message{Type: "click"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evs, err := tt.msg.Events()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if len(evs) != len(tt.kinds) {
				t.Fatalf("expected %d events, got %d", len(tt.kinds), len(evs))
			}
			for i, k := range tt.kinds {
				if evs[i].Kind != k {
					t.Errorf("event %d: expected kind %d, got %d", i, k, evs[i].Kind)
				}
			}
		})
	}
}

func TestWebSocketForwardsEvents(t *testing.T) {
	sink := newChanSink()
	s := NewServer(sink, "/pointer", 256)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/pointer")
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if hello.Resolution != 256 {
		t.Errorf("expected resolution 256, got %d", hello.Resolution)
	}

	msgs := []Message{
		{Type: "move", X: 30, Y: 40, Rect: &RectMsg{Left: 10, Top: 20, Width: 100, Height: 50}},
		{Type: "bogus"},
		{Type: "leave"},
	}
	for _, m := range msgs {
		if err := conn.WriteJSON(m); err != nil {
			t.Fatalf("writing message: %v", err)
		}
	}

	evs := sink.waitFor(t, 3)
	if evs[0].Kind != pipeline.EventRect || evs[0].Rect != (ripple.Rect{Left: 10, Top: 20, Width: 100, Height: 50}) {
		t.Errorf("unexpected rect event %+v", evs[0])
	}
	if evs[1].Kind != pipeline.EventMove || evs[1].X != 30 || evs[1].Y != 40 {
		t.Errorf("unexpected move event %+v", evs[1])
	}
	if evs[2].Kind != pipeline.EventLeave {
		t.Errorf("expected leave, got %+v", evs[2])
	}

	conn.Close()
	// disconnecting counts as leaving
	evs = sink.waitFor(t, 4)
	if evs[3].Kind != pipeline.EventLeave {
		t.Errorf("expected leave on disconnect, got %+v", evs[3])
	}
}

func TestPointerPageUsesConfiguredPath(t *testing.T) {
	s := NewServer(newChanSink(), "/feed", 8)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("fetching page: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/feed`") {
		t.Error("expected the page to connect to /feed")
	}

	missing, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("fetching missing page: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.StatusCode)
	}
}

func TestPipelineReceivesRemoteMoves(t *testing.T) {
	stage, err := ripple.NewStage(16, ripple.NewCPUStepper(1))
	if err != nil {
		t.Fatalf("creating stage: %v", err)
	}
	p := pipeline.New(stage, pipeline.NewCPUCompositor(1), ripple.Rect{}, pipeline.Options{})
	defer p.Close()

	sink := newChanSink()
	s := NewServer(teeSink{p, sink}, "/pointer", 16)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/pointer")
	defer conn.Close()
	var hello Hello
	conn.ReadJSON(&hello)
	conn.WriteJSON(Message{Type: "move", X: 50, Y: 50, Rect: &RectMsg{Width: 100, Height: 100}})
	sink.waitFor(t, 2)

	if _, err := p.Frame(ripple.Params{Viscosity: 1, Decay: 1}); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !p.Tracker().Inside() {
		t.Error("expected the remote move to land inside the viewport")
	}
}

type teeSink struct {
	a, b Sink
}

func (t teeSink) Push(ev pipeline.Event) {
	t.a.Push(ev)
	t.b.Push(ev)
}
