package debug

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/dapviz/internal/debug/command"
	"github.com/dshills/dapviz/internal/debug/wire"
)

// TestSessionOverWebSocket runs a session against a real WebSocket bridge
// that pushes one snapshot and records the command frames it receives.
func TestSessionOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan []byte, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wire.DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(snapshotJSON)); err != nil {
			return
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				frames <- data
				// Drop the connection once a command arrives.
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + wire.DefaultPath
	s := NewSession(DefaultSessionConfig(url))
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	v := waitFor(t, s, "data", hasData)
	if len(v.Program.Threads) != 1 || v.Program.Threads[0].Name != "main" {
		t.Fatalf("unexpected program %+v", v.Program)
	}

	if !s.Sender().StepOut(1) {
		t.Fatal("send failed")
	}
	select {
	case got := <-frames:
		action, thread, err := command.Decode(got)
		if err != nil || action != command.StepOut || thread != 1 {
			t.Errorf("bridge decoded %v %d %v", action, thread, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge received no frame")
	}

	waitFor(t, s, "disconnected", func(v View) bool { return v.State == StateDisconnected })
}
