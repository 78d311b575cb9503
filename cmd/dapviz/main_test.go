package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const snapshot = `{"threads":[{"id":1,"name":"main","stack_frames":[
 {"file":"main.c","line":7,"function":"main","scopes":[{"variables":[
  {"parent":null,"reference":0,"name":"n","value":"3","type":"int"},
  {"parent":null,"reference":4,"name":"head","value":"0x10","type":"Node*"},
  {"parent":4,"reference":0,"name":"val","value":"1","type":"int"},
  {"parent":4,"reference":4,"name":"next","value":"0x10","type":"Node*"}
 ]}]}]}]}`

// bridge serves one snapshot, forwards binary frames to got and hangs up
// after the first frame or after hangup elapses.
func bridge(t *testing.T, got chan<- []byte, hangup time.Duration) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(snapshot))
		if hangup > 0 {
			time.Sleep(hangup)
			return
		}
		_, data, err := conn.ReadMessage()
		if err == nil && got != nil {
			got <- data
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"encode", "step", "42"}, "2a0000000000000001\n"},
		{[]string{"encode", "step-in", "1"}, "010000000000000002\n"},
		{[]string{"encode", "out", "--", "-1"}, "ffffffffffffffff03\n"},
	}

	for _, tt := range tests {
		code, out, errOut := execute(tt.args...)
		if code != 0 || out != tt.want {
			t.Errorf("%v: code %d out %q err %q", tt.args, code, out, errOut)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	for _, args := range [][]string{
		{"encode", "jump", "1"},
		{"encode", "step", "one"},
		{"encode", "step"},
	} {
		if code, _, _ := execute(args...); code == 0 {
			t.Errorf("%v: expected failure", args)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	code, out, _ := execute("decode", "0x2a0000000000000003")
	if code != 0 || out != "step-out thread=42\n" {
		t.Errorf("code %d out %q", code, out)
	}

	if code, _, _ := execute("decode", "2a00"); code == 0 {
		t.Error("short frame should fail")
	}
	if code, _, _ := execute("decode", "zz"); code == 0 {
		t.Error("bad hex should fail")
	}
}

func TestStepCommand(t *testing.T) {
	got := make(chan []byte, 1)
	url := bridge(t, got, 0)

	code, out, errOut := execute("step-in", "--url", url, "--thread", "9", "--log-level", "error")
	if code != 0 {
		t.Fatalf("code %d, stderr %q", code, errOut)
	}
	if out != "sent step-in thread=9\n" {
		t.Errorf("out = %q", out)
	}

	select {
	case frame := <-got:
		want := []byte{9, 0, 0, 0, 0, 0, 0, 0, 2}
		if !bytes.Equal(frame, want) {
			t.Errorf("frame = %v, want %v", frame, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge received nothing")
	}
}

func TestStepCommandUnreachable(t *testing.T) {
	code, _, errOut := execute("step", "--url", "ws://127.0.0.1:1/api/events", "--timeout", "2s", "--log-level", "error")
	if code == 0 {
		t.Fatal("expected failure")
	}
	if !strings.Contains(errOut, "could not connect") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestWatchCommandJSON(t *testing.T) {
	url := bridge(t, nil, 200*time.Millisecond)

	code, out, errOut := execute("watch", "--url", url, "--json", "--color", "never", "--log-level", "error")
	if code == 0 {
		t.Fatal("watch should fail once the connection is lost")
	}
	if !strings.Contains(errOut, "connection lost") {
		t.Errorf("stderr = %q", errOut)
	}
	for _, want := range []string{`"condition": "has data"`, `"roots": ["head"]`, `"locals": ["n"]`, `"state": "disconnected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestWatchCommandText(t *testing.T) {
	url := bridge(t, nil, 200*time.Millisecond)

	_, out, _ := execute("watch", "--url", url, "--log-level", "error")
	if !strings.Contains(out, "thread 1 main at main.c:7 roots=1 locals=1 nodes=1 edges=1 heap=2 stack=2") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestInvalidConfigFlag(t *testing.T) {
	code, _, errOut := execute("watch", "--url", "http://nope", "--log-level", "error")
	if code == 0 || !strings.Contains(errOut, "endpoint.url") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}
}
