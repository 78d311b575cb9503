package main

import (
	"strings"
	"testing"
	"time"

	"github.com/dshills/dapviz/internal/debug"
)

func TestLinkTracker(t *testing.T) {
	var never linkTracker
	never.observe(debug.View{State: debug.StateConnecting})
	never.observe(debug.View{State: debug.StateDisconnected})
	if err := never.exitError(); err == nil || !strings.Contains(err.Error(), "could not connect") {
		t.Errorf("unexpected error %v", err)
	}

	// A connect the print loop never samples still counts.
	var brief linkTracker
	for _, st := range []debug.ConnState{debug.StateConnecting, debug.StateConnected, debug.StateDisconnected} {
		brief.observe(debug.View{State: st})
	}
	if err := brief.exitError(); err == nil || err.Error() != "connection lost" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestWatchCommandShortConnection(t *testing.T) {
	url := bridge(t, nil, time.Millisecond)

	code, _, errOut := execute("watch", "--url", url, "--json", "--color", "never", "--log-level", "error")
	if code == 0 {
		t.Fatal("watch should fail once the connection is lost")
	}
	if !strings.Contains(errOut, "connection lost") {
		t.Errorf("stderr = %q", errOut)
	}
}
