package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dapviz.toml")
	if err := os.WriteFile(path, []byte("[graph]\nmax_depth = 8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	initial, err := LoadWith(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	type change struct {
		cfg     Config
		changed []string
	}
	changes := make(chan change, 4)
	w, err := Watch(path, initial, func(cfg Config, changed []string) {
		changes <- change{cfg, changed}
	}, WithDebounce(20*time.Millisecond), WithEnviron(nil))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// An invalid file is ignored.
	if err := os.WriteFile(path, []byte("[graph]\nmax_depth = -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("[graph]\nmax_depth = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.cfg.Graph.MaxDepth != 3 {
			t.Errorf("max depth = %d", c.cfg.Graph.MaxDepth)
		}
		if len(c.changed) != 1 || c.changed[0] != "graph.max_depth" {
			t.Errorf("changed = %v", c.changed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	if w.Current().Graph.MaxDepth != 3 {
		t.Error("Current should return the reloaded config")
	}
}

func TestWatchMissingFile(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope.toml"), Default(), nil); err == nil {
		t.Error("expected error")
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dapviz.yaml")
	if err := os.WriteFile(path, []byte("graph:\n  max_depth: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	w, err := Watch(path, Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
