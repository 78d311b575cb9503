package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/dshills/dapviz/internal/config"
	"github.com/dshills/dapviz/internal/debug"
	"github.com/dshills/dapviz/internal/debug/heap"
	"github.com/dshills/dapviz/internal/debug/policy"
)

type watchOptions struct {
	json           bool
	color          string
	reconnectDelay time.Duration
	watchConfig    bool
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var wo watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect and print the program model on every change",
		Long: `Connect to the bridge and print a summary of the program model each time
it changes: connection state, then per thread the active location and the
shape of its heap graph. Exits when the connection drops unless
--reconnect-delay is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, wo, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&wo.json, "json", false, "Print each update as JSON")
	cmd.Flags().StringVar(&wo.color, "color", "auto", "Colorize JSON: auto, always, never")
	cmd.Flags().DurationVar(&wo.reconnectDelay, "reconnect-delay", 0, "Reconnect after this delay when the connection drops (0 exits)")
	cmd.Flags().BoolVar(&wo.watchConfig, "watch-config", false, "Reload filter, classifier and graph settings when the config file changes")
	return cmd
}

func runWatch(ctx context.Context, opts *globalOptions, wo watchOptions, out io.Writer) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, err := opts.logger(cfg)
	if err != nil {
		return err
	}
	sc, err := debug.SessionConfigFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	s := debug.NewSession(sc)
	defer s.Close()

	if wo.watchConfig {
		if opts.configPath == "" {
			return errors.New("--watch-config needs --config")
		}
		w, err := config.Watch(opts.configPath, cfg, func(next config.Config, changed []string) {
			applyConfig(s, next, logger)
		}, config.WithWatchLogger(logger))
		if err != nil {
			return err
		}
		defer w.Close()
	}

	p := &printer{out: out, json: wo.json, color: useColor(wo.color, out)}

	var link linkTracker
	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(v debug.View) {
		link.observe(v)
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := s.Connect(ctx); err != nil {
		return err
	}

	var (
		lastGen uint64
		retry   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry:
			retry = nil
			if err := s.Connect(ctx); err != nil {
				return err
			}
			continue
		case <-changed:
		}

		v := s.View()
		if v.Generation == lastGen {
			continue
		}
		lastGen = v.Generation
		if err := p.print(buildReport(s, v)); err != nil {
			return err
		}

		if v.State == debug.StateDisconnected {
			if wo.reconnectDelay <= 0 {
				return link.exitError()
			}
			retry = time.After(wo.reconnectDelay)
		}
	}
}

// linkTracker remembers whether the session ever reached the bridge. It is
// fed from the subscriber, which sees every view, because the print loop
// only samples the latest one and can miss a short-lived connection.
type linkTracker struct {
	online atomic.Bool
}

func (t *linkTracker) observe(v debug.View) {
	if v.State == debug.StateConnected {
		t.online.Store(true)
	}
}

func (t *linkTracker) exitError() error {
	if t.online.Load() {
		return errors.New("connection lost")
	}
	return errors.New("could not connect to the bridge")
}

// applyConfig pushes reloadable settings into a running session. The
// endpoint and reducer only change on the next start.
func applyConfig(s *debug.Session, cfg config.Config, logger *slog.Logger) {
	filter, err := debug.FilterFromConfig(cfg.Filter)
	if err != nil {
		logger.Warn("keeping previous filter", "error", err)
	} else {
		old := s.Filter()
		s.SetFilter(filter)
		if c, ok := old.(interface{ Close() error }); ok {
			c.Close()
		}
	}
	s.SetClassifier(heap.NewClassifier(cfg.Classifier.PrimitiveTypes...))
	s.SetMaxDepth(cfg.Graph.MaxDepth)
}

// useColor resolves the --color flag against whether out is a terminal.
func useColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// report is the printed form of one view.
type report struct {
	State      string         `json:"state"`
	Condition  string         `json:"condition"`
	Conn       string         `json:"conn,omitempty"`
	Generation uint64         `json:"generation"`
	Threads    []threadReport `json:"threads,omitempty"`
}

type threadReport struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	File      string   `json:"file,omitempty"`
	Line      int      `json:"line,omitempty"`
	Roots     []string `json:"roots"`
	Locals    []string `json:"locals"`
	Nodes     int      `json:"nodes"`
	Edges     int      `json:"edges"`
	Heap      int      `json:"heap_values"`
	Stack     int      `json:"stack_values"`
	Truncated bool     `json:"truncated,omitempty"`
}

func buildReport(s *debug.Session, v debug.View) report {
	r := report{
		State:      v.State.String(),
		Condition:  v.Condition().String(),
		Generation: v.Generation,
	}
	if v.State != debug.StateDisconnected {
		r.Conn = v.ConnID.String()
	}
	if !v.HasData() {
		return r
	}

	classifier := s.Classifier()
	for _, t := range v.Program.Threads {
		tr := threadReport{ID: t.ID, Name: t.Name, Roots: []string{}, Locals: []string{}}
		if loc, ok := t.ActiveLocation(); ok {
			tr.File, tr.Line = loc.File, loc.Line
		}

		g, ok := s.GraphFor(v, t.ID)
		if ok {
			for _, root := range g.Roots() {
				tr.Roots = append(tr.Roots, root.Name)
			}
			for _, local := range g.Locals() {
				tr.Locals = append(tr.Locals, local.Name)
			}
			tr.Nodes = len(g.Nodes())
			tr.Edges = len(g.Edges())
			tr.Truncated = g.Walk(func(heap.Step) {})
		}
		for _, variable := range policy.Apply(s.Filter(), t.AllVariables()) {
			if classifier.Classify(variable) == heap.Heap {
				tr.Heap++
			} else {
				tr.Stack++
			}
		}
		r.Threads = append(r.Threads, tr)
	}
	return r
}

type printer struct {
	out   io.Writer
	json  bool
	color bool
}

func (p *printer) print(r report) error {
	if p.json {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		data = pretty.Pretty(data)
		if p.color {
			data = pretty.Color(data, nil)
		}
		_, err = p.out.Write(data)
		return err
	}

	fmt.Fprintf(p.out, "[%d] %s: %s\n", r.Generation, r.State, r.Condition)
	for _, t := range r.Threads {
		loc := "?"
		if t.File != "" {
			loc = fmt.Sprintf("%s:%d", t.File, t.Line)
		}
		fmt.Fprintf(p.out, "  thread %d %s at %s roots=%d locals=%d nodes=%d edges=%d heap=%d stack=%d",
			t.ID, t.Name, loc, len(t.Roots), len(t.Locals), t.Nodes, t.Edges, t.Heap, t.Stack)
		if t.Truncated {
			fmt.Fprint(p.out, " truncated")
		}
		fmt.Fprintln(p.out)
	}
	return nil
}
