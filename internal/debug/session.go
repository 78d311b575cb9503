package debug

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/dapviz/internal/config"
	"github.com/dshills/dapviz/internal/debug/heap"
	"github.com/dshills/dapviz/internal/debug/policy"
	"github.com/dshills/dapviz/internal/debug/program"
	"github.com/dshills/dapviz/internal/debug/wire"
	"github.com/dshills/dapviz/internal/logging"
)

// ErrSessionClosed is returned by Connect after Close.
var ErrSessionClosed = errors.New("session closed")

// DefaultEventBuffer is the transport event channel capacity.
const DefaultEventBuffer = 64

// ConnState is the connection state of a session.
type ConnState int32

const (
	// StateDisconnected means there is no connection.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateConnected means the transport is open.
	StateConnected
)

// String returns a string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Condition is what a consumer can show for a View.
type Condition int

const (
	// NotConnected covers Disconnected and Connecting.
	NotConnected Condition = iota
	// AwaitingData means connected with no program state yet.
	AwaitingData
	// HasData means connected with a program state, possibly empty.
	HasData
)

// String returns a string representation of the condition.
func (c Condition) String() string {
	switch c {
	case NotConnected:
		return "not connected"
	case AwaitingData:
		return "awaiting data"
	case HasData:
		return "has data"
	default:
		return "unknown"
	}
}

// View is an immutable snapshot of a session.
type View struct {
	State ConnState
	// ConnID identifies the connection attempt; zero when disconnected.
	ConnID uuid.UUID
	// Program is nil when absent. An absent state differs from a present
	// state with no threads.
	Program *program.ProgramState
	// Generation increases with every published View.
	Generation uint64
}

// HasData reports whether the session is connected and holds program state.
func (v View) HasData() bool {
	return v.State == StateConnected && v.Program != nil
}

// Condition classifies the view into the three observable conditions.
func (v View) Condition() Condition {
	switch {
	case v.State != StateConnected:
		return NotConnected
	case v.Program == nil:
		return AwaitingData
	default:
		return HasData
	}
}

// Stats are running counters for a session.
type Stats struct {
	Connects         uint64
	Disconnects      uint64
	MessagesApplied  uint64
	MessagesRetained uint64
	MessagesIgnored  uint64
	MessagesDropped  uint64
	StaleEvents      uint64
	FramesSent       uint64
	FramesDropped    uint64
}

type counters struct {
	connects      atomic.Uint64
	disconnects   atomic.Uint64
	applied       atomic.Uint64
	retained      atomic.Uint64
	ignored       atomic.Uint64
	dropped       atomic.Uint64
	stale         atomic.Uint64
	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// URL is the bridge endpoint, for example ws://localhost:8080/api/events.
	URL string

	// Dialer opens connections. Defaults to wire.WebSocketDialer.
	Dialer wire.Dialer

	// Reducer applies inbound messages. Defaults to program.NewReducer().
	Reducer *program.Reducer

	// Classifier separates stack values from heap values.
	Classifier *heap.Classifier

	// Filter selects the variables Graph builds from. Nil keeps all.
	Filter policy.Filter

	// MaxDepth bounds graph walks. Zero uses heap.DefaultMaxDepth.
	MaxDepth int

	// Logger receives session diagnostics. Nil discards them.
	Logger *slog.Logger

	// EventBuffer is the transport event channel capacity.
	EventBuffer int
}

// DefaultSessionConfig returns a configuration for url with default
// collaborators.
func DefaultSessionConfig(url string) SessionConfig {
	return SessionConfig{
		URL:         url,
		Dialer:      wire.WebSocketDialer{},
		Reducer:     program.NewReducer(),
		Classifier:  heap.NewClassifier(),
		Filter:      policy.KeepAll,
		MaxDepth:    heap.DefaultMaxDepth,
		EventBuffer: DefaultEventBuffer,
	}
}

// connection is one connect attempt and, once open, its transport.
type connection struct {
	id        uuid.UUID
	cancel    context.CancelFunc
	transport *wire.Transport
	sender    *Sender
}

// Session is the connection state machine and the owner of program state.
// It is the only type other layers interact with.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	view atomic.Pointer[View]

	// mu serializes commits to view and guards conn and closed.
	mu     sync.Mutex
	conn   *connection
	closed bool
	gen    uint64

	filter     atomic.Pointer[filterBox]
	classifier atomic.Pointer[heap.Classifier]
	maxDepth   atomic.Int64

	subsMu  sync.RWMutex
	subs    map[uint64]func(View)
	nextSub uint64

	stats counters

	events   chan wire.Event
	done     chan struct{}
	loopDone chan struct{}
	dials    sync.WaitGroup
	closeMu  sync.Mutex
}

type filterBox struct{ f policy.Filter }

// NewSession creates a disconnected session and starts its event loop.
func NewSession(cfg SessionConfig) *Session {
	def := DefaultSessionConfig(cfg.URL)
	if cfg.Dialer == nil {
		cfg.Dialer = def.Dialer
	}
	if cfg.Reducer == nil {
		cfg.Reducer = def.Reducer
	}
	if cfg.Classifier == nil {
		cfg.Classifier = def.Classifier
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}

	s := &Session{
		cfg:      cfg,
		logger:   logging.WithComponent(cfg.Logger, "session"),
		subs:     make(map[uint64]func(View)),
		events:   make(chan wire.Event, cfg.EventBuffer),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	s.view.Store(&View{State: StateDisconnected})
	s.SetFilter(cfg.Filter)
	s.SetClassifier(cfg.Classifier)
	s.SetMaxDepth(cfg.MaxDepth)

	go s.loop()
	return s
}

// View returns the current snapshot without blocking.
func (s *Session) View() View {
	return *s.view.Load()
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	return s.view.Load().State
}

// Connect starts connecting in the background. It is a no-op while
// connecting or connected. ctx bounds the dial only.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}

	dialCtx, cancel := context.WithCancel(ctx)
	c := &connection{id: uuid.New(), cancel: cancel}
	s.conn = c
	v := s.commitLocked(View{State: StateConnecting, ConnID: c.id})
	s.dials.Add(1)
	s.mu.Unlock()

	s.stats.connects.Add(1)
	s.logger.Info("connecting", "url", s.cfg.URL, "conn", c.id)
	s.notify(v)

	go func() {
		defer s.dials.Done()
		wire.Open(dialCtx, s.cfg.Dialer, s.cfg.URL, c.id, s.events, s.done)
	}()
	return nil
}

// Disconnect drops the current connection, discards program state and
// invalidates the Sender before returning. It is a no-op when disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	c := s.conn
	if c == nil {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	v := s.commitLocked(View{State: StateDisconnected})
	s.mu.Unlock()

	s.teardown(c)
	s.stats.disconnects.Add(1)
	s.logger.Info("disconnected", "conn", c.id, "reason", "local")
	s.notify(v)
}

// Close disconnects and stops the event loop. Connect fails afterwards.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Disconnect()
	close(s.done)
	<-s.loopDone
	s.drain()

	if c, ok := s.Filter().(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Sender returns the send capability of the open connection, or nil.
func (s *Session) Sender() *Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.sender
}

// Subscribe registers fn to run after every published View. fn runs on the
// goroutine that committed the change and must not block. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(View)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// SetFilter replaces the variable filter used by Graph. Nil keeps all.
func (s *Session) SetFilter(f policy.Filter) {
	if f == nil {
		f = policy.KeepAll
	}
	s.filter.Store(&filterBox{f})
}

// Filter returns the variable filter used by Graph.
func (s *Session) Filter() policy.Filter {
	return s.filter.Load().f
}

// SetClassifier replaces the classifier. Nil restores the defaults.
func (s *Session) SetClassifier(c *heap.Classifier) {
	if c == nil {
		c = heap.NewClassifier()
	}
	s.classifier.Store(c)
}

// Classifier returns the current classifier.
func (s *Session) Classifier() *heap.Classifier {
	return s.classifier.Load()
}

// SetMaxDepth bounds graph walks. Values below one restore the default.
func (s *Session) SetMaxDepth(depth int) {
	if depth <= 0 {
		depth = heap.DefaultMaxDepth
	}
	s.maxDepth.Store(int64(depth))
}

// Classify reports whether v is a stack or heap value.
func (s *Session) Classify(v program.Variable) heap.Kind {
	return s.Classifier().Classify(v)
}

// ActiveLocation returns the top frame location of a thread in the current
// state.
func (s *Session) ActiveLocation(threadID int64) (program.Location, bool) {
	v := s.View()
	if !v.HasData() {
		return program.Location{}, false
	}
	t, ok := v.Program.Thread(threadID)
	if !ok {
		return program.Location{}, false
	}
	return t.ActiveLocation()
}

// Graph builds the heap graph of a thread in the current state, after the
// filter has been applied.
func (s *Session) Graph(threadID int64) (*heap.Graph, bool) {
	return s.GraphFor(s.View(), threadID)
}

// GraphFor is Graph for a view obtained earlier, such as one delivered to
// a subscriber.
func (s *Session) GraphFor(v View, threadID int64) (*heap.Graph, bool) {
	if !v.HasData() {
		return nil, false
	}
	t, ok := v.Program.Thread(threadID)
	if !ok {
		return nil, false
	}
	vars := policy.Apply(s.Filter(), t.AllVariables())
	return heap.Build(vars, heap.WithMaxDepth(int(s.maxDepth.Load()))), true
}

// Stats returns a copy of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Connects:         s.stats.connects.Load(),
		Disconnects:      s.stats.disconnects.Load(),
		MessagesApplied:  s.stats.applied.Load(),
		MessagesRetained: s.stats.retained.Load(),
		MessagesIgnored:  s.stats.ignored.Load(),
		MessagesDropped:  s.stats.dropped.Load(),
		StaleEvents:      s.stats.stale.Load(),
		FramesSent:       s.stats.framesSent.Load(),
		FramesDropped:    s.stats.framesDropped.Load(),
	}
}

// loop is the only reader of transport events.
func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev wire.Event) {
	switch ev.Kind {
	case wire.EventOpen:
		s.onOpen(ev)
	case wire.EventMessage:
		s.onMessage(ev)
	case wire.EventClose:
		s.onClose(ev)
	}
}

func (s *Session) onOpen(ev wire.Event) {
	s.mu.Lock()
	c := s.conn
	if c == nil || c.id != ev.ConnID || c.transport != nil {
		s.mu.Unlock()
		s.stats.stale.Add(1)
		ev.Transport.Close()
		return
	}
	c.transport = ev.Transport
	c.sender = &Sender{session: s, connID: c.id, transport: ev.Transport}
	v := s.commitLocked(View{State: StateConnected, ConnID: c.id})
	s.mu.Unlock()

	s.logger.Info("connected", "url", s.cfg.URL, "conn", c.id)
	s.notify(v)
}

func (s *Session) onMessage(ev wire.Event) {
	prev := s.view.Load()
	if prev.State != StateConnected || prev.ConnID != ev.ConnID {
		s.stats.stale.Add(1)
		return
	}

	next, msg, outcome, err := s.cfg.Reducer.Apply(prev.Program, ev.Data)
	switch outcome {
	case program.OutcomeDropped:
		s.stats.dropped.Add(1)
		s.logger.Warn("dropped malformed message", "conn", ev.ConnID, "bytes", len(ev.Data), "error", err)
		return
	case program.OutcomeIgnored:
		s.stats.ignored.Add(1)
		s.logger.Debug("ignored message", "kind", msg.Kind())
		return
	case program.OutcomeRetained:
		s.stats.retained.Add(1)
		if u, ok := msg.(program.UnsuccessfulResponse); ok {
			s.logger.Warn("unsuccessful response, keeping state", "command", u.Command, "message", u.Message)
		}
		return
	}

	s.mu.Lock()
	if s.conn == nil || s.conn.id != ev.ConnID {
		s.mu.Unlock()
		s.stats.stale.Add(1)
		return
	}
	v := s.commitLocked(View{State: StateConnected, ConnID: ev.ConnID, Program: next})
	s.mu.Unlock()

	s.stats.applied.Add(1)
	if outcome == program.OutcomeCleared {
		s.logger.Warn("unsuccessful response, state cleared", "kind", msg.Kind())
	} else {
		s.logger.Debug("state replaced", "kind", msg.Kind(), "threads", len(next.Threads))
	}
	s.notify(v)
}

func (s *Session) onClose(ev wire.Event) {
	s.mu.Lock()
	c := s.conn
	if c == nil || c.id != ev.ConnID {
		s.mu.Unlock()
		s.stats.stale.Add(1)
		return
	}
	s.conn = nil
	v := s.commitLocked(View{State: StateDisconnected})
	s.mu.Unlock()

	s.teardown(c)
	s.stats.disconnects.Add(1)
	if ev.Err != nil {
		s.logger.Warn("connection lost", "conn", c.id, "error", ev.Err)
	} else {
		s.logger.Info("disconnected", "conn", c.id, "reason", "remote")
	}
	s.notify(v)
}

// commitLocked publishes v with the next generation. s.mu must be held.
func (s *Session) commitLocked(v View) View {
	s.gen++
	v.Generation = s.gen
	s.view.Store(&v)
	return v
}

func (s *Session) teardown(c *connection) {
	c.cancel()
	if c.transport != nil {
		c.transport.Close()
	}
}

// drain closes transports whose open event was never handled, until every
// dial goroutine has returned.
func (s *Session) drain() {
	finished := make(chan struct{})
	go func() {
		s.dials.Wait()
		close(finished)
	}()
	for {
		select {
		case ev := <-s.events:
			if ev.Kind == wire.EventOpen && ev.Transport != nil {
				ev.Transport.Close()
			}
		case <-finished:
			return
		}
	}
}

func (s *Session) notify(v View) {
	s.subsMu.RLock()
	fns := make([]func(View), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		s.safeCall(fn, v)
	}
}

func (s *Session) safeCall(fn func(View), v View) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "panic", r)
		}
	}()
	fn(v)
}

// SessionConfigFromConfig builds session collaborators from loaded
// settings. The returned filter may own a Lua state; Session.Close
// releases it.
func SessionConfigFromConfig(cfg config.Config, logger *slog.Logger) (SessionConfig, error) {
	filter, err := FilterFromConfig(cfg.Filter)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		URL:    cfg.Endpoint.URL,
		Dialer: wire.WebSocketDialer{HandshakeTimeout: cfg.Endpoint.HandshakeTimeout.Std()},
		Reducer: program.NewReducer(
			program.WithUnsuccessfulPolicy(cfg.UnsuccessfulPolicy()),
			program.WithVariableCommands(cfg.Reducer.VariableCommands...),
		),
		Classifier:  heap.NewClassifier(cfg.Classifier.PrimitiveTypes...),
		Filter:      filter,
		MaxDepth:    cfg.Graph.MaxDepth,
		Logger:      logger,
		EventBuffer: DefaultEventBuffer,
	}, nil
}
