package debug

import (
	"github.com/google/uuid"

	"github.com/dshills/dapviz/internal/debug/command"
	"github.com/dshills/dapviz/internal/debug/wire"
)

// Sender sends stepping commands over the connection it was issued for.
// Once that connection is gone, Send does nothing.
type Sender struct {
	session   *Session
	connID    uuid.UUID
	transport *wire.Transport
}

// ConnID returns the connection the sender is bound to.
func (s *Sender) ConnID() uuid.UUID {
	return s.connID
}

// Valid reports whether the bound connection is still the open one.
func (s *Sender) Valid() bool {
	if s == nil {
		return false
	}
	v := s.session.view.Load()
	return v.State == StateConnected && v.ConnID == s.connID && !s.transport.Closed()
}

// Send encodes action for threadID and writes the frame. It reports
// whether the frame was written; stale senders and unknown actions are
// dropped without error.
func (s *Sender) Send(action command.Action, threadID int64) bool {
	if s == nil {
		return false
	}
	if !action.Valid() || !s.Valid() {
		s.session.stats.framesDropped.Add(1)
		s.session.logger.Debug("dropped command", "action", action, "thread", threadID, "conn", s.connID)
		return false
	}

	frame := command.Encode(action, threadID)
	if err := s.transport.Send(frame[:]); err != nil {
		s.session.stats.framesDropped.Add(1)
		s.session.logger.Debug("dropped command", "action", action, "thread", threadID, "error", err)
		return false
	}
	s.session.stats.framesSent.Add(1)
	return true
}

// Step advances the thread one line.
func (s *Sender) Step(threadID int64) bool {
	return s.Send(command.Step, threadID)
}

// StepIn steps into the call on the current line.
func (s *Sender) StepIn(threadID int64) bool {
	return s.Send(command.StepIn, threadID)
}

// StepOut runs until the current function returns.
func (s *Sender) StepOut(threadID int64) bool {
	return s.Send(command.StepOut, threadID)
}
