package program

import (
	"fmt"
	"strings"

	"github.com/dshills/dapviz/internal/debug/dap"
)

// Outcome reports what a reduction did to the program state.
type Outcome int

const (
	// OutcomeIgnored means the message was not applicable.
	OutcomeIgnored Outcome = iota
	// OutcomeReplaced means the state was replaced wholesale.
	OutcomeReplaced
	// OutcomeRetained means the previous state was kept.
	OutcomeRetained
	// OutcomeCleared means the state became absent.
	OutcomeCleared
	// OutcomeDropped means the payload was malformed and discarded.
	OutcomeDropped
)

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeRetained:
		return "retained"
	case OutcomeCleared:
		return "cleared"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// UnsuccessfulPolicy decides what a success == false response does.
type UnsuccessfulPolicy int

const (
	// UnsuccessfulRetain keeps the last good state.
	UnsuccessfulRetain UnsuccessfulPolicy = iota
	// UnsuccessfulClear makes the state absent.
	UnsuccessfulClear
)

// String returns the configuration name of the policy.
func (p UnsuccessfulPolicy) String() string {
	switch p {
	case UnsuccessfulRetain:
		return "retain"
	case UnsuccessfulClear:
		return "clear"
	default:
		return "unknown"
	}
}

// ParseUnsuccessfulPolicy parses "retain" or "clear".
func ParseUnsuccessfulPolicy(s string) (UnsuccessfulPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return UnsuccessfulRetain, nil
	case "clear":
		return UnsuccessfulClear, nil
	default:
		return UnsuccessfulRetain, fmt.Errorf("unknown unsuccessful-response policy %q", s)
	}
}

// Reducer computes the next program state from the previous one and one
// inbound message. It holds no state of its own.
type Reducer struct {
	decoder      *Decoder
	unsuccessful UnsuccessfulPolicy
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithUnsuccessfulPolicy sets how unsuccessful responses are applied.
func WithUnsuccessfulPolicy(p UnsuccessfulPolicy) ReducerOption {
	return func(r *Reducer) {
		r.unsuccessful = p
	}
}

// WithVariableCommands sets the response commands treated as variable-bearing.
func WithVariableCommands(commands ...string) ReducerOption {
	return func(r *Reducer) {
		r.decoder = NewDecoder(commands...)
	}
}

// NewReducer creates a reducer with the given options.
func NewReducer(opts ...ReducerOption) *Reducer {
	r := &Reducer{
		decoder:      NewDecoder(),
		unsuccessful: UnsuccessfulRetain,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decode parses a raw payload with the reducer's decoder.
func (r *Reducer) Decode(data []byte) (Message, error) {
	return r.decoder.Decode(data)
}

// Reduce returns the state that follows prev after msg.
// prev is never modified; a replaced state is a new value.
func (r *Reducer) Reduce(prev *ProgramState, msg Message) (*ProgramState, Outcome) {
	switch m := msg.(type) {
	case Snapshot:
		if m.State.IsEmpty() {
			return prev, OutcomeRetained
		}
		return m.State, OutcomeReplaced
	case VariablesResponse:
		if len(m.Variables) == 0 {
			return prev, OutcomeRetained
		}
		return stateFromVariables(m), OutcomeReplaced
	case UnsuccessfulResponse:
		if r.unsuccessful == UnsuccessfulClear {
			return nil, OutcomeCleared
		}
		return prev, OutcomeRetained
	case EmptyPayload:
		return prev, OutcomeRetained
	case Unhandled:
		return prev, OutcomeIgnored
	default:
		// nil or a kind added without a case here
		return prev, OutcomeIgnored
	}
}

// Apply decodes data and reduces it. Malformed payloads leave prev in place
// and report OutcomeDropped together with the decode error.
func (r *Reducer) Apply(prev *ProgramState, data []byte) (*ProgramState, Message, Outcome, error) {
	msg, err := r.Decode(data)
	if err != nil {
		return prev, nil, OutcomeDropped, err
	}
	next, outcome := r.Reduce(prev, msg)
	return next, msg, outcome, nil
}

// stateFromVariables wraps a flat variables body in a single-thread,
// single-frame state so it flows through the same consumers as a snapshot.
func stateFromVariables(m VariablesResponse) *ProgramState {
	vars := make([]Variable, len(m.Variables))
	for i, dv := range m.Variables {
		vars[i] = fromDAPVariable(dv)
	}

	return &ProgramState{
		Threads: []Thread{{
			Name: m.Command,
			StackFrames: []StackFrame{{
				Scopes: []Scope{{Variables: vars}},
			}},
		}},
	}
}

func fromDAPVariable(dv dap.Variable) Variable {
	ref := ReferenceID(dv.VariablesReference)
	if ref < 0 {
		ref = 0
	}
	return Variable{
		Reference:       ref,
		Name:            dv.Name,
		Value:           dv.Value,
		Type:            dv.Type,
		MemoryReference: dv.MemoryReference,
	}
}
