package program

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/dshills/dapviz/internal/debug/dap"
)

// Kind discriminates decoded inbound messages.
type Kind int

const (
	// KindUnhandled is a well-formed payload this core does not consume.
	KindUnhandled Kind = iota
	// KindSnapshot is a direct program state snapshot.
	KindSnapshot
	// KindVariables is a successful variable-bearing DAP response.
	KindVariables
	// KindUnsuccessful is a DAP response with success == false.
	KindUnsuccessful
	// KindEmpty is an accepted payload that carries no data.
	KindEmpty
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnhandled:
		return "unhandled"
	case KindSnapshot:
		return "snapshot"
	case KindVariables:
		return "variables"
	case KindUnsuccessful:
		return "unsuccessful"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Message is a decoded inbound payload. The set of implementations is closed.
type Message interface {
	Kind() Kind
	sealed()
}

// Snapshot carries a complete program state with at least one thread.
type Snapshot struct {
	State *ProgramState
}

// VariablesResponse is a successful response whose body lists variables.
type VariablesResponse struct {
	Command    string
	RequestSeq int
	Variables  []dap.Variable
}

// UnsuccessfulResponse is a response with success == false.
type UnsuccessfulResponse struct {
	Command    string
	RequestSeq int
	Message    string
}

// EmptyPayload is a successful payload with nothing to apply.
type EmptyPayload struct {
	Command string
}

// Unhandled is a well-formed payload of a shape this core ignores.
type Unhandled struct {
	Type    string
	Command string
}

func (Snapshot) Kind() Kind             { return KindSnapshot }
func (VariablesResponse) Kind() Kind    { return KindVariables }
func (UnsuccessfulResponse) Kind() Kind { return KindUnsuccessful }
func (EmptyPayload) Kind() Kind         { return KindEmpty }
func (Unhandled) Kind() Kind            { return KindUnhandled }

func (Snapshot) sealed()             {}
func (VariablesResponse) sealed()    {}
func (UnsuccessfulResponse) sealed() {}
func (EmptyPayload) sealed()         {}
func (Unhandled) sealed()            {}

// DefaultVariableCommands lists the response commands whose body carries
// variables.
var DefaultVariableCommands = []string{"variables"}

// Decoder turns raw payloads into Messages.
type Decoder struct {
	commands map[string]struct{}
}

// NewDecoder creates a decoder that consumes the given response commands.
// With no commands, DefaultVariableCommands is used.
func NewDecoder(variableCommands ...string) *Decoder {
	if len(variableCommands) == 0 {
		variableCommands = DefaultVariableCommands
	}
	d := &Decoder{commands: make(map[string]struct{}, len(variableCommands))}
	for _, c := range variableCommands {
		d.commands[c] = struct{}{}
	}
	return d
}

// Decode classifies and parses one payload.
// Every failure is a *MalformedMessageError.
func (d *Decoder) Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, malformed("invalid JSON", nil)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, malformed("payload is not an object", nil)
	}

	if threads := root.Get("threads"); threads.Exists() {
		return decodeSnapshot(data, threads)
	}

	typ := root.Get("type")
	if typ.Type != gjson.String {
		return nil, malformed("missing type discriminator", nil)
	}
	if typ.String() != dap.TypeResponse {
		return Unhandled{Type: typ.String(), Command: root.Get("command").String()}, nil
	}

	if root.Get("command").Type != gjson.String {
		return nil, malformed("response without command", nil)
	}
	if !root.Get("success").IsBool() {
		return nil, malformed("response without success flag", nil)
	}

	var resp dap.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, malformed("decode response", err)
	}

	if !resp.Success {
		return UnsuccessfulResponse{
			Command:    resp.Command,
			RequestSeq: resp.RequestSeq,
			Message:    resp.ErrorText(),
		}, nil
	}

	if _, ok := d.commands[resp.Command]; !ok {
		return Unhandled{Type: resp.Type, Command: resp.Command}, nil
	}

	vars := root.Get("body.variables")
	if !vars.Exists() {
		return EmptyPayload{Command: resp.Command}, nil
	}
	if !vars.IsArray() {
		return nil, malformed("body.variables is not an array", nil)
	}
	if len(vars.Array()) == 0 {
		return EmptyPayload{Command: resp.Command}, nil
	}

	var body dap.VariablesResponseBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, malformed("decode variables body", err)
	}

	return VariablesResponse{
		Command:    resp.Command,
		RequestSeq: resp.RequestSeq,
		Variables:  body.Variables,
	}, nil
}

func decodeSnapshot(data []byte, threads gjson.Result) (Message, error) {
	if !threads.IsArray() {
		return nil, malformed("threads is not an array", nil)
	}
	if len(threads.Array()) == 0 {
		return EmptyPayload{}, nil
	}

	var state ProgramState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, malformed("decode snapshot", err)
	}
	return Snapshot{State: &state}, nil
}

// UnmarshalJSON accepts the legacy pointer token under both
// "memory_reference" and "memoryReference".
func (v *Variable) UnmarshalJSON(data []byte) error {
	type plain Variable
	aux := struct {
		*plain
		MemoryReferenceAlt string `json:"memoryReference"`
	}{plain: (*plain)(v)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if v.MemoryReference == "" {
		v.MemoryReference = aux.MemoryReferenceAlt
	}
	return nil
}
