// Package dap defines the subset of Debug Adapter Protocol messages that the
// visualizer consumes from its bridge.
package dap

import (
	"encoding/json"
	"strings"
)

// TypeResponse is the ProtocolMessage.Type of a response.
const TypeResponse = "response"

// ProtocolMessage is the base for all DAP messages.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"` // "request", "response", "event"
}

// Response represents a DAP response.
type Response struct {
	ProtocolMessage
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// ErrorResponseBody is the body of a failed response.
type ErrorResponseBody struct {
	Error *ErrorMessage `json:"error,omitempty"`
}

// ErrorMessage contains error details.
type ErrorMessage struct {
	ID        int               `json:"id"`
	Format    string            `json:"format"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Text expands the {name} placeholders of the format string.
func (m *ErrorMessage) Text() string {
	if m == nil {
		return ""
	}
	text := m.Format
	for k, v := range m.Variables {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

// ErrorText returns the best available description of a failed response.
func (r *Response) ErrorText() string {
	if len(r.Body) > 0 {
		var body ErrorResponseBody
		if err := json.Unmarshal(r.Body, &body); err == nil && body.Error != nil {
			if text := body.Error.Text(); text != "" {
				return text
			}
		}
	}
	return r.Message
}

// VariablesResponseBody is the response body for variables.
type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

// Variable represents a variable or field.
// Only the fields the reducer reads are decoded.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int64  `json:"variablesReference"`
	MemoryReference    string `json:"memoryReference,omitempty"`
}
