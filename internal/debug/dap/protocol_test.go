package dap

import (
	"encoding/json"
	"testing"
)

func TestVariablesBodyIgnoresUnreadFields(t *testing.T) {
	raw := `{"variables":[{"name":"head","value":"0x10","type":"Node*",
 "presentationHint":{"kind":"data","attributes":["readOnly"],"lazy":true},
 "evaluateName":"head","variablesReference":4,"namedVariables":2,"indexedVariables":0,
 "memoryReference":"0x10"}]}`

	var body VariablesResponseBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := Variable{Name: "head", Value: "0x10", Type: "Node*", VariablesReference: 4, MemoryReference: "0x10"}
	if len(body.Variables) != 1 || body.Variables[0] != want {
		t.Errorf("got %+v, want %+v", body.Variables, want)
	}
}

func TestResponseErrorText(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"message only", Response{Message: "not stopped"}, "not stopped"},
		{
			"formatted body",
			Response{Message: "fallback", Body: json.RawMessage(`{"error":{"id":1,"format":"no frame {id}","variables":{"id":"7"}}}`)},
			"no frame 7",
		},
		{"empty format", Response{Message: "fallback", Body: json.RawMessage(`{"error":{"id":1,"format":""}}`)}, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.ErrorText(); got != tt.want {
				t.Errorf("ErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}
