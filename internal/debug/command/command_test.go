package command

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeStep42(t *testing.T) {
	frame := Encode(Step, 42)
	want := []byte{42, 0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(frame[:], want) {
		t.Errorf("Encode(Step, 42) = %v, expected %v", frame, want)
	}
}

func TestEncodeNegativeThread(t *testing.T) {
	frame := Encode(StepOut, -1)
	want := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 3}
	if !bytes.Equal(frame[:], want) {
		t.Errorf("Encode(StepOut, -1) = %v, expected %v", frame, want)
	}
}

func TestRoundTrip(t *testing.T) {
	threads := []int64{0, 1, -1, 42, 1 << 40, math.MaxInt64, math.MinInt64, -987654321}

	for _, action := range []Action{Step, StepIn, StepOut} {
		for _, id := range threads {
			frame := Encode(action, id)
			gotAction, gotID, err := Decode(frame[:])
			if err != nil {
				t.Fatalf("Decode(%v): %v", frame, err)
			}
			if gotAction != action || gotID != id {
				t.Errorf("round trip (%s, %d) = (%s, %d)", action, id, gotAction, gotID)
			}
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrInvalidFrame},
		{"short", []byte{1, 0, 0}, ErrInvalidFrame},
		{"long", make([]byte, 10), ErrInvalidFrame},
		{"action zero", []byte{1, 0, 0, 0, 0, 0, 0, 0, 0}, ErrUnknownAction},
		{"action four", []byte{1, 0, 0, 0, 0, 0, 0, 0, 4}, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"step", Step},
		{"Step", Step},
		{"step-in", StepIn},
		{"stepIn", StepIn},
		{"step_out", StepOut},
		{"out", StepOut},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %s, expected %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseAction("continue"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestActionString(t *testing.T) {
	if Step.String() != "step" || StepIn.String() != "step-in" || StepOut.String() != "step-out" {
		t.Error("unexpected action names")
	}
	if Action(9).String() != "action(9)" {
		t.Errorf("unexpected name %q", Action(9).String())
	}
}
