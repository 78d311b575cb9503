// Package command encodes stepping requests into the fixed binary frame the
// debug bridge accepts.
//
// A frame is 9 bytes: the thread id as a little-endian signed 64-bit integer
// followed by one action byte.
package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// FrameSize is the length of an encoded command frame.
const FrameSize = 9

// Action is a stepping request.
type Action uint8

// Action ids shared with the bridge.
const (
	Step    Action = 1
	StepIn  Action = 2
	StepOut Action = 3
)

var (
	// ErrInvalidFrame is returned when a frame has the wrong length.
	ErrInvalidFrame = errors.New("invalid command frame")

	// ErrUnknownAction is returned for an action byte outside 1..3.
	ErrUnknownAction = errors.New("unknown action")
)

// String returns a string representation of the action.
func (a Action) String() string {
	switch a {
	case Step:
		return "step"
	case StepIn:
		return "step-in"
	case StepOut:
		return "step-out"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a >= Step && a <= StepOut
}

// ParseAction parses an action name such as "step", "step-in" or "stepout".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s)) {
	case "step", "next", "over":
		return Step, nil
	case "stepin", "in":
		return StepIn, nil
	case "stepout", "out":
		return StepOut, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Encode builds the frame for action on threadID. No validation is done;
// the caller picks a thread from the current program state.
func Encode(action Action, threadID int64) [FrameSize]byte {
	var frame [FrameSize]byte
	binary.LittleEndian.PutUint64(frame[:8], uint64(threadID))
	frame[8] = byte(action)
	return frame
}

// Decode parses a frame back into its action and thread id.
func Decode(frame []byte) (Action, int64, error) {
	if len(frame) != FrameSize {
		return 0, 0, fmt.Errorf("%w: length %d", ErrInvalidFrame, len(frame))
	}

	threadID := int64(binary.LittleEndian.Uint64(frame[:8]))
	action := Action(frame[8])
	if !action.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownAction, frame[8])
	}
	return action, threadID, nil
}
