// Package heap classifies variables and builds the per-snapshot heap graph.
package heap

import (
	"strings"

	"github.com/dshills/dapviz/internal/debug/program"
)

// Kind is the storage class of a variable.
type Kind int

const (
	// Stack is a primitive value without heap identity.
	Stack Kind = iota
	// Heap is a value identified by a reference or a pointer token.
	Heap
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Stack:
		return "stack"
	case Heap:
		return "heap"
	default:
		return "unknown"
	}
}

// DefaultPrimitiveTypes are the type names treated as primitives when no
// list is configured.
var DefaultPrimitiveTypes = []string{"int", "float", "char", "double", "bool"}

// Classifier decides whether a variable lives on the stack or the heap.
// It is safe for concurrent use once constructed.
type Classifier struct {
	types      []string
	primitives map[string]struct{}
}

// NewClassifier creates a classifier for the given primitive type names.
// With no names, DefaultPrimitiveTypes is used.
func NewClassifier(primitiveTypes ...string) *Classifier {
	if len(primitiveTypes) == 0 {
		primitiveTypes = DefaultPrimitiveTypes
	}
	c := &Classifier{primitives: make(map[string]struct{}, len(primitiveTypes))}
	for _, t := range primitiveTypes {
		t = strings.TrimSpace(t)
		if _, dup := c.primitives[t]; dup {
			continue
		}
		c.primitives[t] = struct{}{}
		c.types = append(c.types, t)
	}
	return c
}

// PrimitiveTypes returns the configured primitive type names in the order
// they were given, without duplicates.
func (c *Classifier) PrimitiveTypes() []string {
	return append([]string(nil), c.types...)
}

// IsPrimitive reports whether typeName is on the primitive allow-list.
func (c *Classifier) IsPrimitive(typeName string) bool {
	_, ok := c.primitives[typeName]
	return ok
}

// Classify maps every variable to exactly one Kind. A primitive type always
// wins; otherwise a positive reference or a non-null pointer token makes the
// variable Heap, and anything else is Stack.
func (c *Classifier) Classify(v program.Variable) Kind {
	if c.IsPrimitive(v.Type) {
		return Stack
	}
	if v.Reference > 0 || HasAddress(v.MemoryReference) {
		return Heap
	}
	return Stack
}

// HasAddress reports whether token is a present, non-null pointer token.
func HasAddress(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" || strings.EqualFold(token, "null") || strings.EqualFold(token, "nil") {
		return false
	}
	digits := strings.TrimPrefix(strings.TrimPrefix(token, "0x"), "0X")
	return strings.Trim(digits, "0") != ""
}
