// Package program holds the authoritative model of a debugged program and the
// reducer that turns inbound payloads into the next model.
package program

// ReferenceID identifies a composite value assigned by the debug backend.
// Zero means the value has no heap identity.
type ReferenceID int64

// ProgramState is a complete snapshot of the debugged program.
// It is replaced wholesale by every accepted snapshot and never merged.
type ProgramState struct {
	Threads []Thread `json:"threads"`
}

// Thread is one thread of the debugged program.
type Thread struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	StackFrames []StackFrame `json:"stack_frames"`
}

// StackFrame is one frame of a thread's call stack, top of stack first.
type StackFrame struct {
	File     string  `json:"file"`
	Line     int     `json:"line"`
	Function string  `json:"function"`
	Scopes   []Scope `json:"scopes"`
}

// Scope groups the variables visible in a frame.
type Scope struct {
	Variables []Variable `json:"variables"`
}

// Variable is one flattened variable record.
type Variable struct {
	// Parent is the reference of the owning heap object, nil for scope roots.
	Parent *ReferenceID `json:"parent"`

	// Reference is this value's heap identity, 0 for primitives.
	Reference ReferenceID `json:"reference"`

	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`

	// MemoryReference is the legacy pointer token some adapters send instead
	// of a reference id.
	MemoryReference string `json:"memory_reference,omitempty"`
}

// Location is a source position reported to host integrations.
type Location struct {
	File string
	Line int
}

// IsRoot reports whether the variable is owned directly by a scope.
func (v Variable) IsRoot() bool {
	return v.Parent == nil
}

// ParentRef returns the parent reference and whether one is set.
func (v Variable) ParentRef() (ReferenceID, bool) {
	if v.Parent == nil {
		return 0, false
	}
	return *v.Parent, true
}

// Ref returns a pointer to r, for building Variable.Parent values.
func Ref(r ReferenceID) *ReferenceID {
	return &r
}

// IsEmpty reports whether the state carries no threads.
func (s *ProgramState) IsEmpty() bool {
	return s == nil || len(s.Threads) == 0
}

// Thread returns the thread with the given id.
func (s *ProgramState) Thread(id int64) (Thread, bool) {
	if s == nil {
		return Thread{}, false
	}
	for _, t := range s.Threads {
		if t.ID == id {
			return t, true
		}
	}
	return Thread{}, false
}

// AllVariables returns every variable across all frames and scopes of the
// thread, in their original order.
func (t Thread) AllVariables() []Variable {
	var n int
	for _, f := range t.StackFrames {
		for _, sc := range f.Scopes {
			n += len(sc.Variables)
		}
	}

	vars := make([]Variable, 0, n)
	for _, f := range t.StackFrames {
		for _, sc := range f.Scopes {
			vars = append(vars, sc.Variables...)
		}
	}
	return vars
}

// ActiveLocation returns the source position of the top frame.
func (t Thread) ActiveLocation() (Location, bool) {
	if len(t.StackFrames) == 0 {
		return Location{}, false
	}
	top := t.StackFrames[0]
	return Location{File: top.File, Line: top.Line}, true
}

// Equal reports whether two states are structurally identical.
func (s *ProgramState) Equal(o *ProgramState) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Threads) != len(o.Threads) {
		return false
	}
	for i := range s.Threads {
		if !s.Threads[i].equal(o.Threads[i]) {
			return false
		}
	}
	return true
}

func (t Thread) equal(o Thread) bool {
	if t.ID != o.ID || t.Name != o.Name || len(t.StackFrames) != len(o.StackFrames) {
		return false
	}
	for i, f := range t.StackFrames {
		g := o.StackFrames[i]
		if f.File != g.File || f.Line != g.Line || f.Function != g.Function || len(f.Scopes) != len(g.Scopes) {
			return false
		}
		for j, sc := range f.Scopes {
			if len(sc.Variables) != len(g.Scopes[j].Variables) {
				return false
			}
			for k, v := range sc.Variables {
				if !v.Equal(g.Scopes[j].Variables[k]) {
					return false
				}
			}
		}
	}
	return true
}

// Equal reports whether two variables carry the same data.
func (v Variable) Equal(o Variable) bool {
	vp, vok := v.ParentRef()
	op, ook := o.ParentRef()
	return vok == ook && vp == op &&
		v.Reference == o.Reference &&
		v.Name == o.Name &&
		v.Value == o.Value &&
		v.Type == o.Type &&
		v.MemoryReference == o.MemoryReference
}
