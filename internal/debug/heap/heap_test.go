package heap

import (
	"reflect"
	"testing"

	"github.com/dshills/dapviz/internal/debug/program"
)

func root(ref program.ReferenceID, name, typ string) program.Variable {
	return program.Variable{Reference: ref, Name: name, Type: typ}
}

func child(parent, ref program.ReferenceID, name, typ string) program.Variable {
	return program.Variable{Parent: program.Ref(parent), Reference: ref, Name: name, Type: typ}
}

func names(vars []program.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScenarioPrimitiveOnly(t *testing.T) {
	x := program.Variable{Name: "x", Value: "5", Type: "int"}
	c := NewClassifier()

	if c.Classify(x) != Stack {
		t.Error("x should be Stack")
	}

	g := Build([]program.Variable{x})
	if len(g.Roots()) != 0 {
		t.Errorf("expected no roots, got %v", names(g.Roots()))
	}
	if got := names(g.Locals()); !equalStrings(got, []string{"x"}) {
		t.Errorf("expected locals [x], got %v", got)
	}
}

func TestScenarioVector(t *testing.T) {
	v := program.Variable{Reference: 7, Name: "v", Value: "0x1", Type: "Vector"}
	x := program.Variable{Parent: program.Ref(7), Name: "X", Value: "1", Type: "int"}
	c := NewClassifier()

	g := Build([]program.Variable{v, x})

	if got := names(g.Roots()); !equalStrings(got, []string{"v"}) {
		t.Errorf("roots = %v, expected [v]", got)
	}
	if got := names(g.Children(7)); !equalStrings(got, []string{"X"}) {
		t.Errorf("children(7) = %v, expected [X]", got)
	}
	if c.Classify(x) != Stack {
		t.Error("X should be Stack")
	}
	if c.Classify(v) != Heap {
		t.Error("v should be Heap")
	}
}

func TestClassifierTotalAndExclusive(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name string
		v    program.Variable
		want Kind
	}{
		{"primitive", program.Variable{Type: "int"}, Stack},
		{"primitive with reference", program.Variable{Type: "bool", Reference: 4}, Stack},
		{"reference", program.Variable{Type: "Node", Reference: 4}, Heap},
		{"pointer token", program.Variable{Type: "Node*", MemoryReference: "0x7ffe1"}, Heap},
		{"null pointer token", program.Variable{Type: "Node*", MemoryReference: "0x0000000000000000"}, Stack},
		{"short null token", program.Variable{Type: "Node*", MemoryReference: "0x0"}, Stack},
		{"unknown type no identity", program.Variable{Type: "string"}, Stack},
		{"negative reference", program.Variable{Type: "Node", Reference: -3}, Stack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.v)
			if got != tt.want {
				t.Errorf("Classify = %s, expected %s", got, tt.want)
			}
			if got != Stack && got != Heap {
				t.Errorf("Classify returned %d", got)
			}
		})
	}
}

func TestClassifierCustomPrimitives(t *testing.T) {
	c := NewClassifier("i32", "f64", "bool")

	if c.Classify(program.Variable{Type: "int", Reference: 2}) != Heap {
		t.Error("int is not primitive under a custom list")
	}
	if c.Classify(program.Variable{Type: "i32", Reference: 2}) != Stack {
		t.Error("i32 should be primitive")
	}
	if len(c.PrimitiveTypes()) != 3 {
		t.Errorf("expected 3 primitive types, got %d", len(c.PrimitiveTypes()))
	}
}

func TestClassifierPrimitiveTypesOrder(t *testing.T) {
	c := NewClassifier("u8", " i32", "f64", "bool", "i32", "char", "usize")
	want := []string{"u8", "i32", "f64", "bool", "char", "usize"}

	for i := 0; i < 20; i++ {
		if got := c.PrimitiveTypes(); !reflect.DeepEqual(got, want) {
			t.Fatalf("PrimitiveTypes() = %v, want %v", got, want)
		}
	}

	got := c.PrimitiveTypes()
	got[0] = "mutated"
	if c.PrimitiveTypes()[0] != "u8" {
		t.Error("PrimitiveTypes should return a copy")
	}

	if d := NewClassifier().PrimitiveTypes(); !reflect.DeepEqual(d, DefaultPrimitiveTypes) {
		t.Errorf("default types = %v", d)
	}
}

func TestHasAddress(t *testing.T) {
	tests := map[string]bool{
		"":                   false,
		"0x0000000000000000": false,
		"0X0":                false,
		"0":                  false,
		"null":               false,
		"0x7ffd1":            true,
		"1234":               true,
	}
	for token, want := range tests {
		if got := HasAddress(token); got != want {
			t.Errorf("HasAddress(%q) = %v, expected %v", token, got, want)
		}
	}
}

func TestBuildGroupsAndCounts(t *testing.T) {
	vars := []program.Variable{
		root(1, "list", "List"),
		child(1, 2, "head", "Node"),
		child(1, 0, "len", "int"),
		child(2, 0, "val", "int"),
		child(2, 3, "next", "Node"),
		child(3, 0, "val", "int"),
		root(0, "i", "int"),
	}

	g := Build(vars)

	counts := make(map[program.ReferenceID]int)
	for _, v := range vars {
		if p, ok := v.ParentRef(); ok {
			counts[p]++
		}
	}
	for p, n := range counts {
		if len(g.Children(p)) != n {
			t.Errorf("children(%d) has %d entries, expected %d", p, len(g.Children(p)), n)
		}
	}

	if got := names(g.Children(1)); !equalStrings(got, []string{"head", "len"}) {
		t.Errorf("children(1) = %v", got)
	}

	prims, refs := g.Partition(2)
	if !equalStrings(names(prims), []string{"val"}) || !equalStrings(names(refs), []string{"next"}) {
		t.Errorf("partition(2) = %v / %v", names(prims), names(refs))
	}

	if len(g.Children(99)) != 0 {
		t.Error("unknown reference has no children")
	}

	wantNodes := []program.ReferenceID{1, 2, 3}
	nodes := g.Nodes()
	if len(nodes) != len(wantNodes) {
		t.Fatalf("nodes = %v, expected %v", nodes, wantNodes)
	}
	for i := range wantNodes {
		if nodes[i] != wantNodes[i] {
			t.Errorf("nodes = %v, expected %v", nodes, wantNodes)
		}
	}

	edges := g.Edges()
	if len(edges) != 2 || edges[0] != (Edge{1, 2}) || edges[1] != (Edge{2, 3}) {
		t.Errorf("unexpected edges %v", edges)
	}
}

func TestRootsAppearOnce(t *testing.T) {
	vars := []program.Variable{
		root(5, "a", "Obj"),
		root(6, "b", "Obj"),
		root(0, "n", "int"),
		child(5, 6, "peer", "Obj"),
	}

	g := Build(vars)
	counts := make(map[string]int)
	for _, r := range g.Roots() {
		counts[r.Name]++
	}
	if counts["a"] != 1 || counts["b"] != 1 || len(counts) != 2 {
		t.Errorf("unexpected roots %v", counts)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	g := Build([]program.Variable{root(1, "a", "Obj"), child(1, 0, "x", "int")})

	roots := g.Roots()
	roots[0].Name = "mutated"
	kids := g.Children(1)
	kids[0].Name = "mutated"

	if g.Roots()[0].Name != "a" || g.Children(1)[0].Name != "x" {
		t.Error("graph must not change through returned slices")
	}
}

func TestWalkAliasing(t *testing.T) {
	// Two fields of one object point at the same child.
	vars := []program.Variable{
		root(1, "pair", "Pair"),
		child(1, 2, "left", "Node"),
		child(1, 2, "right", "Node"),
		child(2, 0, "v", "int"),
		root(3, "other", "Holder"),
		child(3, 2, "shared", "Node"),
	}

	g := Build(vars)

	type visit struct {
		parent program.ReferenceID
		node   string
		depth  int
		again  bool
	}
	var visits []visit
	g.Walk(func(s Step) {
		var p program.ReferenceID
		if s.Parent != nil {
			p = s.Parent.Reference
		}
		visits = append(visits, visit{p, s.Node.Name, s.Depth, s.Revisit})
	})

	want := []visit{
		{0, "pair", 0, false},
		{1, "left", 1, false},
		{0, "other", 0, false},
		{3, "shared", 1, true},
	}
	if len(visits) != len(want) {
		t.Fatalf("visits = %+v, expected %+v", visits, want)
	}
	for i := range want {
		if visits[i] != want[i] {
			t.Errorf("visit %d = %+v, expected %+v", i, visits[i], want[i])
		}
	}
}

func TestWalkCycleTerminates(t *testing.T) {
	vars := []program.Variable{
		root(1, "a", "Node"),
		child(1, 2, "next", "Node"),
		child(2, 1, "back", "Node"),
		child(2, 2, "self", "Node"),
	}

	var steps int
	truncated := Build(vars).Walk(func(Step) { steps++ })
	if truncated {
		t.Error("cycle should not hit the depth bound")
	}
	if steps != 4 {
		t.Errorf("expected 4 steps, got %d", steps)
	}
}

func TestWalkDepthBound(t *testing.T) {
	vars := []program.Variable{root(1, "n1", "Node")}
	for i := program.ReferenceID(1); i < 20; i++ {
		vars = append(vars, child(i, i+1, "next", "Node"))
	}

	g := Build(vars, WithMaxDepth(5))
	if g.MaxDepth() != 5 {
		t.Fatalf("MaxDepth = %d", g.MaxDepth())
	}

	deepest := 0
	truncated := g.Walk(func(s Step) {
		if s.Depth > deepest {
			deepest = s.Depth
		}
	})
	if !truncated {
		t.Error("expected the walk to be truncated")
	}
	if deepest != 5 {
		t.Errorf("deepest visit = %d, expected 5", deepest)
	}
}

func TestWithMaxDepthIgnoresNonPositive(t *testing.T) {
	if Build(nil, WithMaxDepth(0)).MaxDepth() != DefaultMaxDepth {
		t.Error("zero depth should keep the default")
	}
}
