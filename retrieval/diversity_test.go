package retrieval

import (
	"fmt"
	"testing"

	"github.com/graphweave/graphweave/graph"
)

// chain builds triplets over fresh node pairs: s0 -rel-> o0, s1 -rel-> o1,
// and so on. Types are assigned positionally.
func chain(t *testing.T, types []string) []Triplet {
	t.Helper()

	g := graph.New(quietLogger())

	results := make([]Triplet, len(types))
	for i, typ := range types {
		src := graph.NewNode(fmt.Sprintf("s%d", i), typ, nil)
		tgt := graph.NewNode(fmt.Sprintf("o%d", i), typ, nil)

		for _, n := range []*graph.Node{src, tgt} {
			if err := g.AddNode(n); err != nil {
				t.Fatal(err)
			}
		}

		e := graph.NewEdge(src, tgt, "rel", nil)
		if err := g.AddEdge(e); err != nil {
			t.Fatal(err)
		}

		results[i] = Triplet{Edge: e}
	}

	return results
}

func TestDiversityFilter_SoftCap(t *testing.T) {
	// Four Entity-only triplets against a cap of 2: only two survive.
	results := chain(t, []string{"Entity", "Entity", "Entity", "Entity"})

	f := NewDiversityFilter(2)

	kept := f.Filter(results)
	if len(kept) != 2 {
		t.Fatalf("kept %d triplets, want 2", len(kept))
	}

	// Order is preserved: the first two in ranked order win.
	if kept[0].Edge.Source.ID != "s0" || kept[1].Edge.Source.ID != "s1" {
		t.Error("filter must keep the earliest ranked triplets")
	}
}

func TestDiversityFilter_MixedTypeRescues(t *testing.T) {
	// Entity is saturated after two triplets, but a mixed Entity/Document
	// edge still passes because Document is under the cap.
	results := chain(t, []string{"Entity", "Entity"})

	g := graph.New(quietLogger())

	src := graph.NewNode("s9", "Entity", nil)
	tgt := graph.NewNode("o9", "Document", nil)

	for _, n := range []*graph.Node{src, tgt} {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}

	e := graph.NewEdge(src, tgt, "mentioned_in", nil)
	if err := g.AddEdge(e); err != nil {
		t.Fatal(err)
	}

	results = append(results, Triplet{Edge: e})

	kept := NewDiversityFilter(2).Filter(results)
	if len(kept) != 3 {
		t.Fatalf("kept %d triplets, want 3", len(kept))
	}
}

func TestDiversityFilter_RedundantEndpointsDropped(t *testing.T) {
	g := graph.New(quietLogger())

	a := graph.NewNode("a", "Entity", nil)
	b := graph.NewNode("b", "Organization", nil)

	for _, n := range []*graph.Node{a, b} {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}

	first := graph.NewEdge(a, b, "works_for", nil)
	second := graph.NewEdge(a, b, "founded", nil)

	for _, e := range []*graph.Edge{first, second} {
		if err := g.AddEdge(e); err != nil {
			t.Fatal(err)
		}
	}

	kept := NewDiversityFilter(5).Filter([]Triplet{{Edge: first}, {Edge: second}})
	if len(kept) != 1 || kept[0].Edge.Relation != "works_for" {
		t.Errorf("kept %d triplets, want only the first edge between a and b", len(kept))
	}
}

func TestDiversityFilter_NeverGrows(t *testing.T) {
	results := chain(t, []string{"A", "B", "A", "C", "B", "A"})

	f := NewDiversityFilter(2)

	kept := f.Filter(results)
	if len(kept) > len(results) {
		t.Fatal("filter must never grow the result set")
	}
}

func TestDiversityFilter_Idempotent(t *testing.T) {
	results := chain(t, []string{"A", "A", "A", "B", "B", "B", "C"})

	f := NewDiversityFilter(2)

	once := f.Filter(results)
	twice := f.Filter(once)

	if len(once) != len(twice) {
		t.Fatalf("second pass changed the set: %d vs %d", len(once), len(twice))
	}

	for i := range once {
		if once[i].Edge != twice[i].Edge {
			t.Fatal("second pass must return the same triplets in the same order")
		}
	}
}

func TestNewDiversityFilter_DefaultCap(t *testing.T) {
	if f := NewDiversityFilter(0); f.MaxPerType != DefaultMaxPerType {
		t.Errorf("MaxPerType = %d, want %d", f.MaxPerType, DefaultMaxPerType)
	}
	if f := NewDiversityFilter(-3); f.MaxPerType != DefaultMaxPerType {
		t.Errorf("MaxPerType = %d, want %d", f.MaxPerType, DefaultMaxPerType)
	}
}
