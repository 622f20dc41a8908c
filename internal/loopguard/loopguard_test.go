package loopguard

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/settings"
)

type node struct {
	Next *node
}

func TestEnterLeave(t *testing.T) {
	a, b := &node{}, &node{}
	g := New(settings.Default(settings.Structural))

	for _, n := range []*node{a, b} {
		if descend, err := g.Enter(reflect.ValueOf(n), "n"); !descend || err != nil {
			t.Fatalf("Enter = %v, %v", descend, err)
		}
	}
	if g.Depth() != 2 || !g.Contains(reflect.ValueOf(a)) || g.Level(reflect.ValueOf(b)) != 1 {
		t.Errorf("unexpected guard state depth=%d", g.Depth())
	}

	g.Leave()
	if g.Contains(reflect.ValueOf(b)) {
		t.Error("b should be popped")
	}
	if g.Level(reflect.ValueOf(b)) != -1 {
		t.Error("popped value has no level")
	}
	g.Leave()
	g.Leave()
	if g.Depth() != 0 {
		t.Errorf("depth = %d", g.Depth())
	}
}

func TestStructuralLoopFails(t *testing.T) {
	a := &node{}
	a.Next = a
	g := New(settings.Default(settings.Structural))

	_, _ = g.Enter(reflect.ValueOf(a), "Root")
	descend, err := g.Enter(reflect.ValueOf(a.Next), "Root.Next")
	if descend {
		t.Error("loop should not descend")
	}
	if !errors.Is(err, trackerr.ErrReferenceLoop) || !errors.Is(err, trackerr.ErrClassification) {
		t.Fatalf("expected reference loop classification error, got %v", err)
	}
	var ce *trackerr.ClassificationError
	if !errors.As(err, &ce) || ce.Path != "Root.Next" {
		t.Errorf("unexpected error %+v", ce)
	}
}

func TestToleratedLoopTruncates(t *testing.T) {
	a := &node{}
	a.Next = a
	g := New(settings.Default(settings.StructuralWithReferenceLoops))

	_, _ = g.Enter(reflect.ValueOf(a), "")
	descend, err := g.Enter(reflect.ValueOf(a.Next), "Next")
	if descend || err != nil {
		t.Errorf("Enter = %v, %v; want false, nil", descend, err)
	}
	if g.Depth() != 1 {
		t.Errorf("truncated entry must not be pushed, depth = %d", g.Depth())
	}
}

func TestValuesWithoutIdentityDescend(t *testing.T) {
	g := New(settings.Default(settings.Structural))
	for range 3 {
		if descend, err := g.Enter(reflect.ValueOf(42), ""); !descend || err != nil {
			t.Fatalf("Enter(42) = %v, %v", descend, err)
		}
	}
	if g.Contains(reflect.ValueOf(42)) {
		t.Error("values without identity are never contained")
	}
}
