package synchronize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/statetrack/internal/compare"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

type pet struct {
	observable.Notifier
	Name string
}

func (p *pet) SetName(v string) error { return observable.Set(&p.Notifier, p, &p.Name, v, "Name") }

type person struct {
	observable.Notifier
	Name   string
	Child  *person
	Parent *person
	Pets   *observable.List[*pet]
}

func (p *person) SetName(v string) error { return observable.Set(&p.Notifier, p, &p.Name, v, "Name") }
func (p *person) SetChild(v *person) error {
	return observable.Set(&p.Notifier, p, &p.Child, v, "Child")
}

type both struct {
	observable.Notifier
	A *observable.List[int]
	B *observable.List[int]
}

type tagged struct {
	observable.Notifier
	Tags []string
}

var (
	structural = settings.Default(settings.Structural)
	loops      = settings.Default(settings.StructuralWithReferenceLoops)
	references = settings.Default(settings.References)
)

func start(t *testing.T, source, target any, s *settings.Settings) *Synchronizer {
	t.Helper()
	sy, err := New(node.NewRegistry(), source, target, s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sy.Dispose)
	return sy
}

func same(t *testing.T, source, target any, s *settings.Settings) {
	t.Helper()
	d, err := compare.Diff(source, target, s)
	if err != nil {
		t.Fatalf("compare.Diff: %v", err)
	}
	if d != nil {
		t.Errorf("target out of sync:\n%v", d)
	}
}

func TestReferencesCollection(t *testing.T) {
	source := observable.NewList(1, 2)
	target := observable.NewList[int]()
	sy := start(t, source, target, references)

	if !reflect.DeepEqual(target.Items(), []int{1, 2}) {
		t.Fatalf("target = %v after start", target.Items())
	}
	_ = source.Add(3)
	if !reflect.DeepEqual(target.Items(), []int{1, 2, 3}) {
		t.Errorf("target = %v after Add", target.Items())
	}

	sy.Dispose()
	_ = source.Add(4)
	if !reflect.DeepEqual(target.Items(), []int{1, 2, 3}) {
		t.Errorf("target = %v after dispose", target.Items())
	}
}

func TestStructuralGraph(t *testing.T) {
	source := &person{Name: "a", Child: &person{Name: "kid"}, Pets: observable.NewList(&pet{Name: "rex"})}
	target := &person{}
	start(t, source, target, structural)
	same(t, source, target, structural)

	steps := []func(){
		func() { _ = source.SetName("b") },
		func() { _ = source.Child.SetName("bob") },
		func() { _ = source.Pets.Add(&pet{Name: "max"}) },
		func() { _ = source.Pets.At(1).SetName("tom") },
		func() { _ = source.Pets.Move(0, 1) },
		func() { _ = source.Pets.Set(0, &pet{Name: "new"}) },
		func() { _ = source.Pets.RemoveAt(1) },
		func() { _ = source.SetChild(&person{Name: "other"}) },
		func() { _ = source.Pets.Reset(&pet{Name: "x"}, &pet{Name: "y"}) },
		func() { _ = source.SetChild(nil) },
	}
	for i, step := range steps {
		step()
		d, _ := compare.Diff(source, target, structural)
		if d != nil {
			t.Fatalf("step %d left the target out of sync:\n%v", i, d)
		}
	}
	if target.Pets == source.Pets || target.Pets.At(0) == source.Pets.At(0) {
		t.Error("structural synchronization shares objects with the source")
	}
}

func TestTargetModificationRejected(t *testing.T) {
	source := &person{Child: &person{}}
	target := &person{}
	start(t, source, target, structural)

	err := target.SetName("mine")
	if !errors.Is(err, trackerr.ErrTargetModified) || !errors.Is(err, trackerr.ErrMisuse) {
		t.Errorf("err = %v, want ErrTargetModified", err)
	}
	err = target.Child.SetName("mine")
	var me *trackerr.MisuseError
	if !errors.As(err, &me) || me.Path != "Child.Name" {
		t.Errorf("err = %v, want a misuse at Child.Name", err)
	}
}

func TestUnreachableCounterpart(t *testing.T) {
	source := &person{Pets: observable.NewList(&pet{Name: "a"}, &pet{Name: "b"})}
	target := &person{}
	start(t, source, target, structural)

	_ = target.Pets.RemoveAt(1)
	err := source.Pets.At(1).SetName("c")
	if !errors.Is(err, trackerr.ErrNotReachable) {
		t.Errorf("err = %v, want ErrNotReachable", err)
	}
}

func TestLoopsAreReproduced(t *testing.T) {
	source := &person{Name: "a"}
	source.Child = &person{Name: "kid", Parent: source}
	target := &person{}
	start(t, source, target, loops)

	if target.Child == nil || target.Child.Parent != target {
		t.Fatal("cycle not reproduced")
	}
	_ = source.Child.SetName("bob")
	_ = source.SetName("z")
	if target.Child.Name != "bob" || target.Name != "z" {
		t.Errorf("target = %q/%q", target.Name, target.Child.Name)
	}
	if target.Child.Parent != target {
		t.Error("cycle lost after updates")
	}
	same(t, source, target, loops)
}

func TestSharedSourceObjectAppliedOncePerTarget(t *testing.T) {
	shared := observable.NewList(1)
	source := &both{A: shared, B: shared}
	target := &both{}
	start(t, source, target, structural)

	_ = shared.Add(2)
	if !reflect.DeepEqual(target.A.Items(), []int{1, 2}) || !reflect.DeepEqual(target.B.Items(), []int{1, 2}) {
		t.Errorf("A=%v B=%v", target.A.Items(), target.B.Items())
	}
}

func TestVerificationFailsUpFront(t *testing.T) {
	_, err := New(node.NewRegistry(), &tagged{Tags: []string{"a"}}, &tagged{}, structural)
	if !errors.Is(err, trackerr.ErrNotNotifying) {
		t.Errorf("err = %v, want ErrNotNotifying", err)
	}
	source := &person{}
	if _, err := New(node.NewRegistry(), source, source, structural); !errors.Is(err, trackerr.ErrMisuse) {
		t.Errorf("same object: %v", err)
	}
}

func TestDisposeUnsubscribes(t *testing.T) {
	nodes := node.NewRegistry()
	source := &person{Child: &person{}, Pets: observable.NewList[*pet]()}
	target := &person{}
	sy, err := New(nodes, source, target, structural)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sy.Dispose()
	sy.Dispose()

	if nodes.Len() != 0 {
		t.Errorf("%d nodes left", nodes.Len())
	}
	if source.PropertyChangedObservers() != 0 || target.PropertyChangedObservers() != 0 || source.Pets.CollectionChangedObservers() != 0 {
		t.Error("subscriptions left after dispose")
	}
	if err := target.SetName("free"); err != nil {
		t.Errorf("target still guarded: %v", err)
	}
}
