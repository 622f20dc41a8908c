package dirty

import (
	"errors"
	"testing"

	"github.com/dshills/statetrack/diff"
	"github.com/dshills/statetrack/internal/compare"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

type complexType struct {
	observable.Notifier
	Name  string
	Value int
}

func (c *complexType) SetValue(v int) error {
	return observable.Set(&c.Notifier, c, &c.Value, v, "Value")
}

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

var (
	structural = settings.Default(settings.Structural)
	loops      = settings.Default(settings.StructuralWithReferenceLoops)
	references = settings.Default(settings.References)
)

func acquire(t *testing.T, r *Registry, x, y any, s *settings.Settings) *Pair {
	t.Helper()
	h, err := r.Acquire(x, y, s)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(h.Release)
	return h.Value()
}

// agrees fails unless the live diff renders like a fresh one-shot diff.
func agrees(t *testing.T, p *Pair, s *settings.Settings) {
	t.Helper()
	want, err := compare.Diff(p.X(), p.Y(), s)
	if err != nil {
		t.Fatalf("compare.Diff: %v", err)
	}
	if !diff.Equal(p.Diff(), want) {
		t.Errorf("live diff:\n%v\none-shot diff:\n%v", p.Diff(), want)
	}
}

func count(p *Pair) *int {
	n := 0
	p.AddListener(func() error {
		n++
		return nil
	})
	return &n
}

func TestMemberChange(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &complexType{Name: "a", Value: 1}
	y := &complexType{Name: "a", Value: 1}
	p := acquire(t, r, x, y, structural)
	changes := count(p)

	if p.IsDirty() {
		t.Fatalf("equal objects are dirty: %v", p.Diff())
	}

	_ = x.SetValue(2)
	if got := p.Diff().String(); got != "complexType Value x: 2 y: 1" {
		t.Errorf("diff = %q", got)
	}
	_ = x.SetValue(1)
	if p.IsDirty() {
		t.Errorf("dirty after revert: %v", p.Diff())
	}
	if *changes != 2 {
		t.Errorf("listeners ran %d times, want 2", *changes)
	}
}

func TestUnchangedDiffDoesNotNotify(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &complexType{Name: "a"}
	y := &complexType{Name: "b"}
	p := acquire(t, r, x, y, structural)
	before := p.Diff()
	changes := count(p)

	_ = x.NotifyPropertyChanged(x, "Name")
	_ = x.NotifyPropertyChanged(x, "")
	if *changes != 0 {
		t.Errorf("listeners ran %d times for an unchanged diff", *changes)
	}
	if p.Diff() != before {
		t.Error("diff rebuilt without a change")
	}
}

func TestNestedChange(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &person{Child: &person{Name: "kid"}}
	y := &person{Child: &person{Name: "kid"}}
	p := acquire(t, r, x, y, structural)

	_ = x.Child.SetName("bob")
	if got := p.Diff().String(); got != "person Child Name x: bob y: kid" {
		t.Errorf("diff = %q", got)
	}
	agrees(t, p, structural)

	_ = y.Child.SetName("bob")
	if p.IsDirty() {
		t.Errorf("dirty after both sides changed: %v", p.Diff())
	}
}

func TestReplacedChild(t *testing.T) {
	nodes := node.NewRegistry()
	r := NewRegistry(nodes)
	x := &person{Child: &person{Name: "kid"}}
	y := &person{Child: &person{Name: "kid"}}
	p := acquire(t, r, x, y, structural)
	pairs := r.Len()

	old := x.Child
	_ = x.SetChild(&person{Name: "new"})
	agrees(t, p, structural)
	if r.Len() != pairs {
		t.Errorf("pairs = %d, want %d", r.Len(), pairs)
	}
	if old.PropertyChangedObservers() != 0 {
		t.Error("replaced child is still observed")
	}

	_ = x.SetChild(nil)
	if got := p.Diff().String(); got != "person Child x: null y: person" {
		t.Errorf("diff = %q", got)
	}
}

func TestReplacedChildWithEqualContent(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &person{Child: &person{Name: "a"}}
	y := &person{Child: &person{Name: "b"}}
	p := acquire(t, r, x, y, structural)
	if !p.IsDirty() {
		t.Fatal("children differ")
	}

	_ = x.SetChild(&person{Name: "b"})
	if p.IsDirty() {
		t.Errorf("still dirty after replacing the child: %v", p.Diff())
	}

	_ = x.Child.SetName("c")
	if got := p.Diff().String(); got != "person Child Name x: c y: b" {
		t.Errorf("diff = %q", got)
	}
	agrees(t, p, structural)
}

func TestCollections(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &person{Pets: observable.NewList(&pet{Name: "a"}, &pet{Name: "b"})}
	y := &person{Pets: observable.NewList(&pet{Name: "a"}, &pet{Name: "b"})}
	p := acquire(t, r, x, y, structural)

	_ = x.Pets.Add(&pet{Name: "c"})
	if got := p.Diff().String(); got != "person Pets [2] x: pet y: missing item" {
		t.Errorf("diff = %q", got)
	}

	_ = x.Pets.Insert(0, &pet{Name: "z"})
	agrees(t, p, structural)

	_ = x.Pets.RemoveAt(0)
	_ = y.Pets.Add(&pet{Name: "c"})
	if p.IsDirty() {
		t.Errorf("dirty after items lined up: %v", p.Diff())
	}

	_ = x.Pets.At(1).SetName("q")
	if got := p.Diff().String(); got != "person Pets [1] Name x: q y: b" {
		t.Errorf("diff = %q", got)
	}

	_ = x.Pets.Move(1, 0)
	agrees(t, p, structural)

	_ = x.Pets.Clear()
	agrees(t, p, structural)
}

func TestReferenceHandling(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	kid := &person{Name: "kid"}
	x := &person{Child: kid}
	y := &person{Child: &person{Name: "kid"}}

	p := acquire(t, r, x, y, references)
	if got := p.Diff().String(); got != "person Child x: person y: person" {
		t.Errorf("diff = %q", got)
	}
	_ = y.SetChild(kid)
	if p.IsDirty() {
		t.Errorf("same reference is dirty: %v", p.Diff())
	}
	_ = kid.SetName("changed")
	if p.IsDirty() {
		t.Error("references handling looked inside a shared child")
	}
}

func TestSharedPairs(t *testing.T) {
	nodes := node.NewRegistry()
	r := NewRegistry(nodes)
	x := &person{Child: &person{}, Pets: observable.NewList[*pet]()}
	y := &person{Child: &person{}, Pets: observable.NewList[*pet]()}

	h1, err := r.Acquire(x, y, structural)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h2, _ := r.Acquire(x, y, structural)
	if h1.Value() != h2.Value() {
		t.Error("handles over one pair should share it")
	}
	h1.Release()
	if h2.Value().Disposed() {
		t.Error("pair disposed while still referenced")
	}
	h2.Release()

	if r.Len() != 0 || nodes.Len() != 0 {
		t.Errorf("pairs=%d nodes=%d after release", r.Len(), nodes.Len())
	}
	if x.PropertyChangedObservers() != 0 || y.Child.PropertyChangedObservers() != 0 || x.Pets.CollectionChangedObservers() != 0 {
		t.Error("subscriptions left after release")
	}
}

func TestSameObjectIsClean(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &complexType{Name: "a"}
	p := acquire(t, r, x, x, structural)

	_ = x.SetValue(3)
	if p.IsDirty() {
		t.Errorf("object differs from itself: %v", p.Diff())
	}
}

func TestTypeMismatch(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	_, err := r.Acquire(&person{}, &pet{}, structural)
	if !errors.Is(err, trackerr.ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

func loopy(name string) *person {
	p := &person{Name: "a"}
	p.Child = &person{Name: name, Parent: p}
	return p
}

func TestReferenceLoops(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x, y := loopy("kid"), loopy("kid")
	p := acquire(t, r, x, y, loops)
	if p.IsDirty() {
		t.Fatalf("equal loops are dirty: %v", p.Diff())
	}

	_ = x.Child.SetName("other")
	if got := p.Diff().String(); got != "person Child\n  Name x: other y: kid\n  Parent ..." {
		t.Errorf("diff = %q", got)
	}
	agrees(t, p, loops)

	_ = x.Child.SetName("kid")
	if p.IsDirty() {
		t.Errorf("loop marker kept after revert: %v", p.Diff())
	}
}

func TestStructuralLoopFails(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	_, err := r.Acquire(loopy("kid"), loopy("kid"), structural)
	if !errors.Is(err, trackerr.ErrReferenceLoop) {
		t.Errorf("err = %v, want ErrReferenceLoop", err)
	}
	if r.Len() != 0 {
		t.Errorf("pairs left after failure: %d", r.Len())
	}
}

func TestBackReferenceRebind(t *testing.T) {
	nodes := node.NewRegistry()
	r := NewRegistry(nodes)
	x, y := loopy("kid"), loopy("kid")

	root, err := r.Acquire(x, y, loops)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	child, err := r.Acquire(x.Child, y.Child, loops)
	if err != nil {
		t.Fatalf("Acquire child: %v", err)
	}
	root.Release()

	c := child.Value()
	if c.Disposed() {
		t.Fatal("child pair disposed with its owner still holding it")
	}
	_ = x.SetName("z")
	if !c.IsDirty() {
		t.Error("change of the former root not seen after rebind")
	}
	agrees(t, c, loops)

	child.Release()
	if r.Len() != 0 || nodes.Len() != 0 {
		t.Errorf("pairs=%d nodes=%d after release", r.Len(), nodes.Len())
	}
}

func TestListenerErrorReachesMutator(t *testing.T) {
	r := NewRegistry(node.NewRegistry())
	x := &complexType{}
	p := acquire(t, r, x, &complexType{}, structural)
	boom := errors.New("boom")
	p.AddListener(func() error { return boom })

	if err := x.SetValue(1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
