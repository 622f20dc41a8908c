package observable

import (
	"errors"
	"reflect"
	"testing"
)

func recordEvents[T any](l *List[T]) *[]CollectionChangedEventArgs {
	var events []CollectionChangedEventArgs
	l.SubscribeCollectionChanged(func(sender any, e CollectionChangedEventArgs) error {
		events = append(events, e)
		return nil
	})
	return &events
}

func TestList_Mutations(t *testing.T) {
	l := NewList(1, 2)
	events := recordEvents(l)

	steps := []struct {
		name   string
		op     func() error
		want   []int
		action CollectionChangedAction
		newIdx int
		oldIdx int
	}{
		{"add", func() error { return l.Add(3) }, []int{1, 2, 3}, ActionAdd, 2, -1},
		{"insert", func() error { return l.Insert(0, 0) }, []int{0, 1, 2, 3}, ActionAdd, 0, -1},
		{"remove", func() error { return l.RemoveAt(1) }, []int{0, 2, 3}, ActionRemove, -1, 1},
		{"set", func() error { return l.Set(0, 9) }, []int{9, 2, 3}, ActionReplace, 0, 0},
		{"move forward", func() error { return l.Move(0, 2) }, []int{2, 3, 9}, ActionMove, 2, 0},
		{"move back", func() error { return l.Move(2, 0) }, []int{9, 2, 3}, ActionMove, 0, 2},
		{"clear", func() error { return l.Clear() }, nil, ActionReset, -1, -1},
	}

	for i, st := range steps {
		if err := st.op(); err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got := l.Items(); !reflect.DeepEqual(got, st.want) && !(len(got) == 0 && len(st.want) == 0) {
			t.Errorf("%s: items = %v, want %v", st.name, got, st.want)
		}
		if len(*events) != i+1 {
			t.Fatalf("%s: %d events, want %d", st.name, len(*events), i+1)
		}
		e := (*events)[i]
		if e.Action != st.action || e.NewIndex != st.newIdx || e.OldIndex != st.oldIdx {
			t.Errorf("%s: event = %+v, want action %v new %d old %d", st.name, e, st.action, st.newIdx, st.oldIdx)
		}
	}
}

func TestList_OutOfRange(t *testing.T) {
	l := NewList("a")
	events := recordEvents(l)

	checks := []error{
		l.Insert(5, "x"),
		l.RemoveAt(1),
		l.Set(-1, "x"),
		l.Move(0, 1),
	}
	for i, err := range checks {
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("check %d: err = %v, want ErrIndexOutOfRange", i, err)
		}
	}
	if len(*events) != 0 {
		t.Errorf("failed mutations raised %d events", len(*events))
	}
}

func TestList_Untyped(t *testing.T) {
	l := NewList[*person]()
	p := &person{Name: "a"}

	if err := l.InsertItem(0, p); err != nil {
		t.Fatal(err)
	}
	if err := l.InsertItem(1, nil); err != nil {
		t.Fatal(err)
	}
	if err := l.SetItem(0, "nope"); !errors.Is(err, ErrItemType) {
		t.Errorf("SetItem(string) err = %v, want ErrItemType", err)
	}
	if l.Item(0) != any(p) {
		t.Error("Item(0) is not the inserted pointer")
	}
	if l.At(1) != nil {
		t.Error("nil item was not stored as nil")
	}

	var nilList *List[int]
	if got := nilList.ElemType(); got != reflect.TypeFor[int]() {
		t.Errorf("ElemType() on nil list = %v", got)
	}
}

func TestList_RemoveByIdentity(t *testing.T) {
	a, b := &person{Name: "x"}, &person{Name: "x"}
	l := NewList(a, b)

	found, err := l.Remove(b)
	if err != nil || !found {
		t.Fatalf("Remove = %v, %v", found, err)
	}
	if l.Len() != 1 || l.At(0) != a {
		t.Error("Remove removed the wrong item")
	}

	found, err = l.Remove(b)
	if err != nil || found {
		t.Errorf("second Remove = %v, %v, want false, nil", found, err)
	}
}

func TestList_All(t *testing.T) {
	l := NewList("a", "b", "c")
	var got []string
	for i, v := range l.All() {
		if i == 2 {
			break
		}
		got = append(got, v)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
}

func TestList_HandlerMayMutate(t *testing.T) {
	l := NewList[int]()
	l.SubscribeCollectionChanged(func(sender any, e CollectionChangedEventArgs) error {
		if e.Action == ActionAdd && l.Len() < 3 {
			return l.Add(l.Len())
		}
		return nil
	})

	if err := l.Add(0); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
}
