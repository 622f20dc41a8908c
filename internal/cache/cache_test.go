package cache

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"testing"
	"weak"

	"github.com/dshills/statetrack/internal/logging"
)

type value struct {
	id        int
	disposed  int
	onDispose func()
}

func (v *value) Dispose() {
	v.disposed++
	if v.onDispose != nil {
		v.onDispose()
	}
}

func counter() func() (*value, error) {
	n := 0
	return func() (*value, error) {
		n++
		return &value{id: n}, nil
	}
}

func TestGetOrCreateShares(t *testing.T) {
	c := New[string, *value]("test")
	factory := counter()

	h1, created, err := c.GetOrCreate("a", factory)
	if err != nil || !created {
		t.Fatalf("first GetOrCreate = %v, %v", created, err)
	}
	h2, created, _ := c.GetOrCreate("a", factory)
	if created {
		t.Error("second GetOrCreate should reuse the entry")
	}
	if h1.Value() != h2.Value() {
		t.Error("handles should share one value")
	}
	if c.Refs("a") != 2 || c.Len() != 1 {
		t.Errorf("refs = %d, len = %d", c.Refs("a"), c.Len())
	}

	first := h1.Value()
	h1.Release()
	if first.disposed != 0 {
		t.Error("value disposed while a handle is outstanding")
	}
	h2.Release()
	if first.disposed != 1 {
		t.Errorf("disposed %d times, want 1", first.disposed)
	}
	if c.Len() != 0 {
		t.Errorf("len = %d after last release", c.Len())
	}

	h3, created, _ := c.GetOrCreate("a", factory)
	defer h3.Release()
	if !created || h3.Value() == first {
		t.Error("a fresh value should be built after the last release")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	c := New[string, *value]("test")
	h, _, _ := c.GetOrCreate("a", counter())
	other, _, _ := c.GetOrCreate("a", counter())
	v := h.Value()

	h.Release()
	h.Release()
	if c.Refs("a") != 1 {
		t.Errorf("double release dropped two references: refs = %d", c.Refs("a"))
	}
	if h.Value() != nil {
		t.Error("released handle should be empty")
	}
	if other.Value() != v {
		t.Error("remaining handle should keep the value")
	}
	other.Release()
	if v.disposed != 1 {
		t.Errorf("disposed = %d", v.disposed)
	}
}

func TestStaleHandleLeavesNewEntry(t *testing.T) {
	c := New[string, *value]("test")
	h, _, _ := c.GetOrCreate("a", counter())
	h.Release()
	fresh, _, _ := c.GetOrCreate("a", counter())
	defer fresh.Release()

	h.Release()
	if c.Refs("a") != 1 || fresh.Value().disposed != 0 {
		t.Errorf("stale release touched the new entry: refs = %d", c.Refs("a"))
	}
}

func TestFactoryError(t *testing.T) {
	c := New[string, *value]("test")
	boom := errors.New("boom")
	_, _, err := c.GetOrCreate("a", func() (*value, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed factory should not leave an entry")
	}
}

func TestDisposeMayReenter(t *testing.T) {
	c := New[string, *value]("test")
	child, _, _ := c.GetOrCreate("child", counter())
	parent, _, _ := c.GetOrCreate("parent", counter())
	parent.Value().onDispose = func() {
		child.Release()
		if _, ok := c.Peek("parent"); ok {
			t.Error("parent should already be removed during its disposal")
		}
	}

	parent.Release()
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}

func TestPeek(t *testing.T) {
	c := New[string, *value]("test")
	h, _, _ := c.GetOrCreate("a", counter())
	defer h.Release()

	if v, ok := c.Peek("a"); !ok || v != h.Value() {
		t.Error("Peek should return the live value")
	}
	if c.Refs("a") != 1 {
		t.Error("Peek must not take a reference")
	}
	if _, ok := c.Peek("b"); ok {
		t.Error("Peek of absent key")
	}
}

func TestReleasedValueIsCollectable(t *testing.T) {
	c := New[string, *value]("test")

	wp, h := acquireWeak(c)
	h.Release()

	runtime.GC()
	runtime.GC()
	if wp.Value() != nil {
		t.Error("released value is still reachable")
	}
}

// acquireWeak keeps the only strong reference inside the cache and handle.
func acquireWeak(c *Cache[string, *value]) (weak.Pointer[value], *Handle[string, *value]) {
	h, _, _ := c.GetOrCreate("a", counter())
	return weak.Make(h.Value()), h
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logging.Set(logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf}))
	t.Cleanup(func() { logging.Set(nil) })

	c := New[string, *value]("nodes")
	h, _, _ := c.GetOrCreate("a", counter())
	h.Release()

	out := buf.String()
	if !strings.Contains(out, "created {cache=nodes, component=cache, gen=1, key=string}") {
		t.Errorf("missing create record: %q", out)
	}
	if !strings.Contains(out, "disposing") {
		t.Errorf("missing dispose record: %q", out)
	}
}
