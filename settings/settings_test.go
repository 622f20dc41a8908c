package settings

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type person struct {
	Name  string
	Cache map[string]int
}

type money struct {
	Amount int
}

type box[K comparable, V any] struct {
	Items map[K]V
}

func TestReferenceHandlingRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  ReferenceHandling
	}{
		{"throw", Throw},
		{"References", References},
		{"STRUCTURAL", Structural},
		{"structural-with-reference-loops", StructuralWithReferenceLoops},
		{"structural_with_reference_loops", StructuralWithReferenceLoops},
		{" structural ", Structural},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReferenceHandling(tt.input)
			if err != nil {
				t.Fatalf("ParseReferenceHandling(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseReferenceHandling(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if again, _ := ParseReferenceHandling(got.String()); again != got {
				t.Errorf("String() %q does not parse back", got.String())
			}
		})
	}

	if _, err := ParseReferenceHandling("deep"); !errors.Is(err, ErrInvalidReferenceHandling) {
		t.Errorf("expected ErrInvalidReferenceHandling, got %v", err)
	}
}

func TestNewInterns(t *testing.T) {
	a := New(Structural, IgnoreTypeOf[time.Location](), IgnoreMemberOf[person]("Cache"))
	b := New(Structural, IgnoreMemberName("settings.person.Cache"), IgnoreTypeName("time.Location"))
	if a != b {
		t.Errorf("equal settings were not interned: %v vs %v", a, b)
	}

	if New(References) == New(Structural) {
		t.Error("different handling shares an instance")
	}
	if Default(Structural) != Resolve(Structural) {
		t.Error("Resolve does not return the default instance")
	}
}

func TestPredicates(t *testing.T) {
	s := New(StructuralWithReferenceLoops,
		IgnoreMemberOf[person]("Cache"),
		IgnoreTypeOf[time.Location](),
		ImmutableOf[money](),
	)

	if !s.IsIgnoredMember(reflect.TypeFor[*person](), "Cache") {
		t.Error("Cache should be ignored on *person")
	}
	if s.IsIgnoredMember(reflect.TypeFor[person](), "Name") {
		t.Error("Name should not be ignored")
	}
	if !s.IsIgnoredType(reflect.TypeFor[*time.Location]()) {
		t.Error("*time.Location should be ignored")
	}
	if !s.IsImmutable(reflect.TypeFor[money]()) {
		t.Error("money should be immutable")
	}
	if !s.Recurses() || !s.ToleratesLoops() {
		t.Error("structural-with-reference-loops should recurse and tolerate loops")
	}

	plain := Default(References)
	if plain.Recurses() || plain.ToleratesLoops() {
		t.Error("references should neither recurse nor tolerate loops")
	}
	if plain.IsIgnoredType(reflect.TypeFor[int]()) {
		t.Error("default settings ignore nothing")
	}
}

func TestStringListsExclusions(t *testing.T) {
	s := New(Structural, IgnoreTypeName("b.T"), IgnoreTypeName("a.T"))
	want := "structural ignore-types=[a.T,b.T]"
	if s.String() != want {
		t.Errorf("String() = %q, want %q", s.String(), want)
	}
	if got := s.IgnoredTypes(); len(got) != 2 || got[0] != "a.T" {
		t.Errorf("IgnoredTypes() = %v", got)
	}
	if Default(Throw).String() != "throw" {
		t.Errorf("Default(Throw).String() = %q", Default(Throw).String())
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(reflect.TypeFor[*person]()); got != "settings.person" {
		t.Errorf("TypeName(*person) = %q", got)
	}
	if got := TypeName(reflect.TypeFor[[]int]()); got != "[]int" {
		t.Errorf("TypeName([]int) = %q", got)
	}
	if got := TypeName(nil); got != "<nil>" {
		t.Errorf("TypeName(nil) = %q", got)
	}
	if got := TypeName(reflect.TypeFor[*box[string, []*money]]()); got != "settings.box[string,[]*settings.money]" {
		t.Errorf("TypeName(*box) = %q", got)
	}

	s := New(Structural, IgnoreType(reflect.TypeFor[box[int, *person]]()))
	if !s.IsIgnoredType(reflect.TypeFor[*box[int, *person]]()) {
		t.Error("generic type not matched by its own name")
	}
}
