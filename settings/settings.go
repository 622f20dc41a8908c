// Package settings holds the immutable configuration shared by statetrack
// trackers: how complex members are handled and which types and members are
// excluded from tracking, comparison and copying.
//
// Settings values are interned. Two calls to New with the same contents return
// the same pointer, so trackers built separately over the same object with
// equal settings share one subscription tree.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidReferenceHandling is returned when a reference handling name is not recognized.
var ErrInvalidReferenceHandling = errors.New("invalid reference handling")

// ReferenceHandling is the policy for members that are neither immutable nor primitive.
type ReferenceHandling int

const (
	// Throw rejects any complex member.
	Throw ReferenceHandling = iota

	// References treats complex members as opaque references compared and
	// copied by identity.
	References

	// Structural recurses into complex members. A reference loop is an error.
	Structural

	// StructuralWithReferenceLoops recurses into complex members and truncates
	// reference loops instead of recursing forever.
	StructuralWithReferenceLoops
)

// String returns the canonical name of the handling.
func (h ReferenceHandling) String() string {
	switch h {
	case Throw:
		return "throw"
	case References:
		return "references"
	case Structural:
		return "structural"
	case StructuralWithReferenceLoops:
		return "structural-with-reference-loops"
	default:
		return "unknown"
	}
}

// ParseReferenceHandling parses a handling name. Matching is case-insensitive and
// accepts underscores in place of dashes.
func ParseReferenceHandling(s string) (ReferenceHandling, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch norm {
	case "throw":
		return Throw, nil
	case "references", "reference":
		return References, nil
	case "structural":
		return Structural, nil
	case "structural-with-reference-loops", "structuralwithreferenceloops":
		return StructuralWithReferenceLoops, nil
	default:
		return Throw, fmt.Errorf("%q: %w", s, ErrInvalidReferenceHandling)
	}
}

// Settings is an immutable, interned tracker configuration.
type Settings struct {
	handling       ReferenceHandling
	ignoredTypes   map[string]struct{}
	ignoredMembers map[string]struct{}
	immutableTypes map[string]struct{}
	key            string
}

// Option configures Settings under construction.
type Option func(*builder)

type builder struct {
	ignoredTypes   map[string]struct{}
	ignoredMembers map[string]struct{}
	immutableTypes map[string]struct{}
}

// IgnoreType excludes members of type t (or *t) everywhere.
func IgnoreType(t reflect.Type) Option {
	return IgnoreTypeName(TypeName(t))
}

// IgnoreTypeOf excludes members of type T (or *T) everywhere.
func IgnoreTypeOf[T any]() Option {
	return IgnoreType(reflect.TypeFor[T]())
}

// IgnoreTypeName excludes members whose type name, as returned by TypeName, is name.
func IgnoreTypeName(name string) Option {
	return func(b *builder) {
		b.ignoredTypes[name] = struct{}{}
	}
}

// IgnoreMember excludes member name of owner type t.
func IgnoreMember(t reflect.Type, name string) Option {
	return IgnoreMemberName(TypeName(t) + "." + name)
}

// IgnoreMemberOf excludes member name of owner type T.
func IgnoreMemberOf[T any](name string) Option {
	return IgnoreMember(reflect.TypeFor[T](), name)
}

// IgnoreMemberName excludes a member given as "TypeName.Member".
func IgnoreMemberName(qualified string) Option {
	return func(b *builder) {
		b.ignoredMembers[qualified] = struct{}{}
	}
}

// Immutable declares that values of type t never change once created, so they are
// compared and copied as values and never subscribed to.
func Immutable(t reflect.Type) Option {
	return ImmutableTypeName(TypeName(t))
}

// ImmutableOf declares type T immutable.
func ImmutableOf[T any]() Option {
	return Immutable(reflect.TypeFor[T]())
}

// ImmutableTypeName declares the named type immutable.
func ImmutableTypeName(name string) Option {
	return func(b *builder) {
		b.immutableTypes[name] = struct{}{}
	}
}

var (
	internMu sync.Mutex
	interned = make(map[string]*Settings)
)

// New returns the interned Settings for handling and opts.
func New(handling ReferenceHandling, opts ...Option) *Settings {
	b := &builder{
		ignoredTypes:   make(map[string]struct{}),
		ignoredMembers: make(map[string]struct{}),
		immutableTypes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	key := internKey(handling, b)

	internMu.Lock()
	defer internMu.Unlock()

	if s, ok := interned[key]; ok {
		return s
	}
	s := &Settings{
		handling:       handling,
		ignoredTypes:   b.ignoredTypes,
		ignoredMembers: b.ignoredMembers,
		immutableTypes: b.immutableTypes,
		key:            key,
	}
	interned[key] = s
	return s
}

// Default returns the interned Settings with no exclusions for handling.
func Default(handling ReferenceHandling) *Settings {
	return New(handling)
}

// Resolve returns the Settings a tracker uses for handling when none are given.
func Resolve(handling ReferenceHandling) *Settings {
	return Default(handling)
}

// ReferenceHandling returns the handling policy.
func (s *Settings) ReferenceHandling() ReferenceHandling {
	return s.handling
}

// Recurses reports whether complex members are tracked structurally.
func (s *Settings) Recurses() bool {
	return s.handling == Structural || s.handling == StructuralWithReferenceLoops
}

// ToleratesLoops reports whether reference loops are truncated instead of rejected.
func (s *Settings) ToleratesLoops() bool {
	return s.handling == StructuralWithReferenceLoops
}

// IsIgnoredType reports whether members of type t are excluded.
func (s *Settings) IsIgnoredType(t reflect.Type) bool {
	if len(s.ignoredTypes) == 0 || t == nil {
		return false
	}
	_, ok := s.ignoredTypes[TypeName(t)]
	return ok
}

// IsIgnoredMember reports whether member name of owner type is excluded.
func (s *Settings) IsIgnoredMember(owner reflect.Type, name string) bool {
	if len(s.ignoredMembers) == 0 || owner == nil {
		return false
	}
	_, ok := s.ignoredMembers[TypeName(owner)+"."+name]
	return ok
}

// IsImmutable reports whether type t was declared immutable.
func (s *Settings) IsImmutable(t reflect.Type) bool {
	if len(s.immutableTypes) == 0 || t == nil {
		return false
	}
	_, ok := s.immutableTypes[TypeName(t)]
	return ok
}

// IgnoredTypes returns the ignored type names, sorted.
func (s *Settings) IgnoredTypes() []string { return sortedKeys(s.ignoredTypes) }

// IgnoredMembers returns the ignored qualified member names, sorted.
func (s *Settings) IgnoredMembers() []string { return sortedKeys(s.ignoredMembers) }

// ImmutableTypes returns the declared immutable type names, sorted.
func (s *Settings) ImmutableTypes() []string { return sortedKeys(s.immutableTypes) }

// String renders the settings on one line.
func (s *Settings) String() string {
	return s.key
}

// TypeName returns the name used to match t in settings: the String form of t
// with one level of pointer removed. Type arguments are qualified by package
// name like every other type, not by import path.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.String()
	if !strings.ContainsRune(name, '/') {
		return name
	}
	var b strings.Builder
	start := 0
	word := func(end int) {
		w := name[start:end]
		if i := strings.LastIndexByte(w, '/'); i >= 0 {
			w = w[i+1:]
		}
		b.WriteString(w)
	}
	for i := 0; i < len(name); i++ {
		if strings.IndexByte("[]*(), ", name[i]) >= 0 {
			word(i)
			b.WriteByte(name[i])
			start = i + 1
		}
	}
	word(len(name))
	return b.String()
}

// internKey builds the canonical identity of a configuration.
func internKey(h ReferenceHandling, b *builder) string {
	var sb strings.Builder
	sb.WriteString(h.String())
	write := func(label string, set map[string]struct{}) {
		if len(set) == 0 {
			return
		}
		sb.WriteString(" ")
		sb.WriteString(label)
		sb.WriteString("=[")
		sb.WriteString(strings.Join(sortedKeys(set), ","))
		sb.WriteString("]")
	}
	write("ignore-types", b.ignoredTypes)
	write("ignore-members", b.ignoredMembers)
	write("immutable", b.immutableTypes)
	return sb.String()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
