// Package trackerr defines the two failure kinds of the tracking engine:
// classification failures, raised when a reachable type cannot be handled under
// the active reference handling, and misuse failures, raised when a caller
// breaks a tracker's contract.
package trackerr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/dshills/statetrack/settings"
)

// Kind sentinels. Every ClassificationError matches ErrClassification and every
// MisuseError matches ErrMisuse under errors.Is.
var (
	// ErrClassification matches every classification failure.
	ErrClassification = errors.New("classification failure")

	// ErrMisuse matches every misuse failure.
	ErrMisuse = errors.New("misuse")
)

// Classification reasons.
var (
	// ErrNotTrackable is returned for a complex member under Throw handling.
	ErrNotTrackable = errors.New("type is not trackable")

	// ErrReferenceLoop is returned when a graph contains a cycle that the
	// handling does not tolerate.
	ErrReferenceLoop = errors.New("reference loop")

	// ErrUnsupportedType is returned for functions, channels and unsafe pointers.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotNotifying is returned when a complex value must be watched but exposes
	// no change notifications.
	ErrNotNotifying = errors.New("type does not notify changes")
)

// Misuse reasons.
var (
	// ErrTargetModified is returned when a synchronizer's target is mutated directly.
	ErrTargetModified = errors.New("synchronization target modified directly")

	// ErrNotReachable is returned when a member no longer exists on the counterpart graph.
	ErrNotReachable = errors.New("member not reachable")

	// ErrDisposed is returned when a disposed tracker or node is used.
	ErrDisposed = errors.New("already disposed")

	// ErrTypeMismatch is returned when two graphs do not have the same shape.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNilRoot is returned when a tracker is created over nil.
	ErrNilRoot = errors.New("root is nil")
)

// ClassificationError reports a type that cannot be handled.
type ClassificationError struct {
	// Path locates the offending member from the root, for example Person.Pets[1].Owner.
	Path string

	// Type is the offending type.
	Type reflect.Type

	// Handling is the active reference handling.
	Handling settings.ReferenceHandling

	// Reason is optional detail.
	Reason string

	// Err is one of the classification reasons.
	Err error
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	var b strings.Builder
	b.WriteString("cannot track ")
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(" ")
	}
	if e.Type != nil {
		b.WriteString("(")
		b.WriteString(e.Type.String())
		b.WriteString(") ")
	}
	b.WriteString("with ")
	b.WriteString(e.Handling.String())
	b.WriteString(" reference handling: ")
	b.WriteString(e.Err.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Unwrap returns the underlying reason.
func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrClassification.
func (e *ClassificationError) Is(target error) bool {
	return target == ErrClassification
}

// MisuseError reports a broken tracker contract.
type MisuseError struct {
	// Op names the operation that detected the misuse.
	Op string

	// Path locates the member involved, if any.
	Path string

	// Err is one of the misuse reasons.
	Err error
}

// Error implements the error interface.
func (e *MisuseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying reason.
func (e *MisuseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMisuse.
func (e *MisuseError) Is(target error) bool {
	return target == ErrMisuse
}

// Classify builds a ClassificationError.
func Classify(path string, t reflect.Type, s *settings.Settings, reason error, detail string) *ClassificationError {
	return &ClassificationError{
		Path:     path,
		Type:     t,
		Handling: s.ReferenceHandling(),
		Reason:   detail,
		Err:      reason,
	}
}

// Misuse builds a MisuseError.
func Misuse(op, path string, reason error) *MisuseError {
	return &MisuseError{Op: op, Path: path, Err: reason}
}

// JoinPath appends a member to a path.
func JoinPath(path, member string) string {
	if path == "" {
		return member
	}
	return path + "." + member
}

// IndexPath appends an index to a path.
func IndexPath(path string, index string) string {
	return path + "[" + index + "]"
}
