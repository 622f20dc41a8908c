package statetrack

import (
	"reflect"

	"github.com/dshills/statetrack/internal/verify"
)

// VerifyCanTrackChanges checks that Track(root) would succeed.
func VerifyCanTrackChanges(root any, opts ...Option) error {
	return verify.Changes(root, newConfig(opts).settings)
}

// VerifyCanTrackDirty checks that TrackDirty(x, y) would succeed.
func VerifyCanTrackDirty(x, y any, opts ...Option) error {
	return verify.Dirty(x, y, newConfig(opts).settings)
}

// VerifyCanSynchronize checks that Synchronize(source, target) would succeed.
func VerifyCanSynchronize(source, target any, opts ...Option) error {
	return verify.Synchronize(source, target, newConfig(opts).settings)
}

// VerifyCanDiff checks that DiffBy(x, y) would succeed.
func VerifyCanDiff(x, y any, opts ...Option) error {
	return verify.Comparable(x, y, newConfig(opts).settings)
}

// VerifyTypeCanTrackChanges checks every value of type T could be tracked.
// Interface members are checked when tracking starts.
func VerifyTypeCanTrackChanges[T any](opts ...Option) error {
	return verify.TypeChanges(reflect.TypeFor[T](), newConfig(opts).settings)
}

// VerifyTypeCanTrackDirty checks every value of type T could be dirty tracked.
func VerifyTypeCanTrackDirty[T any](opts ...Option) error {
	return verify.TypeDirty(reflect.TypeFor[T](), newConfig(opts).settings)
}

// VerifyTypeCanSynchronize checks every value of type T could be synchronized.
func VerifyTypeCanSynchronize[T any](opts ...Option) error {
	return verify.TypeSynchronize(reflect.TypeFor[T](), newConfig(opts).settings)
}

// VerifyTypeCanDiff checks every value of type T could be compared.
func VerifyTypeCanDiff[T any](opts ...Option) error {
	return verify.TypeComparable(reflect.TypeFor[T](), newConfig(opts).settings)
}
