package statetrack

import (
	"github.com/dshills/statetrack/diff"
	"github.com/dshills/statetrack/internal/compare"
	"github.com/dshills/statetrack/internal/copier"
)

// DiffBy returns the differences between x and y, or nil when they are equal.
// Plain slices, arrays, maps and struct values are compared too.
func DiffBy(x, y any, opts ...Option) (*diff.ValueDiff, error) {
	return compare.Diff(x, y, newConfig(opts).settings)
}

// EqualBy reports whether x and y have no differences.
func EqualBy(x, y any, opts ...Option) (bool, error) {
	return compare.Equal(x, y, newConfig(opts).settings)
}

// Copy makes target equal to source. Existing target objects are reused
// where the types allow.
func Copy(source, target any, opts ...Option) error {
	return copier.Copy(source, target, newConfig(opts).settings)
}
