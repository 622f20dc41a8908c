package statetrack

import "github.com/dshills/statetrack/internal/trackerr"

// Error classes. Every error returned by the package matches one of them with
// errors.Is.
var (
	// ErrClassification is matched by errors about a graph or type that
	// cannot be handled under the given settings.
	ErrClassification = trackerr.ErrClassification

	// ErrMisuse is matched by errors about using a tracker the wrong way.
	ErrMisuse = trackerr.ErrMisuse
)

// Classification reasons.
var (
	ErrNotTrackable    = trackerr.ErrNotTrackable
	ErrReferenceLoop   = trackerr.ErrReferenceLoop
	ErrUnsupportedType = trackerr.ErrUnsupportedType
	ErrNotNotifying    = trackerr.ErrNotNotifying
)

// Misuse reasons.
var (
	ErrTargetModified = trackerr.ErrTargetModified
	ErrNotReachable   = trackerr.ErrNotReachable
	ErrDisposed       = trackerr.ErrDisposed
	ErrTypeMismatch   = trackerr.ErrTypeMismatch
	ErrNilRoot        = trackerr.ErrNilRoot
)

// ClassificationError locates a member that cannot be tracked.
type ClassificationError = trackerr.ClassificationError

// MisuseError reports a tracker used the wrong way.
type MisuseError = trackerr.MisuseError
