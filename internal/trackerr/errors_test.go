package trackerr

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/dshills/statetrack/settings"
)

type pet struct{}

func TestClassificationError(t *testing.T) {
	err := Classify("Person.Pets[1].Owner", reflect.TypeFor[*pet](), settings.Default(settings.Structural), ErrReferenceLoop, "")

	want := "cannot track Person.Pets[1].Owner (*trackerr.pet) with structural reference handling: reference loop"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("verify: %w", err)
	if !errors.Is(wrapped, ErrClassification) {
		t.Error("should match ErrClassification")
	}
	if !errors.Is(wrapped, ErrReferenceLoop) {
		t.Error("should match its reason")
	}
	if errors.Is(wrapped, ErrMisuse) {
		t.Error("should not match ErrMisuse")
	}

	var ce *ClassificationError
	if !errors.As(wrapped, &ce) || ce.Path != "Person.Pets[1].Owner" {
		t.Errorf("errors.As lost the path: %+v", ce)
	}
}

func TestClassificationErrorDetail(t *testing.T) {
	err := Classify("", reflect.TypeFor[chan int](), settings.Default(settings.Throw), ErrUnsupportedType, "channels cannot be tracked")
	want := "cannot track (chan int) with throw reference handling: unsupported type: channels cannot be tracked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestMisuseError(t *testing.T) {
	err := Misuse("synchronize", "Child.Name", ErrTargetModified)

	if err.Error() != "synchronize Child.Name: synchronization target modified directly" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrMisuse) || !errors.Is(err, ErrTargetModified) {
		t.Error("should match ErrMisuse and its reason")
	}
	if errors.Is(err, ErrClassification) {
		t.Error("should not match ErrClassification")
	}
	if got := Misuse("track", "", ErrNilRoot).Error(); got != "track: root is nil" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPaths(t *testing.T) {
	p := JoinPath("", "Person")
	p = JoinPath(p, "Pets")
	p = IndexPath(p, "1")
	p = JoinPath(p, "Owner")
	if p != "Person.Pets[1].Owner" {
		t.Errorf("path = %q", p)
	}
}
