package gtt23

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/container"
)

var (
	// ErrNotFound is returned when the dataset file, a container object or a
	// looked-up record does not exist.
	ErrNotFound = container.ErrNotFound

	// ErrFormat is returned when the file cannot be parsed as a container.
	ErrFormat = container.ErrFormat

	// ErrOutOfRange is returned for offsets or ranges beyond the record count.
	ErrOutOfRange = container.ErrOutOfRange

	// ErrClosed is returned by every operation on a closed Dataset.
	ErrClosed = container.ErrClosed

	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrCorruptRecord  = errors.New("corrupt record")
	ErrNonMonotonic   = errors.New("non-monotonic timestamps")
)

// SchemaMismatchError reports the first structural difference between a
// container and the expected schema.
type SchemaMismatchError struct {
	Path     string
	Expected string
	Found    string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch at %s: expected %s, found %s", e.Path, e.Expected, e.Found)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// CorruptRecordError reports a record whose stored fields are inconsistent.
// Err is set when the record could not be read at all.
type CorruptRecordError struct {
	Offset uint64
	Reason string
	Err    error
}

func (e *CorruptRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt record %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt record %d: %s", e.Offset, e.Reason)
}

func (e *CorruptRecordError) Is(target error) bool {
	return target == ErrCorruptRecord
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}

// NonMonotonicError reports the first timestamp that is smaller than its
// predecessor.
type NonMonotonicError struct {
	Offset uint64
	Index  int
	Prev   float64
	Time   float64
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("record %d: timestamp %d (%g) precedes previous (%g)", e.Offset, e.Index, e.Time, e.Prev)
}

func (e *NonMonotonicError) Is(target error) bool {
	return target == ErrNonMonotonic
}
