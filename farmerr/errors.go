// Package farmerr holds the error taxonomy shared by the farm packages.
//
// Every typed error matches its sentinel with errors.Is, so callers can branch
// on the category without caring which package produced it.
package farmerr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per category.
var (
	// ErrLayoutLoad is fatal: the process cannot start without a valid layout or catalog.
	ErrLayoutLoad = errors.New("layout load failed")
	// ErrRecordCorrupt marks a single durable record that could not be recovered.
	ErrRecordCorrupt = errors.New("record corrupt")
	// ErrNotFound is returned for unknown catalog names, slot ids, zone ids or plant ids.
	ErrNotFound = errors.New("not found")
	// ErrNoOp reports an operation that had nothing to do, e.g. promoting a Full plant.
	ErrNoOp = errors.New("no-op")
)

// LayoutLoadError wraps the failure of a static description file.
type LayoutLoadError struct {
	Path string
	Err  error
}

func (e *LayoutLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LayoutLoadError) Unwrap() error { return e.Err }

func (e *LayoutLoadError) Is(target error) bool { return target == ErrLayoutLoad }

// RecordCorruptError identifies one durable record by kind and key.
type RecordCorruptError struct {
	Kind string
	Key  string
	Err  error
}

func (e *RecordCorruptError) Error() string {
	return fmt.Sprintf("%s record %q corrupt: %v", e.Kind, e.Key, e.Err)
}

func (e *RecordCorruptError) Unwrap() error { return e.Err }

func (e *RecordCorruptError) Is(target error) bool { return target == ErrRecordCorrupt }

// NotFoundError names what was looked up.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NoOpError is informational; state was left unchanged.
type NoOpError struct {
	Op     string
	Reason string
}

func (e *NoOpError) Error() string {
	return fmt.Sprintf("%s: nothing to do: %s", e.Op, e.Reason)
}

func (e *NoOpError) Is(target error) bool { return target == ErrNoOp }

// NotFound is shorthand for building a NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}
