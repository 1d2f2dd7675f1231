package contract

import (
	"errors"
	"fmt"

	"github.com/huangsam/teampulse/schema"
)

// Sentinel errors shared across layers. Wrap them with fmt.Errorf and %w.
var (
	// ErrNotFound is returned when a project, alert or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransientFetch is returned when an external source cannot be reached.
	// The scheduler retries it with backoff; watermarks are left untouched.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrMergeConflict is returned when concurrent writers kept colliding after all retries.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrCacheWrite is returned by cache stores when a snapshot cannot be written.
	ErrCacheWrite = errors.New("cache write failure")

	// ErrIntegrity signals a broken storage invariant such as a negative counter
	// or a second unresolved alert for the same target.
	ErrIntegrity = errors.New("integrity violation")
)

// AttributionError describes an event whose actor matched no roster identity.
type AttributionError struct {
	Source  schema.Source
	EventID string
	Actor   string
}

func (e *AttributionError) Error() string {
	return fmt.Sprintf("unattributed %s event %s from %q", e.Source, e.EventID, e.Actor)
}

// IsTransient reports whether err should be retried by the scheduler.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}
