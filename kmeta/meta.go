// Package kmeta holds the compatibility check for persisted metadata. A
// decoder that cannot interpret stored bytes returns Incompatible, which is
// distinct from errors raised while executing a pipeline.
package kmeta

import (
	"errors"
	"fmt"
)

const (
	// Version is written into every encoded metadata object.
	Version uint64 = 1
	// OldestCompatible is the lowest version this build can read.
	OldestCompatible uint64 = 1
)

// Incompatible reports stored metadata this build cannot read.
type Incompatible struct {
	Reason string
}

func (e *Incompatible) Error() string {
	return "incompatible metadata: " + e.Reason
}

// Incompatiblef formats a Reason.
func Incompatiblef(format string, args ...any) *Incompatible {
	return &Incompatible{Reason: fmt.Sprintf(format, args...)}
}

// IsIncompatible reports whether err carries an Incompatible.
func IsIncompatible(err error) bool {
	var inc *Incompatible
	return errors.As(err, &inc)
}

// CheckVersion rejects versions outside [OldestCompatible, Version].
func CheckVersion(ver uint64) error {
	if ver > Version {
		return Incompatiblef("ver=%d is not compatible with [%d, %d]: newer than this build", ver, OldestCompatible, Version)
	}
	if ver < OldestCompatible {
		return Incompatiblef("ver=%d is not compatible with [%d, %d]: too old", ver, OldestCompatible, Version)
	}
	return nil
}

// Require returns an Incompatible naming a missing field when v is nil.
func Require[T any](v *T, field string) (*T, error) {
	if v == nil {
		return nil, Incompatiblef("%s can not be None", field)
	}
	return v, nil
}
