package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrVersionConflict is matched by every *OptimisticLockError.
var ErrVersionConflict = errors.New("version conflict")

// Versioned entities carry a version that Update checks and increments.
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// OptimisticLockError reports that the stored entity moved on since it was read.
type OptimisticLockError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("%s: entity %s is at version %d, update was based on %d",
		ErrVersionConflict, e.ID, e.Actual, e.Expected)
}

func (e *OptimisticLockError) Unwrap() error { return ErrVersionConflict }

// versionOf reads a stored version field. Missing or non-numeric values are 0.
func versionOf(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
