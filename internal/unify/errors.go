package unify

import (
	"errors"
	"fmt"
)

// ErrConflict matches every *ConflictError.
var ErrConflict = errors.New("unification conflict")

// ConflictError reports two meta-variables or shapes that cannot be equal.
type ConflictError struct {
	Left, Right string
	Reason      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot unify %s with %s: %s", e.Left, e.Right, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
