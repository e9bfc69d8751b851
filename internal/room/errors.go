package room

import "errors"

// ErrNotFound is returned when a room, player, or submission does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when a privileged operation is attempted
// without the room's host secret. Callers treat it as a silent no-op on
// room state; nothing is mutated.
var ErrUnauthorized = errors.New("host secret mismatch")

// ErrStateConflict is returned when an operation is not valid in the
// room's current state, e.g. revealing while sudden death is active or
// submitting after answers closed.
var ErrStateConflict = errors.New("state conflict")

// ErrAlreadyJudged is returned by the one-shot judging guard: the
// submission was graded before, and grading is applied at most once.
var ErrAlreadyJudged = errors.New("already judged")

// ErrValidation is returned for malformed input such as an empty player
// name or an out-of-range question index.
var ErrValidation = errors.New("validation failed")

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
