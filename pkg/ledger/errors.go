package ledger

import "github.com/pkg/errors"

var (
	// ErrAlreadyExists means an intent id collided with a stored intent.
	ErrAlreadyExists = errors.New("intent already exists")
	// ErrIntentNotFound means no intent is stored under the id.
	ErrIntentNotFound = errors.New("intent not found")
	// ErrInvalidStatus means the intent is not in a state that permits the
	// requested transition.
	ErrInvalidStatus = errors.New("invalid intent status")
	// ErrInvalidAmount means a zero or negative amount was supplied.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidDeadline means the deadline is not in the future.
	ErrInvalidDeadline = errors.New("invalid deadline")
	// ErrNotExpired means refund was requested before the deadline.
	ErrNotExpired = errors.New("intent not expired")
	// ErrNotAuthorized means the caller may not perform the operation.
	ErrNotAuthorized = errors.New("caller not authorized")
)
