package attempt

import "errors"

var (
	ErrIllegalTransition = errors.New("illegal page transition")
	ErrNotActive         = errors.New("attempt is not in progress")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrInvalidOption     = errors.New("option does not belong to the current question")
	ErrNotLastQuestion   = errors.New("submit is only allowed on the last question")
	ErrViolationPending  = errors.New("a violation must be acknowledged first")
	ErrNoViolation       = errors.New("no violation to acknowledge")
	ErrAutoSubmitting    = errors.New("attempt is being submitted")
	ErrUnknownAction     = errors.New("unknown action")
	ErrClosed            = errors.New("attempt is closed")
	ErrNoQuestions       = errors.New("test has no questions")
)
