package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Test & attempt ────────────────────────────────────────────────
	ErrTestNotFound      ErrCode = "TEST_NOT_FOUND"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrAttemptNotFound   ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotActive  ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAttemptFinished   ErrCode = "ATTEMPT_FINISHED"
	ErrIllegalAction     ErrCode = "ILLEGAL_ACTION"
	ErrViolationPending  ErrCode = "VIOLATION_PENDING"
	ErrAutoSubmitting    ErrCode = "AUTO_SUBMITTING"
	ErrNotLastQuestion   ErrCode = "NOT_LAST_QUESTION"
	ErrInvalidOption     ErrCode = "INVALID_OPTION"
	ErrQuestionRange     ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrSessionKeyMissing ErrCode = "SESSION_KEY_MISSING"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrBackendUnavailable ErrCode = "BACKEND_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Some fields are invalid."
	case ErrInvalidID:
		return "The identifier is not valid."
	case ErrInvalidPayload:
		return "The request body could not be read."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Test & attempt ────────────────────────────────────────────────
	case ErrTestNotFound:
		return "No test exists with that name."
	case ErrNoQuestions:
		return "This test has no questions yet."
	case ErrAttemptNotFound:
		return "The attempt does not exist or has expired."
	case ErrAttemptNotActive:
		return "The test is not in progress."
	case ErrAttemptFinished:
		return "The test has already been submitted."
	case ErrIllegalAction:
		return "That action is not allowed right now."
	case ErrViolationPending:
		return "Return to the test before continuing."
	case ErrAutoSubmitting:
		return "Your test is being submitted automatically."
	case ErrNotLastQuestion:
		return "You can only submit from the last question."
	case ErrInvalidOption:
		return "That option is not one of the answers."
	case ErrQuestionRange:
		return "That question does not exist."
	case ErrSessionKeyMissing:
		return "No value is stored under that key."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrBackendUnavailable:
		return "Something went wrong, please try again later."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal error occurred."

	default:
		return "An unknown error occurred."
	}
}
