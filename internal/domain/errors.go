package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Submission guard errors
var (
	ErrChallengeUnavailable = errors.New("challenge unavailable")
	ErrRateLimited          = errors.New("submission rate limited")
	ErrAlreadySolved        = errors.New("challenge already solved")
	ErrInvalidInput         = errors.New("invalid input")
)

// Hint errors
var (
	ErrHintLimitReached = errors.New("hint limit reached")
	ErrHintOutOfOrder   = errors.New("hint unlocked out of order")
)

// Recommendation model errors
var (
	ErrInsufficientTrainingData = errors.New("insufficient training data")
	ErrModelArtifactCorrupt     = errors.New("model artifact corrupt")
)

// General errors
var (
	ErrNotFound       = errors.New("not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrConflict       = errors.New("conflict")
	ErrTransient      = errors.New("transient failure")
)

// ErrorClass tells a caller what to do with a failed request.
type ErrorClass int

const (
	ClassNone          ErrorClass = iota
	ClassRetryable                // try again later (rate limit, transient storage failure)
	ClassTerminal                 // the request can never succeed as sent
	ClassInformational            // not a failure, reports existing state
	ClassInternal                 // unexpected
)

// String returns the name of the error class
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassRetryable:
		return "retryable"
	case ClassTerminal:
		return "terminal"
	case ClassInformational:
		return "informational"
	default:
		return "internal"
	}
}

// Classify maps an error returned by the scoring or hint paths to its class.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrTransient):
		return ClassRetryable
	case errors.Is(err, ErrAlreadySolved):
		return ClassInformational
	case errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrHintLimitReached),
		errors.Is(err, ErrHintOutOfOrder),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPlayerNotFound):
		return ClassTerminal
	default:
		return ClassInternal
	}
}
