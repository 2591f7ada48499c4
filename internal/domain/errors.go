package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyRunning = errors.New("job already running")
	ErrLeaseLost      = errors.New("run lease lost")
	ErrCircuitOpen    = errors.New("circuit open")
)

// classifiedError tags a collaborator failure as retryable or permanent so
// the resilience layer can decide whether backoff applies.
type classifiedError struct {
	err       error
	permanent bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Retryable marks err as a transient failure worth retrying.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err}
}

// Permanent marks err as a failure that retrying cannot fix, such as a
// rejected request or bad credentials.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, permanent: true}
}

// IsPermanent reports whether err carries a Permanent classification.
// Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.permanent
	}
	return false
}
