package derive

import "fmt"

// temporaryError, resetError, and criticalError classify every error the
// pipeline stages produce, following kona's PipelineErrorKind split
// (Temporary/Critical/Reset): a temporary error means the step made no
// forward progress but may succeed later; a reset error means the
// pipeline's invariants no longer hold relative to the driver's safe head;
// a critical error means undefined state or a provable protocol violation.
type temporaryError struct{ err error }

func (e temporaryError) Error() string { return e.err.Error() }
func (e temporaryError) Unwrap() error { return e.err }

type resetError struct{ err error }

func (e resetError) Error() string { return e.err.Error() }
func (e resetError) Unwrap() error  { return e.err }

type criticalError struct{ err error }

func (e criticalError) Error() string { return e.err.Error() }
func (e criticalError) Unwrap() error  { return e.err }

func NewTemporaryError(err error) error { return temporaryError{err} }
func NewResetError(err error) error     { return resetError{err} }
func NewCriticalError(err error) error  { return criticalError{err} }

func IsTemporary(err error) bool {
	var t temporaryError
	return asError(err, &t)
}

func IsReset(err error) bool {
	var r resetError
	return asError(err, &r)
}

func IsCritical(err error) bool {
	var c criticalError
	return asError(err, &c)
}

func asError(err error, target interface{}) bool {
	for err != nil {
		switch target.(type) {
		case *temporaryError:
			if v, ok := err.(temporaryError); ok {
				*target.(*temporaryError) = v
				return true
			}
		case *resetError:
			if v, ok := err.(resetError); ok {
				*target.(*resetError) = v
				return true
			}
		case *criticalError:
			if v, ok := err.(criticalError); ok {
				*target.(*criticalError) = v
				return true
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// EOF is a sentinel temporary error: the previous stage has no more data
// right now but may produce more once the driver advances the origin.
var EOF = NewTemporaryError(fmt.Errorf("EOF"))

// NotEnoughData is a sentinel temporary error distinct from EOF: more data
// is expected to arrive from the same origin before it advances.
var NotEnoughData = NewTemporaryError(fmt.Errorf("not enough data"))
