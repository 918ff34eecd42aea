package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errEmptyBuffer = errors.New("buffer empty")

var errInsufficientSamples = errors.New("minimum capacity not yet reached")

// IsInsufficientSamples returns whether an error reports that the
// buffer holds fewer transitions than its minimum capacity, so that
// sampling is not yet allowed.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}

// IsEmptyBuffer returns whether an error reports that a replay buffer
// is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyBuffer)
}
