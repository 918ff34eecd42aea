package deepq

import "fmt"

// NumericalInstabilityError reports a NaN or Inf appearing in the
// loss or in the network parameters after an update. It is fatal for
// the whole training run: training must never continue with corrupted
// parameters. LastCheckpoint names the most recent successfully saved
// checkpoint, or "" if none was saved.
type NumericalInstabilityError struct {
	Step           int
	Loss           float64
	LastCheckpoint string
}

func (e *NumericalInstabilityError) Error() string {
	msg := fmt.Sprintf("numerical instability at step %v (loss %v)",
		e.Step, e.Loss)
	if e.LastCheckpoint != "" {
		msg += fmt.Sprintf("; last good checkpoint at %v", e.LastCheckpoint)
	}
	return msg
}

// IsNumericalInstability returns whether an error reports corrupted
// training numerics.
func IsNumericalInstability(err error) bool {
	_, ok := err.(*NumericalInstabilityError)
	return ok
}
