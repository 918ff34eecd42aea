package policy

// Schedule holds the exploration state of one training run: the
// current epsilon and the decision counter driving its decay. Epsilon
// decays linearly from Start toward Floor, one decay step per
// training decision:
//
//	epsilon(n) = max(Floor, Start - Decay*n)
//
// The schedule is never reset by episode boundaries, only by starting
// a new run or by restoring a checkpointed counter.
type Schedule struct {
	start float64
	floor float64
	decay float64
	steps int
}

// NewSchedule returns a linear decay schedule from start to floor,
// decreasing by decay per step.
func NewSchedule(start, floor, decay float64) *Schedule {
	if start < floor {
		start = floor
	}
	return &Schedule{start: start, floor: floor, decay: decay}
}

// Epsilon returns the current epsilon value.
func (s *Schedule) Epsilon() float64 {
	eps := s.start - s.decay*float64(s.steps)
	if eps < s.floor {
		return s.floor
	}
	return eps
}

// Floor returns the lower bound on epsilon.
func (s *Schedule) Floor() float64 {
	return s.floor
}

// Step advances the decay by one decision.
func (s *Schedule) Step() {
	s.steps++
}

// Steps returns the number of decisions the schedule has advanced.
func (s *Schedule) Steps() int {
	return s.steps
}

// SetSteps restores the decision counter, used when resuming a run
// from a checkpoint so that decay continues where it left off.
func (s *Schedule) SetSteps(n int) {
	s.steps = n
}
