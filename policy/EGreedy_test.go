package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"pursuitrl/game"
)

// stubValuer returns the same action values for every state.
type stubValuer struct {
	values []float64
	err    error
	calls  int
}

func (s *stubValuer) ActionValues(obs []float64) ([]float64, error) {
	s.calls++
	return s.values, s.err
}

func testObs() *mat.VecDense {
	return mat.NewVecDense(4, []float64{0, 1, 0, 1})
}

func TestSchedule(t *testing.T) {
	t.Run("linear decay to floor", func(t *testing.T) {
		s := NewSchedule(0.5, 0.2, 0.1)

		want := []float64{0.5, 0.4, 0.3}
		for _, w := range want {
			require.InDelta(t, w, s.Epsilon(), 1e-12)
			s.Step()
		}
		for i := 0; i < 10; i++ {
			s.Step()
			require.InDelta(t, 0.2, s.Epsilon(), 1e-12)
		}
	})

	t.Run("start clamped to floor", func(t *testing.T) {
		s := NewSchedule(0.05, 0.1, 0.01)
		require.Equal(t, 0.1, s.Epsilon())
	})

	t.Run("resumes from a step count", func(t *testing.T) {
		s := NewSchedule(1.0, 0.1, 0.01)
		s.SetSteps(50)
		require.InDelta(t, 0.5, s.Epsilon(), 1e-12)
		require.Equal(t, 50, s.Steps())
	})
}

func TestSelectAction(t *testing.T) {
	t.Run("exploration only selects legal actions", func(t *testing.T) {
		// Epsilon pinned at 1: every selection is exploratory
		e := NewEGreedy(&stubValuer{}, 1.0, 1.0, 0, 42)
		legal := []game.Action{game.North, game.East}

		for i := 0; i < 200; i++ {
			a, err := e.SelectAction(testObs(), legal)
			require.NoError(t, err)
			require.Contains(t, legal, a)
		}
	})

	t.Run("greedy over legal actions only", func(t *testing.T) {
		// Stop has the highest value but is illegal here
		v := &stubValuer{values: []float64{1, 5, 2, 0, 9}}
		e := NewEGreedy(v, 0, 0, 0, 42)

		a, err := e.SelectAction(testObs(),
			[]game.Action{game.North, game.South, game.East, game.West})
		require.NoError(t, err)
		require.Equal(t, game.South, a)
	})

	t.Run("ties break in enumeration order", func(t *testing.T) {
		v := &stubValuer{values: []float64{3, 3, 3, 3, 3}}
		e := NewEGreedy(v, 0, 0, 0, 42)

		a, err := e.SelectAction(testObs(), game.Actions())
		require.NoError(t, err)
		require.Equal(t, game.North, a)

		a, err = e.SelectAction(testObs(),
			[]game.Action{game.West, game.East, game.Stop})
		require.NoError(t, err)
		require.Equal(t, game.East, a)
	})

	t.Run("training decays epsilon once per decision", func(t *testing.T) {
		v := &stubValuer{values: []float64{0, 0, 0, 0, 0}}
		e := NewEGreedy(v, 0.5, 0.2, 0.1, 42)

		want := []float64{0.4, 0.3, 0.2, 0.2}
		for _, w := range want {
			_, err := e.SelectAction(testObs(), game.Actions())
			require.NoError(t, err)
			require.InDelta(t, w, e.Epsilon(), 1e-12)
		}
	})

	t.Run("evaluation pins epsilon at the floor", func(t *testing.T) {
		// Evaluation begins before decay completes; exploration must
		// drop to the floor, not freeze at the scheduled value
		v := &stubValuer{values: []float64{0, 0, 0, 0, 0}}
		e := NewEGreedy(v, 0.5, 0.1, 0.01, 42)
		e.Eval()
		require.True(t, e.Evaluating())
		require.InDelta(t, 0.1, e.Epsilon(), 1e-12)

		for i := 0; i < 5; i++ {
			_, err := e.SelectAction(testObs(), game.Actions())
			require.NoError(t, err)
			require.InDelta(t, 0.1, e.Epsilon(), 1e-12)
		}

		// Training resumes the schedule where it left off
		e.Train()
		require.InDelta(t, 0.5, e.Epsilon(), 1e-12)
		_, err := e.SelectAction(testObs(), game.Actions())
		require.NoError(t, err)
		require.InDelta(t, 0.49, e.Epsilon(), 1e-12)
	})

	t.Run("evaluation with a zero floor never explores", func(t *testing.T) {
		v := &stubValuer{values: []float64{1, 5, 2, 0, 3}}
		e := NewEGreedy(v, 1.0, 0, 0.001, 42)
		e.Eval()

		for i := 0; i < 100; i++ {
			a, err := e.SelectAction(testObs(), game.Actions())
			require.NoError(t, err)
			require.Equal(t, game.South, a)
		}
	})

	t.Run("empty legal set", func(t *testing.T) {
		e := NewEGreedy(&stubValuer{}, 0, 0, 0, 42)
		_, err := e.SelectAction(testObs(), nil)
		require.Error(t, err)
	})

	t.Run("wrong number of action values", func(t *testing.T) {
		v := &stubValuer{values: []float64{1, 2}}
		e := NewEGreedy(v, 0, 0, 0, 42)
		_, err := e.SelectAction(testObs(), game.Actions())
		require.Error(t, err)
	})
}
