package expreplay

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"pursuitrl/timestep"
)

const (
	testFeatures = 3
	testActions  = 5
)

// testTransition builds a transition whose state entries and reward
// all equal id, so stored slots can be told apart.
func testTransition(id float64) timestep.Transition {
	state := mat.NewVecDense(testFeatures, []float64{id, id, id})
	next := mat.NewVecDense(testFeatures, []float64{id + 1, id + 1, id + 1})
	action := mat.NewVecDense(testActions, nil)
	action.SetVec(0, 1)
	return timestep.NewTransition(state, action, id, 0.9, next)
}

func TestBufferAdd(t *testing.T) {
	t.Run("never exceeds capacity", func(t *testing.T) {
		b, err := New(1, 4, testFeatures, testActions, 1, 42)
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			require.NoError(t, b.Add(testTransition(float64(i))))
			require.LessOrEqual(t, b.Capacity(), b.MaxCapacity())
		}
		require.Equal(t, 4, b.Capacity())
	})

	t.Run("overwrites oldest in insertion order", func(t *testing.T) {
		b, err := New(1, 4, testFeatures, testActions, 1, 42)
		require.NoError(t, err)

		// Two more than capacity: the two oldest must be gone
		for i := 0; i < 6; i++ {
			require.NoError(t, b.Add(testTransition(float64(i))))
		}

		stored := map[float64]bool{}
		for i := 0; i < b.Capacity(); i++ {
			stored[b.rewardCache[i]] = true
		}
		require.Equal(t, map[float64]bool{2: true, 3: true, 4: true, 5: true},
			stored, "Should keep exactly the 4 most recent transitions")
	})

	t.Run("rejects mismatched feature size", func(t *testing.T) {
		b, err := New(1, 4, testFeatures, testActions, 1, 42)
		require.NoError(t, err)

		bad := testTransition(0)
		bad.State = mat.NewVecDense(testFeatures+1, nil)
		require.Error(t, b.Add(bad))
	})
}

func TestBufferSample(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		b, err := New(2, 8, testFeatures, testActions, 2, 42)
		require.NoError(t, err)

		_, _, _, _, _, err = b.Sample()
		require.True(t, IsEmptyBuffer(err))
	})

	t.Run("below minimum capacity", func(t *testing.T) {
		b, err := New(3, 8, testFeatures, testActions, 3, 42)
		require.NoError(t, err)

		require.NoError(t, b.Add(testTransition(0)))
		require.NoError(t, b.Add(testTransition(1)))

		_, _, _, _, _, err = b.Sample()
		require.True(t, IsInsufficientSamples(err))
		require.False(t, IsEmptyBuffer(err))
	})

	t.Run("returns exactly one batch of stored transitions", func(t *testing.T) {
		b, err := New(3, 8, testFeatures, testActions, 3, 42)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			require.NoError(t, b.Add(testTransition(float64(i))))
		}

		states, actions, rewards, discounts, nextStates, err := b.Sample()
		require.NoError(t, err)
		require.Len(t, states, 3*testFeatures)
		require.Len(t, actions, 3*testActions)
		require.Len(t, rewards, 3)
		require.Len(t, discounts, 3)
		require.Len(t, nextStates, 3*testFeatures)

		for i, r := range rewards {
			require.Contains(t, []float64{0, 1, 2, 3, 4}, r)
			// The state entries mirror the reward for a test transition
			require.Equal(t, r, states[i*testFeatures])
			require.Equal(t, r+1, nextStates[i*testFeatures])
			require.Equal(t, 0.9, discounts[i])
		}
	})

	t.Run("deterministic under a fixed seed", func(t *testing.T) {
		sample := func() []float64 {
			b, err := New(2, 8, testFeatures, testActions, 4, 1234)
			require.NoError(t, err)
			for i := 0; i < 8; i++ {
				require.NoError(t, b.Add(testTransition(float64(i))))
			}
			_, _, rewards, _, _, err := b.Sample()
			require.NoError(t, err)
			return rewards
		}

		require.Equal(t, sample(), sample())
	})
}
