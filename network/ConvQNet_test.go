package network

import (
	"testing"

	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

const (
	testChannels = 6
	testHeight   = 3
	testWidth    = 4
	testActions  = 5
)

func newTestNet(t *testing.T, batch int, init G.InitWFn) NeuralNet {
	t.Helper()
	net, err := NewConvQNet(testChannels, testHeight, testWidth, batch,
		testActions, G.NewGraph(), init)
	require.NoError(t, err)
	return net
}

func testInput(batch int) []float64 {
	input := make([]float64, batch*testChannels*testHeight*testWidth)
	for i := range input {
		input[i] = float64(i%7) / 7
	}
	return input
}

func TestConvQNetForward(t *testing.T) {
	t.Run("output shape", func(t *testing.T) {
		net := newTestNet(t, 1, G.GlorotU(1.0))
		require.Equal(t, testChannels*testHeight*testWidth, net.Features())
		require.Equal(t, testActions, net.Outputs())

		values, err := NewEvaluator(net).ActionValues(testInput(1))
		require.NoError(t, err)
		require.Len(t, values, testActions)
	})

	t.Run("deterministic", func(t *testing.T) {
		net := newTestNet(t, 1, G.GlorotU(1.0))
		eval := NewEvaluator(net)

		a, err := eval.ActionValues(testInput(1))
		require.NoError(t, err)
		b, err := eval.ActionValues(testInput(1))
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("rejects wrong input size", func(t *testing.T) {
		net := newTestNet(t, 1, G.GlorotU(1.0))
		require.Error(t, net.SetInput(make([]float64, 3)))
	})
}

func TestConvQNetClone(t *testing.T) {
	net := newTestNet(t, 1, G.GlorotU(1.0))

	clone, err := net.CloneWithBatch(2)
	require.NoError(t, err)
	require.Equal(t, 2, clone.BatchSize())
	require.Equal(t, net.Features(), clone.Features())

	// The clone carries the source parameters: batching the same
	// observation twice must reproduce the source outputs twice
	want, err := NewEvaluator(net).ActionValues(testInput(1))
	require.NoError(t, err)

	double := append(testInput(1), testInput(1)...)
	got, err := NewEvaluator(clone).ActionValues(double)
	require.NoError(t, err)
	require.Len(t, got, 2*testActions)
	require.InDeltaSlice(t, want, got[:testActions], 1e-10)
	require.InDeltaSlice(t, want, got[testActions:], 1e-10)
}

func TestConvQNetSet(t *testing.T) {
	source := newTestNet(t, 1, G.GlorotU(1.0))
	dest := newTestNet(t, 1, G.Zeroes())

	// All-zero parameters predict zero everywhere
	values, err := NewEvaluator(dest).ActionValues(testInput(1))
	require.NoError(t, err)
	for _, v := range values {
		require.Zero(t, v)
	}

	require.NoError(t, dest.Set(source))

	want, err := NewEvaluator(source).ActionValues(testInput(1))
	require.NoError(t, err)
	got, err := NewEvaluator(dest).ActionValues(testInput(1))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConvQNetPolyak(t *testing.T) {
	source := newTestNet(t, 1, G.GlorotU(1.0))
	dest := newTestNet(t, 1, G.Zeroes())

	require.NoError(t, dest.Polyak(source, 0.5))

	for i, node := range dest.Learnables() {
		got := node.Value().Data().([]float64)
		src := source.Learnables()[i].Value().Data().([]float64)
		for j := range got {
			require.InDelta(t, 0.5*src[j], got[j], 1e-12)
		}
	}
}

func TestConvQNetGob(t *testing.T) {
	net := newTestNet(t, 1, G.GlorotU(1.0))
	want, err := NewEvaluator(net).ActionValues(testInput(1))
	require.NoError(t, err)

	encoded, err := net.(*convQNet).GobEncode()
	require.NoError(t, err)

	restored := newTestNet(t, 1, G.Zeroes())
	require.NoError(t, restored.(*convQNet).GobDecode(encoded))
	require.Equal(t, 1, restored.BatchSize())

	got, err := NewEvaluator(restored).ActionValues(testInput(1))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
