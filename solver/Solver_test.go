package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSolver(t *testing.T) {
	t.Run("adam", func(t *testing.T) {
		s, err := NewDefaultAdam(0.001, 32)
		require.NoError(t, err)
		require.Equal(t, Adam, s.Type)
		require.NotNil(t, s.Solver)
	})

	t.Run("vanilla", func(t *testing.T) {
		s, err := NewVanilla(0.01, 16)
		require.NoError(t, err)
		require.Equal(t, Vanilla, s.Type)
		require.NotNil(t, s.Solver)
	})

	t.Run("mismatched type and config", func(t *testing.T) {
		_, err := newSolver(Vanilla, AdamConfig{})
		require.Error(t, err)
	})
}

func TestSolverJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s, err := NewAdam(0.001, 1e-8, 0.9, 0.999, 32)
		require.NoError(t, err)

		data, err := json.Marshal(s)
		require.NoError(t, err)

		var restored Solver
		require.NoError(t, json.Unmarshal(data, &restored))
		require.Equal(t, Adam, restored.Type)
		require.Equal(t, s.Config, restored.Config)
		require.NotNil(t, restored.Solver)
	})

	t.Run("unknown type", func(t *testing.T) {
		var s Solver
		err := json.Unmarshal([]byte(`{"Type":"RMSProp","Config":{}}`), &s)
		require.Error(t, err)
	})

	t.Run("missing type", func(t *testing.T) {
		var s Solver
		err := json.Unmarshal([]byte(`{"Config":{}}`), &s)
		require.Error(t, err)
	})
}
