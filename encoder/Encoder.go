// Package encoder turns game snapshots into the fixed-shape spatial
// tensors consumed by the value network.
package encoder

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"pursuitrl/game"
)

// Channel indices of the encoded state tensor. The order is a
// contract: every transition in the replay buffer and every input to
// the value network shares it.
const (
	ChannelWalls = iota
	ChannelAgent
	ChannelGhosts
	ChannelScaredGhosts
	ChannelFood
	ChannelCapsules

	NumChannels
)

// EncodingError reports a malformed snapshot: grid dimensions that do
// not match the dimensions locked in at the start of the run, grids
// with too few cells, or occupants placed outside the grid. It is
// fatal for the current episode but recoverable at the run level.
type EncodingError struct {
	Op         string
	Reason     string
	Height     int
	Width      int
	WantHeight int
	WantWidth  int
}

func (e *EncodingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %v", e.Op, e.Reason)
	}
	return fmt.Sprintf("%v: snapshot dimensions (%v, %v) do not match "+
		"locked dimensions (%v, %v)", e.Op, e.Height, e.Width,
		e.WantHeight, e.WantWidth)
}

// Encoder maps game snapshots to flattened [NumChannels, H, W]
// occupancy tensors. Encoding is a deterministic function of the
// snapshot; the only state an Encoder keeps is the grid dimension
// locked on its first use, so that a mid-run layout change is caught
// instead of silently producing tensors of a different shape.
type Encoder struct {
	height int
	width  int
}

// New returns an Encoder whose grid dimensions are locked by the
// first snapshot it encodes.
func New() *Encoder {
	return &Encoder{}
}

// NewWithDims returns an Encoder locked to the given grid dimensions.
func NewWithDims(height, width int) *Encoder {
	return &Encoder{height: height, width: width}
}

// Height returns the locked grid height, 0 before locking.
func (e *Encoder) Height() int { return e.height }

// Width returns the locked grid width, 0 before locking.
func (e *Encoder) Width() int { return e.width }

// Features returns the length of an encoded state vector, 0 before
// the dimensions are locked.
func (e *Encoder) Features() int {
	return NumChannels * e.height * e.width
}

// Encode encodes a snapshot as a flattened [NumChannels, H, W] tensor
// in row-major order. Each channel is an occupancy map; cells holding
// several opponents accumulate density. Identical snapshots always
// encode to identical tensors. A malformed snapshot (mismatched
// dimensions, undersized grids, or an occupant outside the grid) fails
// with an *EncodingError instead of panicking.
func (e *Encoder) Encode(s game.Snapshot) (*mat.VecDense, error) {
	if e.height == 0 && e.width == 0 {
		e.height = s.Height
		e.width = s.Width
	}
	if s.Height != e.height || s.Width != e.width {
		return nil, &EncodingError{
			Op:         "encode",
			Height:     s.Height,
			Width:      s.Width,
			WantHeight: e.height,
			WantWidth:  e.width,
		}
	}

	plane := e.height * e.width
	if len(s.Walls) < plane || len(s.Food) < plane {
		return nil, &EncodingError{
			Op: "encode",
			Reason: fmt.Sprintf("wall and food grids hold (%v, %v) "+
				"cells, need %v", len(s.Walls), len(s.Food), plane),
		}
	}

	inBounds := func(p game.Position) bool {
		return p.X >= 0 && p.X < e.width && p.Y >= 0 && p.Y < e.height
	}
	if !inBounds(s.Agent) {
		return nil, &EncodingError{
			Op: "encode",
			Reason: fmt.Sprintf("agent at (%v, %v) is outside the "+
				"(%v, %v) grid", s.Agent.X, s.Agent.Y, e.width, e.height),
		}
	}
	for _, g := range s.Ghosts {
		if !inBounds(g.Position) {
			return nil, &EncodingError{
				Op: "encode",
				Reason: fmt.Sprintf("ghost at (%v, %v) is outside the "+
					"(%v, %v) grid", g.X, g.Y, e.width, e.height),
			}
		}
	}
	for _, c := range s.Capsules {
		if !inBounds(c) {
			return nil, &EncodingError{
				Op: "encode",
				Reason: fmt.Sprintf("capsule at (%v, %v) is outside the "+
					"(%v, %v) grid", c.X, c.Y, e.width, e.height),
			}
		}
	}

	data := make([]float64, e.Features())
	add := func(c int, p game.Position, v float64) {
		data[c*plane+p.Y*e.width+p.X] += v
	}

	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			if s.WallAt(x, y) {
				data[ChannelWalls*plane+y*e.width+x] = 1
			}
			if s.FoodAt(x, y) {
				data[ChannelFood*plane+y*e.width+x] = 1
			}
		}
	}

	add(ChannelAgent, s.Agent, 1)

	for _, g := range s.Ghosts {
		if g.Scared {
			add(ChannelScaredGhosts, g.Position, 1)
		} else {
			add(ChannelGhosts, g.Position, 1)
		}
	}

	for _, c := range s.Capsules {
		add(ChannelCapsules, c, 1)
	}

	return mat.NewVecDense(len(data), data), nil
}
