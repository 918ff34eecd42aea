// Package game defines the contract between the learning core and the
// external pursuit-and-evade game engine. The engine itself (maze
// topology, legal-move generation, opponent behaviour, scoring) lives
// outside this module; the learner only consumes the snapshot query
// interface defined here.
package game

// Action is one of the five moves the controlled agent can take. The
// integer values are stable: they define the ordering of the value
// network's output heads and the deterministic tie-break order used by
// the policy.
type Action int

const (
	North Action = iota
	South
	East
	West
	Stop

	numActions
)

// Actions returns the full action enumeration in canonical order.
func Actions() []Action {
	return []Action{North, South, East, West, Stop}
}

// NumActions returns the size of the action enumeration.
func NumActions() int {
	return int(numActions)
}

func (a Action) String() string {
	switch a {
	case North:
		return "North"
	case South:
		return "South"
	case East:
		return "East"
	case West:
		return "West"
	case Stop:
		return "Stop"
	}
	return "Unknown"
}

// Position is a cell on the maze grid. X indexes columns, Y rows.
type Position struct {
	X int
	Y int
}

// Ghost is an opponent's position together with its vulnerability flag.
type Ghost struct {
	Position
	Scared bool
}

// Snapshot is a complete, immutable view of the game at one step. It
// is plain data: retaining a Snapshot across steps is always safe.
//
// Walls and Food are row-major grids of size Height*Width, indexed as
// y*Width + x.
type Snapshot struct {
	Width  int
	Height int

	Walls    []bool
	Agent    Position
	Ghosts   []Ghost
	Food     []bool
	Capsules []Position

	Score float64
	Legal []Action

	Terminal bool
	Won      bool
}

// WallAt returns whether the cell at (x, y) is an obstacle.
func (s Snapshot) WallAt(x, y int) bool {
	return s.Walls[y*s.Width+x]
}

// FoodAt returns whether the cell at (x, y) holds a consumable item.
func (s Snapshot) FoodAt(x, y int) bool {
	return s.Food[y*s.Width+x]
}

// Game is the step interface the engine exposes to the learner. Step
// applies one action and returns the successor snapshot along with the
// raw score delta for the step. Reset starts a new episode.
type Game interface {
	Reset() Snapshot
	Snapshot() Snapshot
	Step(Action) (Snapshot, float64)
}
