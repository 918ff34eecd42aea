// Package expreplay implements a bounded experience replay buffer for
// storing and sampling transitions.
package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	"pursuitrl/timestep"
)

// Buffer is a fixed-capacity ring buffer of transitions. Once full,
// each Add overwrites the oldest stored transition; overwrite order is
// strictly insertion order, never priority. Transitions are stored in
// flat float64 caches so that a sampled batch can be handed to the
// network without further copying.
//
// A Buffer is owned by exactly one trainer and is not safe for
// concurrent use.
type Buffer struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	// next is the slot the next Add writes to; size is the number of
	// filled slots
	next int
	size int

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
	batchSize   int

	rng *rand.Rand
}

// New creates and returns an empty replay buffer. The minCapacity
// parameter is the warm-up size: Sample fails until at least
// minCapacity transitions have been stored. The featureSize and
// actionSize parameters fix the lengths of the state and one-hot
// action vectors of every stored transition.
func New(minCapacity, maxCapacity, featureSize, actionSize,
	batchSize int, seed uint64) (*Buffer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("new: batchSize must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}
	if minCapacity < batchSize {
		minCapacity = batchSize
	}

	return &Buffer{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
		batchSize:   batchSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Capacity returns the current number of transitions in the buffer.
func (b *Buffer) Capacity() int {
	return b.size
}

// MaxCapacity returns the maximum number of transitions the buffer
// can hold.
func (b *Buffer) MaxCapacity() int {
	return b.maxCapacity
}

// MinCapacity returns the number of transitions required in the
// buffer before sampling is allowed.
func (b *Buffer) MinCapacity() int {
	return b.minCapacity
}

// BatchSize returns the number of transitions returned by Sample.
func (b *Buffer) BatchSize() int {
	return b.batchSize
}

// Add stores a transition, overwriting the oldest stored transition
// once the buffer is at capacity. Add is O(1) and fails only on a
// transition whose vectors do not match the buffer's configured sizes.
func (b *Buffer) Add(t timestep.Transition) error {
	if t.State.Len() != b.featureSize || t.NextState.Len() != b.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", b.featureSize, t.State.Len())
	}
	if t.Action.Len() != b.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)"+
			"\n\thave(%v)", b.actionSize, t.Action.Len())
	}

	index := b.next
	b.next = (b.next + 1) % b.maxCapacity
	if b.size < b.maxCapacity {
		b.size++
	}

	stateInd := index * b.featureSize
	copy(b.stateCache[stateInd:stateInd+b.featureSize],
		t.State.RawVector().Data)
	copy(b.nextStateCache[stateInd:stateInd+b.featureSize],
		t.NextState.RawVector().Data)

	actionInd := index * b.actionSize
	copy(b.actionCache[actionInd:actionInd+b.actionSize],
		t.Action.RawVector().Data)

	b.rewardCache[index] = t.Reward
	b.discountCache[index] = t.Discount

	return nil
}

// Sample draws BatchSize transitions uniformly at random, with
// replacement, from the currently stored transitions. The batch is
// returned as flat slices of states, one-hot actions, rewards,
// discounts, and next states. Sample fails until MinCapacity
// transitions have been stored.
func (b *Buffer) Sample() (states, actions, rewards, discounts,
	nextStates []float64, err error) {
	if b.size == 0 {
		err := &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
		return nil, nil, nil, nil, nil, err
	}
	if b.size < b.minCapacity {
		err := &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
		return nil, nil, nil, nil, nil, err
	}

	states = make([]float64, b.batchSize*b.featureSize)
	actions = make([]float64, b.batchSize*b.actionSize)
	rewards = make([]float64, b.batchSize)
	discounts = make([]float64, b.batchSize)
	nextStates = make([]float64, b.batchSize*b.featureSize)

	for i := 0; i < b.batchSize; i++ {
		index := b.rng.Intn(b.size)

		batchInd := i * b.featureSize
		expInd := index * b.featureSize
		copy(states[batchInd:batchInd+b.featureSize],
			b.stateCache[expInd:expInd+b.featureSize])
		copy(nextStates[batchInd:batchInd+b.featureSize],
			b.nextStateCache[expInd:expInd+b.featureSize])

		batchInd = i * b.actionSize
		expInd = index * b.actionSize
		copy(actions[batchInd:batchInd+b.actionSize],
			b.actionCache[expInd:expInd+b.actionSize])

		rewards[i] = b.rewardCache[index]
		discounts[i] = b.discountCache[index]
	}

	return states, actions, rewards, discounts, nextStates, nil
}
