// Package deepq implements deep Q-learning with experience replay
// and a target network over the grid pursuit-and-evade game.
package deepq

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"pursuitrl/agent"
	"pursuitrl/checkpoint"
	"pursuitrl/encoder"
	"pursuitrl/expreplay"
	"pursuitrl/game"
	"pursuitrl/network"
	"pursuitrl/policy"
	"pursuitrl/solver"
	"pursuitrl/timestep"
)

// DeepQ turns a stream of (state, action, reward, next state,
// terminal) observations into value-network parameter updates. It
// exclusively owns the replay buffer and both parameter sets; all
// mutation happens on the caller's goroutine.
//
// Three networks share one architecture: onlineNet (batch 1) drives
// action selection, trainNet (batch B) carries the loss subgraph and
// is the set the solver updates, and targetNet (batch B) is a
// periodic snapshot used only to compute Bellman targets. The target
// set shares no live references with the online set; synchronization
// is an explicit wholesale copy.
type DeepQ struct {
	cfg Config

	encoder *encoder.Encoder
	replay  *expreplay.Buffer
	policy  *policy.EGreedy

	onlineNet network.NeuralNet

	trainNet network.NeuralNet
	trainVM  G.VM
	slv      *solver.Solver

	targetNet network.NeuralNet
	targetVM  G.VM

	// Input nodes of the loss subgraph on trainNet's graph. The
	// update target is r + discount * max_a Q'(s', a); terminal
	// transitions carry discount 0, so their target reduces to the
	// raw reward regardless of what the target network predicts.
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node
	selectedActions       *G.Node
	costVal               G.Value

	checkpointer   *checkpoint.NStep
	lastCheckpoint string

	numActions    int
	batchSize     int
	steps         int // Environment steps observed
	gradientSteps int
	eval          bool
}

// Compile-time check
var _ agent.Agent = (*DeepQ)(nil)

// New creates and returns a new DeepQ agent for mazes of the given
// grid dimensions. If the configured checkpoint path holds an
// artifact from an earlier run, the parameter set and progress
// counters are restored from it; a missing or unreadable artifact is
// logged and training starts from freshly initialized parameters.
func New(height, width int, cfg Config, seed uint64) (*DeepQ, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numActions := game.NumActions()
	enc := encoder.NewWithDims(height, width)
	init := G.GlorotU(cfg.InitGain)

	// Online network for selecting single actions
	g := G.NewGraph()
	onlineNet, err := network.NewConvQNet(encoder.NumChannels, height,
		width, 1, numActions, g, init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create online network: %v",
			err)
	}

	pol := policy.NewEGreedy(network.NewEvaluator(onlineNet),
		cfg.EpsilonStart, cfg.EpsilonFloor, cfg.EpsilonDecay, seed)

	// Training network which learns the weights
	trainNet, err := onlineNet.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training network: %v",
			err)
	}
	gTrain := trainNet.Graph()

	// Nodes fed with sampled batch data at each update
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(cfg.BatchSize, numActions),
		G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(cfg.BatchSize), G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(cfg.BatchSize), G.WithName("discount"))
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(cfg.BatchSize, numActions),
		G.WithName("actionSelected"))

	// Update target: r + discount * max[Q'(s', a')]
	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Value predicted for the action actually taken: the one-hot
	// action vectors zero every other head
	predicted := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	predicted = G.Must(G.Sum(predicted, 1))

	// Mean squared TD error
	losses := G.Must(G.Sub(updateTarget, predicted))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	d := &DeepQ{
		cfg:                   cfg,
		encoder:               enc,
		policy:                pol,
		onlineNet:             onlineNet,
		trainNet:              trainNet,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		selectedActions:       selectedActions,
		numActions:            numActions,
		batchSize:             cfg.BatchSize,
	}
	G.Read(cost, &d.costVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}
	d.trainVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	// Target network providing the update target
	targetNet, err := onlineNet.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	d.targetNet = targetNet
	d.targetVM = G.NewTapeMachine(targetNet.Graph())

	d.slv = cfg.Solver
	if d.slv == nil {
		d.slv, err = solver.NewDefaultAdam(0.00025, cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("new: could not create solver: %v", err)
		}
	}

	d.replay, err = expreplay.New(cfg.warmUp(), cfg.ReplayCapacity,
		enc.Features(), numActions, cfg.BatchSize, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	if cfg.CheckpointPath != "" && cfg.CheckpointInterval > 0 {
		d.checkpointer = checkpoint.NewNStep(cfg.CheckpointInterval,
			cfg.CheckpointPath, d)
	}
	if cfg.CheckpointPath != "" {
		d.restore(cfg.CheckpointPath)
	}

	return d, nil
}

// restore loads a checkpoint artifact, falling back to the freshly
// initialized parameters when none can be read.
func (d *DeepQ) restore(path string) {
	err := checkpoint.Load(path, d)
	switch {
	case err == nil:
		d.lastCheckpoint = path
		log.Info().
			Str("path", path).
			Int("step", d.steps).
			Msg("resumed from checkpoint")
	case checkpoint.IsNotExist(err):
		log.Info().
			Str("path", path).
			Msg("no checkpoint found, starting from fresh parameters")
	default:
		log.Warn().
			Err(err).
			Str("path", path).
			Msg("could not load checkpoint, starting from fresh parameters")
	}
}

// SelectAction encodes the snapshot and selects an action from its
// legal action set with the epsilon-greedy controller.
func (d *DeepQ) SelectAction(snap game.Snapshot) (game.Action, error) {
	obs, err := d.encoder.Encode(snap)
	if err != nil {
		return game.Stop, err
	}
	return d.policy.SelectAction(obs, snap.Legal)
}

// Observe records the outcome of one step: it shapes the reward,
// stores the transition, and runs a learning update when one is due.
// In evaluation mode Observe is a no-op.
func (d *DeepQ) Observe(prev game.Snapshot, action game.Action,
	next game.Snapshot, scoreDelta float64) error {
	if d.eval {
		return nil
	}

	state, err := d.encoder.Encode(prev)
	if err != nil {
		return err
	}

	discount := d.cfg.Discount
	var nextState *mat.VecDense
	if next.Terminal {
		// Sentinel successor; the zero discount keeps it out of every
		// Bellman target
		discount = 0
		nextState = mat.NewVecDense(d.encoder.Features(), nil)
	} else {
		nextState, err = d.encoder.Encode(next)
		if err != nil {
			return err
		}
	}

	onehot := mat.NewVecDense(d.numActions, nil)
	onehot.SetVec(int(action), 1)

	reward := d.cfg.Rewards.Shape(scoreDelta, next)
	transition := timestep.NewTransition(state, onehot, reward, discount,
		nextState)
	if err := d.replay.Add(transition); err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	d.steps++

	if d.steps%d.cfg.UpdateInterval == 0 {
		if err := d.update(); err != nil {
			return err
		}
	}

	if d.checkpointer != nil {
		path, err := d.checkpointer.Checkpoint(d.steps)
		if err != nil {
			// A failed save aborts this attempt only
			log.Warn().
				Err(err).
				Int("step", d.steps).
				Msg("checkpoint save failed")
		} else if path != "" {
			d.lastCheckpoint = path
		}
	}

	return nil
}

// update samples a minibatch and applies one gradient step to the
// online parameters. It silently does nothing while the buffer holds
// fewer transitions than the warm-up threshold.
func (d *DeepQ) update() error {
	states, actions, rewards, discounts, nextStates, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	err = G.Let(d.selectedActions, tensor.New(
		tensor.WithShape(d.batchSize, d.numActions),
		tensor.WithBacking(actions)))
	if err != nil {
		return fmt.Errorf("update: could not set selected actions: %v", err)
	}

	if err := d.trainNet.SetInput(states); err != nil {
		return fmt.Errorf("update: could not set trainNet input: %v", err)
	}
	if err := d.targetNet.SetInput(nextStates); err != nil {
		return fmt.Errorf("update: could not set targetNet input: %v", err)
	}

	// Next-state action values from the target parameter set, never
	// the online set
	if err := d.targetVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run target network: %v", err)
	}
	if err := G.Let(d.nextStateActionValues, d.targetNet.Output()); err != nil {
		return fmt.Errorf("update: could not set next state-action "+
			"values: %v", err)
	}
	d.targetVM.Reset()

	err = G.Let(d.rewards, tensor.New(tensor.WithShape(d.batchSize),
		tensor.WithBacking(rewards)))
	if err != nil {
		return fmt.Errorf("update: could not set rewards: %v", err)
	}
	err = G.Let(d.discounts, tensor.New(tensor.WithShape(d.batchSize),
		tensor.WithBacking(discounts)))
	if err != nil {
		return fmt.Errorf("update: could not set discounts: %v", err)
	}

	// Learning step
	if err := d.trainVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run training network: %v", err)
	}
	if err := d.checkLoss(); err != nil {
		return err
	}
	if err := d.slv.Step(d.trainNet.Model()); err != nil {
		return fmt.Errorf("update: could not apply solver step: %v", err)
	}
	d.trainVM.Reset()
	d.gradientSteps++

	if err := d.checkParameters(); err != nil {
		return err
	}

	// Refresh the target network snapshot on the configured interval
	if d.gradientSteps%d.cfg.SyncInterval == 0 {
		if d.cfg.Tau == 1.0 {
			err = d.targetNet.Set(d.trainNet)
		} else {
			err = d.targetNet.Polyak(d.trainNet, d.cfg.Tau)
		}
		if err != nil {
			return fmt.Errorf("update: could not sync target network: %v",
				err)
		}
	}

	// The online network always follows the newly learned weights
	if err := d.onlineNet.Set(d.trainNet); err != nil {
		return fmt.Errorf("update: could not update online network: %v", err)
	}

	return nil
}

// checkLoss fails the run if the last computed loss is NaN or Inf.
func (d *DeepQ) checkLoss() error {
	loss, ok := d.costVal.Data().(float64)
	if !ok {
		return fmt.Errorf("update: cost is not a scalar float64")
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return &NumericalInstabilityError{
			Step:           d.steps,
			Loss:           loss,
			LastCheckpoint: d.lastCheckpoint,
		}
	}
	return nil
}

// checkParameters fails the run if any online parameter is NaN or Inf
// after an update.
func (d *DeepQ) checkParameters() error {
	for _, learnable := range d.trainNet.Learnables() {
		data := learnable.Value().Data().([]float64)
		if floats.HasNaN(data) {
			return &NumericalInstabilityError{
				Step:           d.steps,
				Loss:           math.NaN(),
				LastCheckpoint: d.lastCheckpoint,
			}
		}
		for _, v := range data {
			if math.IsInf(v, 0) {
				return &NumericalInstabilityError{
					Step:           d.steps,
					Loss:           v,
					LastCheckpoint: d.lastCheckpoint,
				}
			}
		}
	}
	return nil
}

// Eval puts the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.eval = true
	d.policy.Eval()
}

// Train puts the agent into training mode
func (d *DeepQ) Train() {
	d.eval = false
	d.policy.Train()
}

// Epsilon returns the current exploration rate
func (d *DeepQ) Epsilon() float64 {
	return d.policy.Epsilon()
}

// Steps returns the number of environment steps observed
func (d *DeepQ) Steps() int {
	return d.steps
}

// GradientSteps returns the number of gradient updates applied
func (d *DeepQ) GradientSteps() int {
	return d.gradientSteps
}

// LastCheckpoint returns the path of the last successfully saved
// checkpoint, or "" if none was saved this run.
func (d *DeepQ) LastCheckpoint() string {
	return d.lastCheckpoint
}

// GobEncode implements the gob.GobEncoder interface. A checkpoint
// artifact holds the online parameter set together with the progress
// counters needed to resume the decay schedule.
func (d *DeepQ) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(d.steps); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode step count: %v",
			err)
	}
	if err := enc.Encode(d.gradientSteps); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode gradient "+
			"steps: %v", err)
	}
	if err := enc.Encode(d.policy.Schedule().Steps()); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode schedule: %v",
			err)
	}

	netBytes, err := d.trainNet.GobEncode()
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode network: %v",
			err)
	}
	if err := enc.Encode(netBytes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode network: %v",
			err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// parameter set is copied into all three networks; the agent's graphs
// and VMs are left untouched.
func (d *DeepQ) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var steps, gradientSteps, scheduleSteps int
	if err := dec.Decode(&steps); err != nil {
		return fmt.Errorf("gobdecode: could not decode step count: %v", err)
	}
	if err := dec.Decode(&gradientSteps); err != nil {
		return fmt.Errorf("gobdecode: could not decode gradient steps: %v",
			err)
	}
	if err := dec.Decode(&scheduleSteps); err != nil {
		return fmt.Errorf("gobdecode: could not decode schedule: %v", err)
	}

	var netBytes []byte
	if err := dec.Decode(&netBytes); err != nil {
		return fmt.Errorf("gobdecode: could not decode network: %v", err)
	}
	restored, err := network.NewConvQNet(encoder.NumChannels,
		d.encoder.Height(), d.encoder.Width(), 1, d.numActions,
		G.NewGraph(), G.Zeroes())
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct network: %v", err)
	}
	if err := restored.GobDecode(netBytes); err != nil {
		return fmt.Errorf("gobdecode: could not decode network: %v", err)
	}

	for _, net := range []network.NeuralNet{d.trainNet, d.onlineNet,
		d.targetNet} {
		if err := net.Set(restored); err != nil {
			return fmt.Errorf("gobdecode: could not restore parameters: %v",
				err)
		}
	}

	d.steps = steps
	d.gradientSteps = gradientSteps
	d.policy.Schedule().SetSteps(scheduleSteps)

	return nil
}
