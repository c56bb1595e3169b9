// Package racetrack implements the racetrack control problem (Sutton & Barto exercise 5.12)
// as an episodic environment: a car moves over a grid track under noisy acceleration,
// crashing back to the start line when it leaves the track and finishing on a goal cell.
package racetrack

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	// Kinematic limits per velocity component. A velocity of 1 means traveling one grid cell per time step.
	MaxVelocity = 10
	MinVelocity = -MaxVelocity

	// Probability that an action's velocity change is applied. Otherwise velocity is unchanged.
	// Older course material states 0.85; the dynamics use 0.8.
	AccelerationProb = 0.8

	// Rewards
	CrashReward = -10
	GoalReward  = 10
	StepReward  = -1
)

// Usage and argument errors returned by Step. None of these are transient.
var (
	ErrNeedsReset          error = errors.New("step called when reset is needed: reset initializes an episode before the first step and after an episode ends")
	ErrInvalidActionKind   error = errors.New("action must be an integer")
	ErrActionOutOfRange    error = errors.New("action must be an integer in the range [0-8]")
	ErrInternalConsistency error = errors.New("unknown track cell kind")
	ErrNoStartCells        error = errors.New("track has no start cells")
)

// State is the observable state: position and velocity. It encodes to JSON as the
// tuple [row, col, vrow, vcol].
type State struct {
	Row, Col, VRow, VCol int
}

// Tuple returns the state as (row, col, vrow, vcol).
func (s State) Tuple() [4]int {
	return [4]int{s.Row, s.Col, s.VRow, s.VCol}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tuple())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var tuple [4]int
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	*s = State{Row: tuple[0], Col: tuple[1], VRow: tuple[2], VCol: tuple[3]}
	return nil
}

// Source is the environment's randomness: the per-step noise draw and start cell choice.
// *rand.Rand satisfies it; inject a seeded one for reproducible episodes.
type Source interface {
	// Float64 returns a uniform value in [0,1).
	Float64() float64
	// Intn returns a uniform value in [0,n).
	Intn(n int) int
}

// Env is a single racetrack environment. An Env is not safe for concurrent use, but
// independent instances share no state.
type Env struct {
	track         *Track
	initialStates []Vec2
	rng           Source

	position Vec2
	velocity Vec2
	isActive bool
}

// NewEnv returns an inactive environment over the passed track; Reset must be called before Step.
func NewEnv(track *Track, rng Source) (*Env, error) {
	starts := track.Cells(CellStart)
	if len(starts) == 0 {
		return nil, ErrNoStartCells
	}

	return &Env{
		track:         track,
		initialStates: starts,
		rng:           rng,
	}, nil
}

// GetActions returns the legal action ids, 0 through 8.
func (env *Env) GetActions() []int {
	actions := make([]int, NumActions)
	for i := range actions {
		actions[i] = i
	}
	return actions
}

// Reset starts an episode from a uniformly chosen start cell with zero velocity.
func (env *Env) Reset() State {
	env.respawn()
	env.isActive = true
	return env.state()
}

// outcome is the resolution of a candidate position against the track.
type outcome int

const (
	outcomeMove outcome = iota
	outcomeGoal
	outcomeOutOfBounds
	outcomeCrash
	outcomeUnknownCell
)

func (env *Env) resolve(candidate Vec2) outcome {
	if !env.track.InBounds(candidate.Row, candidate.Col) {
		return outcomeOutOfBounds
	}

	switch env.track.cells[candidate.Row][candidate.Col] {
	case CellWall:
		return outcomeCrash
	case CellTrack, CellStart:
		return outcomeMove
	case CellGoal:
		return outcomeGoal
	}
	return outcomeUnknownCell
}

// Step takes an action in the current state, returning the successor state, the reward and
// whether the episode has ended. A terminal step deactivates the environment until the next Reset.
func (env *Env) Step(action int) (state State, reward int, terminal bool, err error) {
	if !env.isActive {
		err = ErrNeedsReset
		return
	}

	delta, ok := ActionDelta(action)
	if !ok {
		err = fmt.Errorf("%w: %d was supplied", ErrActionOutOfRange, action)
		return
	}

	// The intended velocity change is suppressed with probability 1-AccelerationProb.
	if env.rng.Float64() >= AccelerationProb {
		delta = Vec2{}
	}
	velocity := clampVelocity(env.velocity.Add(delta))
	candidate := env.position.Add(velocity)

	switch env.resolve(candidate) {
	case outcomeOutOfBounds, outcomeCrash:
		env.respawn()
		reward += CrashReward
	case outcomeMove:
		env.position, env.velocity = candidate, velocity
	case outcomeGoal:
		env.position, env.velocity = candidate, velocity
		reward += GoalReward
		terminal = true
	default:
		kind := env.track.cells[candidate.Row][candidate.Col]
		env.isActive = false
		err = fmt.Errorf("%w %s at (%d,%d)", ErrInternalConsistency, kind, candidate.Row, candidate.Col)
		return
	}

	reward += StepReward
	if terminal {
		env.isActive = false
	}

	state = env.state()
	return
}

// StepValue is Step for loosely typed callers, e.g. decoded JSON. Any Go integer kind or an
// integral json.Number is accepted; other values fail with ErrInvalidActionKind.
func (env *Env) StepValue(action interface{}) (State, int, bool, error) {
	if !env.isActive {
		return State{}, 0, false, ErrNeedsReset
	}

	id, err := toActionID(action)
	if err != nil {
		return State{}, 0, false, err
	}
	return env.Step(id)
}

func toActionID(action interface{}) (int, error) {
	var id int64
	switch v := action.(type) {
	case int:
		return v, nil
	case int8:
		id = int64(v)
	case int16:
		id = int64(v)
	case int32:
		id = int64(v)
	case int64:
		id = v
	case uint:
		return uintActionID(uint64(v))
	case uint8:
		id = int64(v)
	case uint16:
		id = int64(v)
	case uint32:
		id = int64(v)
	case uint64:
		return uintActionID(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: value %v of type %T was supplied", ErrInvalidActionKind, action, action)
		}
		id = n
	default:
		return 0, fmt.Errorf("%w: value %v of type %T was supplied", ErrInvalidActionKind, action, action)
	}

	if id < math.MinInt32 || id > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d was supplied", ErrActionOutOfRange, id)
	}
	return int(id), nil
}

func uintActionID(v uint64) (int, error) {
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d was supplied", ErrActionOutOfRange, v)
	}
	return int(v), nil
}

// respawn returns the car to a random start cell at rest. Used by both reset and crashes.
func (env *Env) respawn() {
	env.position = env.initialStates[env.rng.Intn(len(env.initialStates))]
	env.velocity = Vec2{}
}

func (env *Env) state() State {
	return State{
		Row:  env.position.Row,
		Col:  env.position.Col,
		VRow: env.velocity.Row,
		VCol: env.velocity.Col,
	}
}

// Track returns the environment's track.
func (env *Env) Track() *Track {
	return env.track
}

// Position returns the car's current cell.
func (env *Env) Position() Vec2 {
	return env.position
}

// Velocity returns the car's current velocity.
func (env *Env) Velocity() Vec2 {
	return env.velocity
}

// Dims returns the grid's row and column counts.
func (env *Env) Dims() (rows, cols int) {
	return env.track.rows, env.track.cols
}

// InitialStates returns a copy of the start cell coordinates.
func (env *Env) InitialStates() []Vec2 {
	return append([]Vec2(nil), env.initialStates...)
}

// IsActive reports whether Step may be called.
func (env *Env) IsActive() bool {
	return env.isActive
}
