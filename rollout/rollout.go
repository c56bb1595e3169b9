// Package rollout drives many independent racetrack environments in parallel and collects
// their episode returns, e.g. to feed learning-curve displays or to smoke test a track.
// It does not learn; the policy is supplied by the caller.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"racetrack/atomic_float"
	"racetrack/racetrack"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

// PolicyFunc chooses an action for the state from the legal actions, using rng for any randomness.
type PolicyFunc func(rng *rand.Rand, state racetrack.State, actions []int) int

// RandomPolicy chooses uniformly among the legal actions.
func RandomPolicy(rng *rand.Rand, _ racetrack.State, actions []int) int {
	return actions[rng.Intn(len(actions))]
}

// FixedPolicy always takes the same action.
func FixedPolicy(action int) PolicyFunc {
	return func(_ *rand.Rand, _ racetrack.State, _ []int) int {
		return action
	}
}

var ErrUnknownPolicy error = errors.New("unknown policy")

// PolicyFromConfig returns the configured policy. The "fixed" policy reads its action from
// the "action" parameter, defaulting to 4 (hold both components).
func PolicyFromConfig(cfg *Config) (PolicyFunc, error) {
	switch cfg.Policy {
	case "", "random":
		return RandomPolicy, nil
	case "fixed":
		return FixedPolicy(int(cfg.GetParamOrDefault("action", 4))), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownPolicy, cfg.Policy)
}

// Step is a single time step of an episode: take action in state, observe reward and successor.
type Step struct {
	State     racetrack.State
	Action    int
	Reward    int
	Successor racetrack.State
}

// Episode is the sequence of Steps taken by one worker from reset to a goal, or to MaxSteps.
type Episode struct {
	Worker    int
	Index     int
	Steps     []Step
	Return    float64
	Truncated bool
}

// ProgressFunc is a callback by which the run lends progress details. It is synchronous
// and should complete quickly.
type ProgressFunc func(ctx context.Context, episodeCount int)

// Results holds the per-worker return sequences of a run, indexed [worker][episode].
type Results struct {
	Returns   [][]float64
	Lengths   [][]int
	Truncated int
	// Complete is false if the run stopped on its deadline before every worker finished.
	Complete    bool
	totalReturn *atomic_float.AtomicFloat64
}

// Episodes returns the number of episodes collected.
func (res *Results) Episodes() (n int) {
	for _, returns := range res.Returns {
		n += len(returns)
	}
	return
}

// TotalReturn returns the sum of returns over every episode completed so far.
// Workers add to it concurrently, so it may run ahead of Returns while a run is underway.
func (res *Results) TotalReturn() float64 {
	return res.totalReturn.AtomicRead()
}

func (res *Results) add(episode *Episode) {
	res.Returns[episode.Worker] = append(res.Returns[episode.Worker], episode.Return)
	res.Lengths[episode.Worker] = append(res.Lengths[episode.Worker], len(episode.Steps))
	if episode.Truncated {
		res.Truncated++
	}
}

/*
Run deploys cfg.Workers environments over the track, each with its own source seeded with
cfg.Seed plus its worker index, so that a run is reproducible per worker. Each worker runs
cfg.Episodes episodes. Coordination is simple:
  - workers generate and send episodes on their own channel
  - the channels are fanned in, and the collector records returns in arrival order per worker

An environment error (a malformed track cell) stops every worker and is returned with the
partial results. The context ending is not an error; Results.Complete is false instead.
*/
func Run(
	ctx context.Context,
	cfg *Config,
	track *racetrack.Track,
	policy PolicyFunc,
	progressFn ProgressFunc,
) (*Results, error) {
	run := *cfg
	run.fillDefaults()
	nworkers := run.Workers

	results := &Results{
		Returns:     make([][]float64, nworkers),
		Lengths:     make([][]int, nworkers),
		totalReturn: atomic_float.NewAtomicFloat64(0),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	workers := make([]<-chan *Episode, 0, nworkers)
	for i := 0; i < nworkers; i++ {
		env, err := racetrack.NewEnv(track, rand.New(rand.NewSource(run.Seed+int64(i))))
		if err != nil {
			return nil, err
		}
		w := &worker{
			id:          i,
			env:         env,
			rng:         rand.New(rand.NewSource(^(run.Seed + int64(i)))),
			policy:      policy,
			episodes:    run.Episodes,
			maxSteps:    run.MaxSteps,
			totalReturn: results.totalReturn,
		}
		out := make(chan *Episode)
		workers = append(workers, out)
		group.Go(func() error {
			defer close(out)
			return w.run(groupCtx, out)
		})
	}

	// Fan in the workers to a single channel; only the collector writes to results.
	epCount := 0
	for episode := range channerics.Merge(groupCtx.Done(), workers...) {
		results.add(episode)
		epCount++
		if progressFn != nil {
			progressFn(groupCtx, epCount)
		}
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	results.Complete = ctx.Err() == nil && results.Episodes() == nworkers*run.Episodes
	return results, nil
}

type worker struct {
	id          int
	env         *racetrack.Env
	rng         *rand.Rand
	policy      PolicyFunc
	episodes    int
	maxSteps    int
	totalReturn *atomic_float.AtomicFloat64
}

// run generates and sends episodes until the quota is reached or the context ends.
func (w *worker) run(ctx context.Context, out chan<- *Episode) error {
	for i := 0; i < w.episodes; i++ {
		// done-guard
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		episode, err := w.episode(ctx, i)
		if err != nil {
			return fmt.Errorf("worker %d episode %d: %w", w.id, i, err)
		}
		if episode == nil {
			return nil
		}
		w.totalReturn.Accumulate(episode.Return)

		select {
		case out <- episode:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// episode runs one episode; it returns nil without error if the context ends mid-episode.
func (w *worker) episode(ctx context.Context, index int) (*Episode, error) {
	episode := &Episode{
		Worker: w.id,
		Index:  index,
	}

	state := w.env.Reset()
	actions := w.env.GetActions()
	for {
		if len(episode.Steps) >= w.maxSteps {
			episode.Truncated = true
			return episode, nil
		}
		// Poll for cancellation every 1024 steps.
		if len(episode.Steps)%1024 == 1023 && ctx.Err() != nil {
			return nil, nil
		}

		action := w.policy(w.rng, state, actions)
		successor, reward, terminal, err := w.env.Step(action)
		if err != nil {
			return nil, err
		}
		episode.Steps = append(episode.Steps, Step{
			State:     state,
			Action:    action,
			Reward:    reward,
			Successor: successor,
		})
		episode.Return += float64(reward)
		state = successor

		if terminal {
			return episode, nil
		}
	}
}
