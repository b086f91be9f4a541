package searcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hyperband/pkg/model"
)

// RoundReport summarizes one outer iteration of a diagonal Hyperband run.
type RoundReport struct {
	Iteration      int           `json:"iteration"`
	ActiveBrackets []int         `json:"active_brackets"`
	WorkingSet     int           `json:"working_set"`
	Resource       int           `json:"resource"`
	WarmStart      bool          `json:"warm_start"`
	Elapsed        time.Duration `json:"elapsed"`
	// BestKey is zero while no configuration has reported a finite loss.
	BestKey  model.MSTKey `json:"best_mst_key,omitempty"`
	BestLoss float64      `json:"best_loss"`
}

// RoundHook is called after every completed outer iteration.
type RoundHook func(RoundReport)

// ExecutorState is the mutable state a DiagonalExecutor threads between iterations.
type ExecutorState struct {
	// Iteration is the next outer iteration to run.
	Iteration    int
	TrainerCalls int
	Rounds       []RoundReport
	Best         *model.ConfigurationResult
}

// Progress returns the fraction of outer iterations completed.
func (s *ExecutorState) Progress(iterations int) float64 {
	if iterations <= 0 {
		return 0
	}
	return float64(s.Iteration) / float64(iterations)
}

// DiagonalExecutor runs a Hyperband schedule diagonally: outer iteration i trains round
// i-(s_max-s) of every bracket s in [s_max-i, s_max] in one trainer call.
type DiagonalExecutor struct {
	runID    uuid.UUID
	name     string
	schedule *Schedule
	pool     *ConfigurationPool
	trainer  Trainer
	store    ResultStore
	clock    clockwork.Clock
	hooks    []RoundHook
	log      *log.Entry
}

// ExecutorOption configures a DiagonalExecutor.
type ExecutorOption func(*DiagonalExecutor)

// WithClock sets the clock used to time trainer calls.
func WithClock(clock clockwork.Clock) ExecutorOption {
	return func(e *DiagonalExecutor) { e.clock = clock }
}

// WithRoundHook registers a hook that observes every completed iteration.
func WithRoundHook(hook RoundHook) ExecutorOption {
	return func(e *DiagonalExecutor) { e.hooks = append(e.hooks, hook) }
}

// WithRunName sets the human readable run name used in logs and the summary.
func WithRunName(name string) ExecutorOption {
	return func(e *DiagonalExecutor) { e.name = name }
}

// NewDiagonalExecutor lays out the configuration pool for schedule and returns an executor
// ready to Run.
func NewDiagonalExecutor(
	runID uuid.UUID, schedule *Schedule, trainer Trainer, store ResultStore,
	opts ...ExecutorOption,
) (*DiagonalExecutor, error) {
	pool, err := NewConfigurationPool(schedule.Brackets())
	if err != nil {
		return nil, err
	}
	e := &DiagonalExecutor{
		runID:    runID,
		schedule: schedule,
		pool:     pool,
		trainer:  trainer,
		store:    store,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	fields := log.Fields{"run-id": runID.String()}
	if e.name != "" {
		fields["run-name"] = e.name
	}
	e.log = log.WithFields(fields)
	return e, nil
}

// RunID returns the id the run's records are stored under.
func (e *DiagonalExecutor) RunID() uuid.UUID {
	return e.runID
}

// Pool returns the configuration pool of the run.
func (e *DiagonalExecutor) Pool() *ConfigurationPool {
	return e.pool
}

// Run assigns keys to candidates, which must number Pool().Size(), and executes every outer
// iteration in order. Any failure aborts the run at the current iteration.
func (e *DiagonalExecutor) Run(ctx context.Context, candidates []model.Candidate) (*Summary, error) {
	configs, err := e.pool.Assign(candidates)
	if err != nil {
		return nil, err
	}
	if err := e.store.PutSchedule(ctx, e.runID, e.schedule.Entries()); err != nil {
		return nil, errors.Wrap(err, "persisting schedule")
	}

	e.log.WithFields(log.Fields{
		"s-max":          e.schedule.MaxBracket(),
		"iterations":     e.schedule.Iterations(),
		"configurations": len(configs),
	}).Info("starting diagonal hyperband search")

	tracker := NewResultTracker(e.runID, e.store)
	state := &ExecutorState{}
	for state.Iteration < e.schedule.Iterations() {
		if err := e.step(ctx, state, tracker, configs); err != nil {
			return nil, err
		}
	}
	return e.summarize(ctx, state, len(configs))
}

func (e *DiagonalExecutor) step(
	ctx context.Context, state *ExecutorState, tracker *ResultTracker,
	configs []model.Configuration,
) error {
	i := state.Iteration
	logger := e.log.WithField("iteration", i)

	req, rounds, err := e.workingSet(ctx, i, tracker, configs, logger)
	if err != nil {
		return err
	}

	start := e.clock.Now()
	results, err := e.trainer.Train(ctx, req)
	elapsed := e.clock.Since(start)
	state.TrainerCalls++
	if err != nil {
		return &ExternalExecutionError{Iteration: i, Err: err}
	}

	byKey, err := validateResults(req, results)
	if err != nil {
		return err
	}

	updated, err := tracker.Record(ctx, RoundUpdate{
		Iteration: i,
		Resource:  req.Resource,
		Rounds:    rounds,
		Items:     req.Items,
		Results:   byKey,
	})
	if err != nil {
		return err
	}

	report := RoundReport{
		Iteration:      i,
		ActiveBrackets: e.schedule.ActiveBrackets(i),
		WorkingSet:     len(req.Items),
		Resource:       req.Resource,
		WarmStart:      req.WarmStart,
		Elapsed:        elapsed,
	}
	if best, ok := bestOf(updated); ok {
		if state.Best == nil || rankedConfigComparator(
			rankedConfig{key: best.MSTKey, loss: best.FinalLoss},
			rankedConfig{key: state.Best.MSTKey, loss: state.Best.FinalLoss},
		) < 0 {
			state.Best = &best
		}
	}
	// Until some configuration reports a finite loss there is no best to report.
	if state.Best != nil && !math.IsNaN(state.Best.FinalLoss) && !math.IsInf(state.Best.FinalLoss, 0) {
		report.BestKey = state.Best.MSTKey
		report.BestLoss = state.Best.FinalLoss
	}
	state.Rounds = append(state.Rounds, report)
	state.Iteration++

	logger.WithFields(log.Fields{
		"brackets":    report.ActiveBrackets,
		"working-set": report.WorkingSet,
		"resource":    report.Resource,
		"elapsed":     elapsed,
		"best":        report.BestKey,
		"best-loss":   report.BestLoss,
	}).Info("completed hyperband iteration")

	for _, hook := range e.hooks {
		hook(report)
	}
	return nil
}

// workingSet assembles the trainer request for iteration i: the full range of the bracket
// entering the schedule, plus the survivors of every older active bracket.
func (e *DiagonalExecutor) workingSet(
	ctx context.Context, i int, tracker *ResultTracker, configs []model.Configuration,
	logger *log.Entry,
) (TrainRequest, map[int]int, error) {
	req := TrainRequest{
		RunID:     e.runID,
		Iteration: i,
		Resource:  e.schedule.Resource(i),
		WarmStart: i > 0,
	}
	rounds := make(map[int]int)

	for _, s := range e.schedule.ActiveBrackets(i) {
		round := e.schedule.LocalRound(i, s)
		rounds[s] = round
		target, ok := e.schedule.TargetConfigs(i, s)
		if !ok {
			return TrainRequest{}, nil, errors.Errorf(
				"no schedule entry for bracket %d round %d", s, round)
		}

		var keys []model.MSTKey
		if round == 0 {
			r, _ := e.pool.Range(s)
			keys = r.Keys()
		} else {
			previous, err := e.store.GetBracketResults(ctx, e.runID, s)
			if err != nil {
				return TrainRequest{}, nil, errors.Wrapf(err, "loading results of bracket %d", s)
			}
			losses := make(map[model.MSTKey]float64)
			for _, rec := range previous {
				if rec.Round == round-1 && rec.Iteration == i-1 {
					losses[rec.MSTKey] = rec.FinalLoss
				}
			}
			if keys, err = Prune(s, losses, target); err != nil {
				return TrainRequest{}, nil, err
			}
			logger.WithFields(log.Fields{
				"bracket":   s,
				"round":     round,
				"kept":      len(keys),
				"evaluated": len(losses),
			}).Debug("pruned bracket")
		}

		for _, key := range keys {
			req.Items = append(req.Items, TrainItem{
				Configuration: configs[key-1],
				State:         tracker.State(key),
			})
		}
	}
	return req, rounds, nil
}

// validateResults indexes results by key, failing if any submitted key is missing or any
// result is unexpected or duplicated.
func validateResults(req TrainRequest, results []TrainResult) (map[model.MSTKey]TrainResult, error) {
	submitted := make(map[model.MSTKey]bool, len(req.Items))
	for _, key := range req.Keys() {
		submitted[key] = true
	}

	var merr *multierror.Error
	byKey := make(map[model.MSTKey]TrainResult, len(results))
	for _, r := range results {
		switch _, seen := byKey[r.Key]; {
		case !submitted[r.Key]:
			merr = multierror.Append(merr, fmt.Errorf("result for unsubmitted configuration %d", r.Key))
		case seen:
			merr = multierror.Append(merr, fmt.Errorf("duplicate result for configuration %d", r.Key))
		default:
			byKey[r.Key] = r
		}
	}

	var missing []model.MSTKey
	for _, key := range req.Keys() {
		if _, ok := byKey[key]; !ok {
			missing = append(missing, key)
			merr = multierror.Append(merr, fmt.Errorf("no result for configuration %d", key))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, &InsufficientResultsError{
			Bracket: -1,
			Want:    len(req.Items),
			Got:     len(byKey),
			Missing: missing,
			Cause:   err,
		}
	}
	return byKey, nil
}
