package trainer

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/determined-ai/hyperband/pkg/model"
	"github.com/determined-ai/hyperband/pkg/searcher"
)

// SimulationConfig configures the Simulated trainer.
type SimulationConfig struct {
	Seed uint64 `json:"seed"`
	// Parallelism is how many configurations of one call train at once.
	Parallelism int `json:"parallelism"`
	// MetricPeriod is how many resource units pass between metric entries; zero reports only
	// the final metric of each call.
	MetricPeriod int `json:"metric_period"`
	// Noise is the standard deviation of the gaussian noise added to every loss.
	Noise float64 `json:"noise"`
	// UnitDuration is the simulated wall time of one resource unit.
	UnitDuration model.Duration `json:"unit_duration"`
}

// DefaultSimulationConfig returns the default SimulationConfig.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Seed:         1,
		Parallelism:  4,
		MetricPeriod: 1,
		Noise:        0.01,
	}
}

// simulatedState is the model state the simulated trainer hands back between calls.
type simulatedState struct {
	Trained int `json:"trained"`
}

// Simulated is a stand-in training engine whose loss curves decay as
// floor + scale / sqrt(1 + trained). The floor and scale of a configuration depend only on the
// seed and its hyperparameters, so runs are reproducible.
type Simulated struct {
	config SimulationConfig
	clock  clockwork.Clock
}

// NewSimulated returns a Simulated trainer. A nil clock means the real clock.
func NewSimulated(config SimulationConfig, clock clockwork.Clock) *Simulated {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Simulated{config: config, clock: clock}
}

// Train implements searcher.Trainer. Items are trained concurrently, up to Parallelism at a
// time, and results keep the order of the request.
func (s *Simulated) Train(
	ctx context.Context, req searcher.TrainRequest,
) ([]searcher.TrainResult, error) {
	results := make([]searcher.TrainResult, len(req.Items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.Parallelism, 1))
	for i, item := range req.Items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.train(req, item)
			if err != nil {
				return errors.Wrapf(err, "training configuration %d", item.Key)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Simulated) train(
	req searcher.TrainRequest, item searcher.TrainItem,
) (searcher.TrainResult, error) {
	var state simulatedState
	if req.WarmStart && item.State != nil {
		if err := json.Unmarshal(item.State, &state); err != nil {
			return searcher.TrainResult{}, errors.Wrap(err, "decoding model state")
		}
	}

	seed, err := s.seed(item.Candidate.Hyperparameters)
	if err != nil {
		return searcher.TrainResult{}, err
	}
	rng := rand.New(rand.NewSource(seed))
	floor := 0.05 + 0.5*rng.Float64()
	scale := 0.5 + rng.Float64()

	// Noise must differ between calls on the same configuration.
	noise := rand.New(rand.NewSource(seed ^ uint64(req.Iteration+1)*0x9e3779b97f4a7c15))
	loss := func(trained int) float64 {
		l := floor + scale/math.Sqrt(1+float64(trained)) + s.config.Noise*noise.NormFloat64()
		return math.Max(l, 0)
	}

	start := s.clock.Now()
	var history []model.MetricEntry
	for unit := 1; unit <= req.Resource; unit++ {
		if s.config.MetricPeriod > 0 && unit%s.config.MetricPeriod == 0 && unit != req.Resource {
			l := loss(state.Trained + unit)
			history = append(history, model.MetricEntry{Iteration: unit, Loss: l, Metric: 1 - l})
		}
	}
	final := loss(state.Trained + req.Resource)
	history = append(history, model.MetricEntry{Iteration: req.Resource, Loss: final, Metric: 1 - final})
	if d := time.Duration(s.config.UnitDuration) * time.Duration(req.Resource); d > 0 {
		s.clock.Sleep(d)
	}

	state.Trained += req.Resource
	encoded, err := json.Marshal(state)
	if err != nil {
		return searcher.TrainResult{}, errors.Wrap(err, "encoding model state")
	}
	return searcher.TrainResult{
		Key:           item.Key,
		FinalLoss:     final,
		FinalMetric:   1 - final,
		MetricHistory: history,
		Elapsed:       s.clock.Since(start),
		State:         encoded,
	}, nil
}

func (s *Simulated) seed(hparams model.Hyperparameters) (uint64, error) {
	// encoding/json sorts map keys, which makes the hash independent of map order.
	bs, err := json.Marshal(hparams)
	if err != nil {
		return 0, errors.Wrap(err, "hashing hyperparameters")
	}
	h := fnv.New64a()
	_, _ = h.Write(bs)
	return h.Sum64() ^ s.config.Seed, nil
}
