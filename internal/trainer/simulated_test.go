package trainer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hyperband/pkg/model"
	"github.com/determined-ai/hyperband/pkg/searcher"
)

func request(iteration, resource int, warm bool, items ...searcher.TrainItem) searcher.TrainRequest {
	return searcher.TrainRequest{
		Iteration: iteration,
		Resource:  resource,
		WarmStart: warm,
		Items:     items,
	}
}

func item(key model.MSTKey, lr float64) searcher.TrainItem {
	return searcher.TrainItem{Configuration: model.Configuration{
		Key:       key,
		Candidate: model.Candidate{Hyperparameters: model.Hyperparameters{"lr": lr}},
	}}
}

func TestSimulatedDeterministic(t *testing.T) {
	config := DefaultSimulationConfig()
	req := request(0, 3, false, item(1, 0.1), item(2, 0.01))

	a, err := NewSimulated(config, nil).Train(context.Background(), req)
	require.NoError(t, err)
	b, err := NewSimulated(config, nil).Train(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, a, 2)
	for i := range a {
		require.Equal(t, a[i].Key, b[i].Key)
		require.Equal(t, a[i].FinalLoss, b[i].FinalLoss)
		require.Equal(t, a[i].MetricHistory, b[i].MetricHistory)
	}
	require.NotEqual(t, a[0].FinalLoss, a[1].FinalLoss)
}

func TestSimulatedHistoryAndState(t *testing.T) {
	config := DefaultSimulationConfig()
	config.Noise = 0
	config.MetricPeriod = 2
	sim := NewSimulated(config, nil)

	first, err := sim.Train(context.Background(), request(0, 4, false, item(1, 0.1)))
	require.NoError(t, err)
	require.Len(t, first, 1)
	iterations := []int{}
	for _, m := range first[0].MetricHistory {
		iterations = append(iterations, m.Iteration)
	}
	require.Equal(t, []int{2, 4}, iterations)

	var state simulatedState
	require.NoError(t, json.Unmarshal(first[0].State, &state))
	require.Equal(t, 4, state.Trained)

	warm := item(1, 0.1)
	warm.State = first[0].State
	second, err := sim.Train(context.Background(), request(1, 12, true, warm))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(second[0].State, &state))
	require.Equal(t, 16, state.Trained)
	require.Less(t, second[0].FinalLoss, first[0].FinalLoss)

	// Without warm start the state is ignored and training restarts.
	cold, err := sim.Train(context.Background(), request(1, 12, false, warm))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(cold[0].State, &state))
	require.Equal(t, 12, state.Trained)
	require.Greater(t, cold[0].FinalLoss, second[0].FinalLoss)
}

func TestSimulatedElapsedUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	config := DefaultSimulationConfig()
	config.UnitDuration = model.Duration(time.Second)
	sim := NewSimulated(config, clock)

	done := make(chan []searcher.TrainResult)
	go func() {
		results, err := sim.Train(context.Background(), request(0, 3, false, item(1, 0.1)))
		if err != nil {
			close(done)
			return
		}
		done <- results
	}()
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)
	results := <-done
	require.Len(t, results, 1)
	require.Equal(t, 3*time.Second, results[0].Elapsed)
}

func TestSimulatedRejectsBadState(t *testing.T) {
	bad := item(1, 0.1)
	bad.State = model.ModelState("not json")
	_, err := NewSimulated(DefaultSimulationConfig(), nil).
		Train(context.Background(), request(1, 3, true, bad))
	require.ErrorContains(t, err, "decoding model state")
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulated(DefaultSimulationConfig(), nil).
		Train(ctx, request(0, 3, false, item(1, 0.1)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimulatedParallelKeepsOrder(t *testing.T) {
	config := DefaultSimulationConfig()
	config.Parallelism = 3
	var items []searcher.TrainItem
	for k := 1; k <= 20; k++ {
		items = append(items, item(model.MSTKey(k), float64(k)/100))
	}

	parallel, err := NewSimulated(config, nil).Train(context.Background(), request(0, 2, false, items...))
	require.NoError(t, err)
	config.Parallelism = 1
	serial, err := NewSimulated(config, nil).Train(context.Background(), request(0, 2, false, items...))
	require.NoError(t, err)

	require.Len(t, parallel, 20)
	for i := range parallel {
		require.Equal(t, model.MSTKey(i+1), parallel[i].Key)
		require.Equal(t, serial[i].FinalLoss, parallel[i].FinalLoss)
	}
}
