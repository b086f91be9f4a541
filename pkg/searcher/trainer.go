package searcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/determined-ai/hyperband/pkg/model"
)

// TrainItem is one configuration submitted to a Trainer.
type TrainItem struct {
	model.Configuration
	// State is what the trainer returned for this configuration last time, if anything.
	State model.ModelState
}

// TrainRequest is a single batch call into the training engine.
type TrainRequest struct {
	RunID     uuid.UUID
	Iteration int
	// Resource is the number of resource units every configuration trains for in this call.
	Resource  int
	WarmStart bool
	Items     []TrainItem
}

// Keys returns the configuration keys of the request in submission order.
func (r TrainRequest) Keys() []model.MSTKey {
	keys := make([]model.MSTKey, 0, len(r.Items))
	for _, item := range r.Items {
		keys = append(keys, item.Key)
	}
	return keys
}

// TrainResult is the outcome of training one configuration for one call.
type TrainResult struct {
	Key         model.MSTKey
	FinalLoss   float64
	FinalMetric float64
	// MetricHistory holds the metrics measured during this call, with iterations counted
	// from the start of the call.
	MetricHistory []model.MetricEntry
	Elapsed       time.Duration
	State         model.ModelState
}

// Trainer is the external batch training engine. Train must return exactly one result per
// submitted configuration. Any parallelism across configurations is the trainer's business.
type Trainer interface {
	Train(ctx context.Context, req TrainRequest) ([]TrainResult, error)
}

// TrainerFunc adapts a function to the Trainer interface.
type TrainerFunc func(ctx context.Context, req TrainRequest) ([]TrainResult, error)

// Train implements the Trainer interface.
func (f TrainerFunc) Train(ctx context.Context, req TrainRequest) ([]TrainResult, error) {
	return f(ctx, req)
}
