package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/determined-ai/hyperband/pkg/searcher"
)

const searchSubsystem = "search"

var (
	// TrainerSeconds times every trainer call.
	TrainerSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: searchSubsystem,
		Name:      "trainer_seconds",
		Help:      "Duration of batch trainer calls.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})
	// TrainerErrors counts failed trainer calls.
	TrainerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: searchSubsystem,
		Name:      "trainer_errors_total",
		Help:      "Number of failed trainer calls.",
	})
	// ConfigurationsTrained counts configuration-rounds submitted to the trainer.
	ConfigurationsTrained = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: searchSubsystem,
		Name:      "configurations_trained_total",
		Help:      "Number of configurations submitted to the trainer across all rounds.",
	})
	// Iteration is the last completed outer iteration.
	Iteration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: searchSubsystem,
		Name:      "iteration",
		Help:      "Last completed diagonal iteration.",
	})
	// BestLoss is the lowest loss seen so far.
	BestLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: searchSubsystem,
		Name:      "best_loss",
		Help:      "Lowest final loss reported so far.",
	})
)

// Register adds the search collectors to r.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		TrainerSeconds, TrainerErrors, ConfigurationsTrained, Iteration, BestLoss,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRound is a searcher.RoundHook that updates the iteration gauges. BestLoss keeps its
// value until a round reports a best configuration.
func ObserveRound(r searcher.RoundReport) {
	Iteration.Set(float64(r.Iteration))
	ConfigurationsTrained.Add(float64(r.WorkingSet))
	if r.BestKey != 0 {
		BestLoss.Set(r.BestLoss)
	}
}
