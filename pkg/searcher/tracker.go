package searcher

import (
	"context"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/determined-ai/hyperband/pkg/model"
)

// RoundUpdate describes one completed trainer call as seen by a ResultTracker.
type RoundUpdate struct {
	Iteration int
	Resource  int
	// Rounds maps each bracket in the call to its local round index.
	Rounds map[int]int
	Items  []TrainItem
	// Results holds exactly one result per item.
	Results map[model.MSTKey]TrainResult
}

// ResultTracker accumulates per-configuration history across rounds and writes it through to
// a ResultStore. History is only ever appended to.
type ResultTracker struct {
	runID   uuid.UUID
	store   ResultStore
	records map[model.MSTKey]*model.ConfigurationResult
	states  map[model.MSTKey]model.ModelState
}

// NewResultTracker returns an empty tracker for a run.
func NewResultTracker(runID uuid.UUID, store ResultStore) *ResultTracker {
	return &ResultTracker{
		runID:   runID,
		store:   store,
		records: make(map[model.MSTKey]*model.ConfigurationResult),
		states:  make(map[model.MSTKey]model.ModelState),
	}
}

// Record folds a round into the history of every configuration in it. Configurations seen
// before get their histories appended to, with metric iterations offset by the resource they
// already consumed; new ones get fresh records. The store is written before the tracker's
// own view changes, so a failed write leaves the tracker as it was.
func (t *ResultTracker) Record(
	ctx context.Context, update RoundUpdate,
) ([]model.ConfigurationResult, error) {
	updated := make([]model.ConfigurationResult, 0, len(update.Items))
	for _, item := range update.Items {
		result, ok := update.Results[item.Key]
		if !ok {
			return nil, &InsufficientResultsError{
				Bracket: item.Bracket, Want: len(update.Items), Got: len(update.Results),
				Missing: []model.MSTKey{item.Key},
			}
		}
		round, ok := update.Rounds[item.Bracket]
		if !ok {
			return nil, errors.Errorf("no round given for bracket %d", item.Bracket)
		}

		var rec model.ConfigurationResult
		if prev, ok := t.records[item.Key]; ok {
			if err := copier.CopyWithOption(&rec, prev, copier.Option{DeepCopy: true}); err != nil {
				return nil, errors.Wrapf(err, "copying record of configuration %d", item.Key)
			}
		} else {
			rec = model.ConfigurationResult{
				RunID:           t.runID,
				MSTKey:          item.Key,
				Bracket:         item.Bracket,
				Hyperparameters: item.Candidate.Hyperparameters,
			}
		}

		offset := rec.Iterations
		for _, m := range result.MetricHistory {
			m.Iteration += offset
			rec.MetricHistory = append(rec.MetricHistory, m)
		}
		rec.LossHistory = append(rec.LossHistory, result.FinalLoss)
		rec.Iterations += update.Resource
		rec.Round = round
		rec.Iteration = update.Iteration
		rec.FinalLoss = result.FinalLoss
		rec.FinalMetric = result.FinalMetric
		rec.Elapsed += result.Elapsed
		updated = append(updated, rec)
	}

	if err := t.store.PutConfigurationResult(ctx, t.runID, updated...); err != nil {
		return nil, errors.Wrapf(err, "persisting results of iteration %d", update.Iteration)
	}

	for i := range updated {
		rec := updated[i]
		t.records[rec.MSTKey] = &rec
		if state := update.Results[rec.MSTKey].State; state != nil {
			t.states[rec.MSTKey] = state
		}
	}
	return updated, nil
}

// Get returns the current record of a configuration.
func (t *ResultTracker) Get(key model.MSTKey) (model.ConfigurationResult, bool) {
	rec, ok := t.records[key]
	if !ok {
		return model.ConfigurationResult{}, false
	}
	return *rec, true
}

// State returns the last model state the trainer produced for a configuration.
func (t *ResultTracker) State(key model.MSTKey) model.ModelState {
	return t.states[key]
}

// Records returns every record ordered by key.
func (t *ResultTracker) Records() []model.ConfigurationResult {
	keys := maps.Keys(t.records)
	slices.Sort(keys)
	records := make([]model.ConfigurationResult, 0, len(keys))
	for _, k := range keys {
		records = append(records, *t.records[k])
	}
	return records
}

// Best returns the record with the lowest final loss, ties going to the lower key.
func (t *ResultTracker) Best() (model.ConfigurationResult, bool) {
	return bestOf(t.Records())
}

func bestOf(records []model.ConfigurationResult) (model.ConfigurationResult, bool) {
	var best *model.ConfigurationResult
	for i := range records {
		rec := &records[i]
		if best == nil || rankedConfigComparator(
			rankedConfig{key: rec.MSTKey, loss: rec.FinalLoss},
			rankedConfig{key: best.MSTKey, loss: best.FinalLoss},
		) < 0 {
			best = rec
		}
	}
	if best == nil {
		return model.ConfigurationResult{}, false
	}
	return *best, true
}
