package searcher

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hyperband/pkg/model"
)

// Summary is the final report of a diagonal Hyperband run.
type Summary struct {
	RunID          uuid.UUID                         `json:"run_id"`
	Name           string                            `json:"name,omitempty"`
	Config         model.HyperbandConfig             `json:"config"`
	Schedule       []model.ScheduleEntry             `json:"schedule"`
	Rounds         []RoundReport                     `json:"rounds"`
	BracketBest    map[int]model.ConfigurationResult `json:"bracket_best"`
	Best           *model.ConfigurationResult        `json:"best"`
	TrainerCalls   int                               `json:"trainer_calls"`
	Configurations int                               `json:"configurations"`
	Progress       float64                           `json:"progress"`
}

// summarize reads the persisted records back and picks, for every bracket, the best
// configuration among those that reached its last round.
func (e *DiagonalExecutor) summarize(
	ctx context.Context, state *ExecutorState, configurations int,
) (*Summary, error) {
	schedule, err := e.store.GetSchedule(ctx, e.runID)
	if err != nil {
		return nil, errors.Wrap(err, "loading persisted schedule")
	}

	summary := &Summary{
		RunID:          e.runID,
		Name:           e.name,
		Config:         e.schedule.Config(),
		Schedule:       schedule,
		Rounds:         state.Rounds,
		BracketBest:    make(map[int]model.ConfigurationResult),
		TrainerCalls:   state.TrainerCalls,
		Configurations: configurations,
		Progress:       state.Progress(e.schedule.Iterations()),
	}

	var finalists []model.ConfigurationResult
	for _, s := range e.pool.Brackets() {
		records, err := e.store.GetBracketResults(ctx, e.runID, s)
		if err != nil {
			return nil, errors.Wrapf(err, "loading results of bracket %d", s)
		}
		lastRound := -1
		for _, rec := range records {
			if rec.Round > lastRound {
				lastRound = rec.Round
			}
		}
		var survivors []model.ConfigurationResult
		for _, rec := range records {
			if rec.Round == lastRound {
				survivors = append(survivors, rec)
			}
		}
		if best, ok := bestOf(survivors); ok {
			summary.BracketBest[s] = best
			finalists = append(finalists, best)
		}
	}
	if best, ok := bestOf(finalists); ok {
		summary.Best = &best
	}

	e.log.WithFields(log.Fields{
		"trainer-calls": summary.TrainerCalls,
		"best":          bestKey(summary.Best),
	}).Info("finished diagonal hyperband search")
	return summary, nil
}

func bestKey(rec *model.ConfigurationResult) interface{} {
	if rec == nil {
		return nil
	}
	return rec.MSTKey
}
