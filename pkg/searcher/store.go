package searcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/determined-ai/hyperband/pkg/model"
)

// ResultStore persists the schedule and configuration results of search runs.
type ResultStore interface {
	// PutSchedule stores the schedule rows of a run.
	PutSchedule(ctx context.Context, runID uuid.UUID, entries []model.ScheduleEntry) error
	// GetSchedule returns the schedule rows of a run in (bracket desc, round asc) order.
	GetSchedule(ctx context.Context, runID uuid.UUID) ([]model.ScheduleEntry, error)
	// PutConfigurationResult inserts or replaces result records. Either all records are
	// written or none are.
	PutConfigurationResult(
		ctx context.Context, runID uuid.UUID, records ...model.ConfigurationResult,
	) error
	// GetBracketResults returns every result record of a bracket ordered by key.
	GetBracketResults(
		ctx context.Context, runID uuid.UUID, bracket int,
	) ([]model.ConfigurationResult, error)
}
