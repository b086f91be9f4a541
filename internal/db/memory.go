package db

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/determined-ai/hyperband/pkg/model"
)

// MemoryStore keeps search runs in process memory. Records are deep copied on the way in and
// out so callers never share slices with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID][]model.ScheduleEntry
	results   map[uuid.UUID]map[model.MSTKey]model.ConfigurationResult
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[uuid.UUID][]model.ScheduleEntry),
		results:   make(map[uuid.UUID]map[model.MSTKey]model.ConfigurationResult),
	}
}

// PutSchedule implements searcher.ResultStore.
func (s *MemoryStore) PutSchedule(
	_ context.Context, runID uuid.UUID, entries []model.ScheduleEntry,
) error {
	var stored []model.ScheduleEntry
	if err := copier.CopyWithOption(&stored, &entries, copier.Option{DeepCopy: true}); err != nil {
		return errors.Wrap(err, "copying schedule")
	}
	for i := range stored {
		stored[i].RunID = runID
	}
	sortSchedule(stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[runID] = stored
	return nil
}

// GetSchedule implements searcher.ResultStore.
func (s *MemoryStore) GetSchedule(
	_ context.Context, runID uuid.UUID,
) ([]model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.schedules[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.ScheduleEntry(nil), stored...), nil
}

// PutConfigurationResult implements searcher.ResultStore.
func (s *MemoryStore) PutConfigurationResult(
	_ context.Context, runID uuid.UUID, records ...model.ConfigurationResult,
) error {
	copies := make([]model.ConfigurationResult, len(records))
	for i := range records {
		if err := copier.CopyWithOption(
			&copies[i], &records[i], copier.Option{DeepCopy: true},
		); err != nil {
			return errors.Wrapf(err, "copying record of configuration %d", records[i].MSTKey)
		}
		copies[i].RunID = runID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.results[runID]
	if !ok {
		run = make(map[model.MSTKey]model.ConfigurationResult)
		s.results[runID] = run
	}
	for _, rec := range copies {
		run[rec.MSTKey] = rec
	}
	return nil
}

// GetBracketResults implements searcher.ResultStore.
func (s *MemoryStore) GetBracketResults(
	_ context.Context, runID uuid.UUID, bracket int,
) ([]model.ConfigurationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.ConfigurationResult
	for _, rec := range s.results[runID] {
		if rec.Bracket != bracket {
			continue
		}
		var out model.ConfigurationResult
		if err := copier.CopyWithOption(&out, &rec, copier.Option{DeepCopy: true}); err != nil {
			return nil, errors.Wrapf(err, "copying record of configuration %d", rec.MSTKey)
		}
		records = append(records, out)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].MSTKey < records[j].MSTKey })
	return records, nil
}

func sortSchedule(entries []model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Bracket != entries[j].Bracket {
			return entries[i].Bracket > entries[j].Bracket
		}
		return entries[i].Round < entries[j].Round
	})
}
