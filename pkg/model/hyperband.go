package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MSTKey identifies one candidate configuration within a search run. Keys are assigned
// contiguously from 1.
type MSTKey int

// Hyperparameters is an opaque candidate configuration. The scheduler only forwards it.
type Hyperparameters map[string]interface{}

// Candidate is one configuration emitted by a configuration generator before the search
// starts.
type Candidate struct {
	Name            string          `json:"name"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
}

// Configuration is a candidate after it has been assigned a key and a bracket.
type Configuration struct {
	Key       MSTKey
	Bracket   int
	Candidate Candidate
}

// ModelState is the trainer-owned state of a partially trained configuration.
type ModelState []byte

// MetricEntry is a single point of a configuration's metric history.
type MetricEntry struct {
	Iteration int     `json:"iteration"`
	Loss      float64 `json:"loss"`
	Metric    float64 `json:"metric"`
}

// ScheduleEntry is one (bracket, round) row of a Hyperband schedule.
type ScheduleEntry struct {
	bun.BaseModel `bun:"table:hyperband_schedules"`

	RunID    uuid.UUID `bun:"run_id,pk,type:uuid" json:"-"`
	Bracket  int       `bun:"bracket,pk" json:"bracket"`
	Round    int       `bun:"round,pk" json:"round"`
	Configs  int       `bun:"configs,notnull" json:"configs"`
	Resource int       `bun:"resource,notnull" json:"resource"`
}

// ConfigurationResult is the persisted result record of one configuration.
type ConfigurationResult struct {
	bun.BaseModel `bun:"table:hyperband_results"`

	RunID  uuid.UUID `bun:"run_id,pk,type:uuid" json:"-"`
	MSTKey MSTKey    `bun:"mst_key,pk" json:"mst_key"`

	Bracket int `bun:"bracket,notnull" json:"bracket"`
	// Round is the bracket-local round most recently completed.
	Round int `bun:"round,notnull" json:"round"`
	// Iteration is the outer diagonal iteration that round was trained in.
	Iteration int `bun:"iteration,notnull" json:"iteration"`

	LossHistory   []float64     `bun:"loss_history,array" json:"loss_history"`
	MetricHistory []MetricEntry `bun:"metric_history,type:jsonb" json:"metric_history"`
	// Iterations is the cumulative number of resource units the configuration consumed.
	Iterations int `bun:"iterations,notnull" json:"iterations"`

	FinalLoss   float64       `bun:"final_loss" json:"final_loss"`
	FinalMetric float64       `bun:"final_metric" json:"final_metric"`
	Elapsed     time.Duration `bun:"elapsed" json:"elapsed"`

	Hyperparameters Hyperparameters `bun:"hyperparameters,type:jsonb" json:"hyperparameters"`
}
