package searcher

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/determined-ai/hyperband/pkg/model"
)

// Bracket is one successive halving instance of a Hyperband search.
type Bracket struct {
	// S is the bracket index; larger brackets start more configurations on less resource.
	S int `json:"bracket"`
	// N is the number of configurations the bracket starts with.
	N int `json:"configs"`
	// R is the resource each configuration receives in the bracket's first round.
	R decimal.Decimal `json:"resource"`
}

// Schedule is the immutable successive halving plan for a search run. It is fully
// determined by the HyperbandConfig it was built from.
type Schedule struct {
	config   model.HyperbandConfig
	sMax     int
	brackets []Bracket
	entries  []model.ScheduleEntry
}

// NewSchedule validates config and computes the (bracket, round, configs, resource) plan.
// Brackets are laid out from s_max down to skip_last, each with rounds 0..s-skip_last.
// Brackets below skip_last would have no rounds and are left out.
func NewSchedule(config model.HyperbandConfig) (*Schedule, error) {
	var errs []error
	for _, err := range config.Validate() {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, newConfigurationError(errs...)
	}

	sMax := config.MaxBracket()
	schedule := &Schedule{config: config, sMax: sMax}
	maxResource := decimal.NewFromInt(int64(config.MaxResource))
	total := 0
	for s := sMax; s >= config.SkipLast; s-- {
		// eta^s <= R, so only the scaling below can overflow.
		etaS := pow(config.Eta, s)
		// Floor division happens before scaling by eta^s.
		n, ok := mulInt((sMax+1)/(s+1), etaS)
		if ok {
			total, ok = addInt(total, n)
		}
		if !ok {
			return nil, newConfigurationError(errors.Errorf(
				"max_resource %d with eta %d needs more configurations than an int can count",
				config.MaxResource, config.Eta))
		}
		bracket := Bracket{
			S: s,
			N: n,
			R: maxResource.Div(decimal.NewFromInt(int64(etaS))),
		}
		schedule.brackets = append(schedule.brackets, bracket)

		for i := 0; i <= s-config.SkipLast; i++ {
			schedule.entries = append(schedule.entries, model.ScheduleEntry{
				Bracket:  s,
				Round:    i,
				Configs:  n / pow(config.Eta, i),
				Resource: roundResource(config.MaxResource, config.Eta, i-s),
			})
		}
	}
	return schedule, nil
}

// roundResource returns R * eta^exp rounded half to even.
func roundResource(maxResource, eta, exp int) int {
	r := decimal.NewFromInt(int64(maxResource))
	if exp >= 0 {
		r = r.Mul(decimal.NewFromInt(int64(pow(eta, exp))))
	} else {
		r = r.Div(decimal.NewFromInt(int64(pow(eta, -exp))))
	}
	return int(r.RoundBank(0).IntPart())
}

// pow callers keep base^exp <= max_resource, so it cannot overflow.
func pow(base, exp int) int {
	result := 1
	for ; exp > 0; exp-- {
		result *= base
	}
	return result
}

// mulInt multiplies non-negative a and b, reporting false on overflow.
func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// addInt adds non-negative a and b, reporting false on overflow.
func addInt(a, b int) (int, bool) {
	if a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// Config returns the parameters the schedule was built from.
func (s *Schedule) Config() model.HyperbandConfig {
	return s.config
}

// MaxBracket returns s_max.
func (s *Schedule) MaxBracket() int {
	return s.sMax
}

// Iterations returns the number of outer diagonal iterations, s_max - skip_last + 1.
func (s *Schedule) Iterations() int {
	return s.sMax - s.config.SkipLast + 1
}

// Brackets returns every bracket with at least one round, s_max first.
func (s *Schedule) Brackets() []Bracket {
	return append([]Bracket(nil), s.brackets...)
}

// Bracket returns the bracket with index b.
func (s *Schedule) Bracket(b int) (Bracket, bool) {
	if b < s.config.SkipLast || b > s.sMax {
		return Bracket{}, false
	}
	return s.brackets[s.sMax-b], true
}

// Entries returns the schedule as an ordered sequence of rows.
func (s *Schedule) Entries() []model.ScheduleEntry {
	return append([]model.ScheduleEntry(nil), s.entries...)
}

// Entry returns the row for round i of bracket b.
func (s *Schedule) Entry(b, i int) (model.ScheduleEntry, bool) {
	for _, e := range s.entries {
		if e.Bracket == b && e.Round == i {
			return e, true
		}
	}
	return model.ScheduleEntry{}, false
}

// ActiveBrackets returns the brackets in flight at outer iteration i: s_max down to s_max-i.
func (s *Schedule) ActiveBrackets(i int) []int {
	if i < 0 || i >= s.Iterations() {
		return nil
	}
	active := make([]int, 0, i+1)
	for b := s.sMax; b >= s.sMax-i; b-- {
		active = append(active, b)
	}
	return active
}

// LocalRound maps outer iteration i to the round index of bracket b, i - (s_max - b).
func (s *Schedule) LocalRound(i, b int) int {
	return i - (s.sMax - b)
}

// TargetConfigs is the number of configurations bracket b trains at outer iteration i,
// n_b * eta^-(i-(s_max-b)).
func (s *Schedule) TargetConfigs(i, b int) (int, bool) {
	e, ok := s.Entry(b, s.LocalRound(i, b))
	if !ok {
		return 0, false
	}
	return e.Configs, true
}

// Resource is the per-configuration budget of outer iteration i: the round resource of the
// oldest active bracket. Every active bracket shares it.
func (s *Schedule) Resource(i int) int {
	e, ok := s.Entry(s.sMax, i)
	if !ok {
		return 0
	}
	return e.Resource
}

// TotalConfigs is the number of candidate configurations the schedule needs, sum(n_s) over
// the brackets with at least one round.
func (s *Schedule) TotalConfigs() int {
	total := 0
	for _, b := range s.brackets {
		total += b.N
	}
	return total
}

// MarshalJSON implements the json.Marshaler interface.
func (s *Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Config   model.HyperbandConfig `json:"config"`
		MaxS     int                   `json:"s_max"`
		Brackets []Bracket             `json:"brackets"`
		Rounds   []model.ScheduleEntry `json:"rounds"`
	}{s.config, s.sMax, s.brackets, s.entries})
}
