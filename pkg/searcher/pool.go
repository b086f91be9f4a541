package searcher

import (
	"github.com/pkg/errors"

	"github.com/determined-ai/hyperband/pkg/model"
)

// IDRange is the half-open key range [Start, End) owned by one bracket.
type IDRange struct {
	Start model.MSTKey `json:"start"`
	End   model.MSTKey `json:"end"`
}

// Len returns the number of keys in the range.
func (r IDRange) Len() int {
	return int(r.End - r.Start)
}

// Contains reports whether key falls in the range.
func (r IDRange) Contains(key model.MSTKey) bool {
	return key >= r.Start && key < r.End
}

// Keys returns every key of the range in ascending order.
func (r IDRange) Keys() []model.MSTKey {
	keys := make([]model.MSTKey, 0, r.Len())
	for k := r.Start; k < r.End; k++ {
		keys = append(keys, k)
	}
	return keys
}

// ConfigurationPool partitions configuration keys into one contiguous range per bracket. The
// largest bracket gets [1, n_{s_max}+1) and each lower bracket starts where the previous one
// ended. The mapping never changes for the lifetime of a run.
type ConfigurationPool struct {
	order  []int
	ranges map[int]IDRange
	size   int
}

// NewConfigurationPool lays out ranges for brackets, which must be ordered by strictly
// decreasing bracket index.
func NewConfigurationPool(brackets []Bracket) (*ConfigurationPool, error) {
	p := &ConfigurationPool{ranges: make(map[int]IDRange, len(brackets))}
	next := model.MSTKey(1)
	for i, b := range brackets {
		if i > 0 && b.S >= brackets[i-1].S {
			return nil, newConfigurationError(errors.Errorf(
				"brackets must be in decreasing order: %d follows %d", b.S, brackets[i-1].S))
		}
		if b.N <= 0 {
			return nil, newConfigurationError(errors.Errorf(
				"bracket %d must start at least one configuration, got %d", b.S, b.N))
		}
		r := IDRange{Start: next, End: next + model.MSTKey(b.N)}
		p.order = append(p.order, b.S)
		p.ranges[b.S] = r
		p.size += b.N
		next = r.End
	}
	return p, nil
}

// Size returns the total number of keys in the pool.
func (p *ConfigurationPool) Size() int {
	return p.size
}

// Brackets returns the bracket indexes in layout order.
func (p *ConfigurationPool) Brackets() []int {
	return append([]int(nil), p.order...)
}

// Range returns the key range owned by bracket s.
func (p *ConfigurationPool) Range(s int) (IDRange, bool) {
	r, ok := p.ranges[s]
	return r, ok
}

// Bracket returns the bracket that owns key.
func (p *ConfigurationPool) Bracket(key model.MSTKey) (int, bool) {
	for _, s := range p.order {
		if p.ranges[s].Contains(key) {
			return s, true
		}
	}
	return 0, false
}

// Assign gives each candidate, in order, the next key and the bracket owning that key.
// Exactly Size candidates are required.
func (p *ConfigurationPool) Assign(candidates []model.Candidate) ([]model.Configuration, error) {
	if len(candidates) != p.size {
		return nil, newConfigurationError(errors.Errorf(
			"search needs exactly %d candidate configurations, got %d", p.size, len(candidates)))
	}
	configs := make([]model.Configuration, 0, len(candidates))
	for i, c := range candidates {
		key := model.MSTKey(i + 1)
		bracket, _ := p.Bracket(key)
		configs = append(configs, model.Configuration{Key: key, Bracket: bracket, Candidate: c})
	}
	return configs, nil
}
