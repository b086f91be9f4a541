package model

import (
	"github.com/determined-ai/hyperband/pkg/check"
)

// Defaults for the hyperband searcher.
const (
	DefaultEta      = 3
	DefaultSkipLast = 0
)

// HyperbandConfig configures a diagonal Hyperband search.
type HyperbandConfig struct {
	// MaxResource is R, the most resource units any one configuration may receive.
	MaxResource int `json:"max_resource"`
	// Eta is the downsampling rate between successive rounds of a bracket.
	Eta int `json:"eta"`
	// SkipLast is the number of final rounds of every bracket that are not run.
	SkipLast int `json:"skip_last"`
}

// DefaultHyperbandConfig returns a HyperbandConfig with the default eta and skip_last. The
// maximum resource has no sensible default and is left zero.
func DefaultHyperbandConfig() HyperbandConfig {
	return HyperbandConfig{
		Eta:      DefaultEta,
		SkipLast: DefaultSkipLast,
	}
}

// MaxBracket returns s_max, the largest s such that eta^s <= R. It is computed with integer
// arithmetic so that exact powers of eta are never misclassified. It returns -1 when the
// config cannot produce any bracket.
func (h HyperbandConfig) MaxBracket() int {
	if h.Eta <= 1 || h.MaxResource < 1 {
		return -1
	}
	sMax := 0
	// power <= R/eta keeps power*eta from overflowing.
	for power := 1; power <= h.MaxResource/h.Eta; power *= h.Eta {
		sMax++
	}
	return sMax
}

// Validate implements the check.Validatable interface.
func (h HyperbandConfig) Validate() []error {
	errs := []error{
		check.GreaterThan(h.Eta, 1, "eta must be > 1"),
		check.GreaterThanOrEqualTo(h.MaxResource, 2, "max_resource must be >= 2"),
		check.GreaterThanOrEqualTo(h.MaxResource, h.Eta, "max_resource must be >= eta"),
		check.GreaterThanOrEqualTo(h.SkipLast, 0, "skip_last must be >= 0"),
	}
	if sMax := h.MaxBracket(); sMax >= 0 {
		errs = append(errs,
			check.LessThanOrEqualTo(h.SkipLast, sMax, "skip_last must be <= s_max (%d)", sMax))
	}
	return errs
}
