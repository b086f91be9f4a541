package check

import (
	"errors"
	"strings"
	"testing"

	"gotest.tools/assert"
)

type budget struct {
	Units int
}

func (b budget) Validate() []error {
	return []error{GreaterThan(b.Units, 0, "units must be > 0")}
}

type search struct {
	Budget   budget
	Budgets  []budget
	Optional *budget
	ignored  budget
}

func TestValidate(t *testing.T) {
	assert.NilError(t, Validate(search{Budget: budget{Units: 1}}))

	err := Validate(search{
		Budget:   budget{Units: 0},
		Budgets:  []budget{{Units: 1}, {Units: -1}},
		Optional: &budget{Units: 0},
		ignored:  budget{Units: 0},
	})
	var verr ValidationError
	assert.Assert(t, errors.As(err, &verr))
	assert.Equal(t, len(verr.Errs), 3)
	assert.Assert(t, strings.Contains(err.Error(), "root.Budgets[1]"))
	assert.Assert(t, strings.Contains(err.Error(), "root.Optional"))
}

func TestValidateNil(t *testing.T) {
	assert.NilError(t, Validate(nil))
	var b *budget
	assert.NilError(t, Validate(b))
}

var errNoUnits = errors.New("no units")

type sentinelBudget struct{}

func (sentinelBudget) Validate() []error {
	return []error{errNoUnits}
}

func TestValidateUnwrapsFailures(t *testing.T) {
	err := Validate(map[string]sentinelBudget{"b": {}, "a": {}})
	assert.Assert(t, errors.Is(err, errNoUnits))
	assert.Assert(t, strings.Index(err.Error(), "root[a]") < strings.Index(err.Error(), "root[b]"))
}
