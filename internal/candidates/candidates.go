// Package candidates supplies the opaque candidate configurations a search run consumes.
package candidates

import (
	"fmt"
	"os"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/determined-ai/hyperband/pkg/model"
)

const (
	nameWords = 2
	nameSep   = "-"
)

// Load reads a YAML or JSON list of candidates from path. Candidates without a name are given
// a generated one.
func Load(path string) ([]model.Candidate, error) {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading candidates file")
	}
	return Parse(bs)
}

// Parse decodes a YAML or JSON list of candidates.
func Parse(bs []byte) ([]model.Candidate, error) {
	var cs []model.Candidate
	if err := yaml.Unmarshal(bs, &cs, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling candidates")
	}
	if len(cs) == 0 {
		return nil, errors.New("no candidates found")
	}
	for i := range cs {
		if cs[i].Hyperparameters == nil {
			cs[i].Hyperparameters = model.Hyperparameters{}
		}
		if cs[i].Name == "" {
			cs[i].Name = name(i)
		}
	}
	return cs, nil
}

// Placeholders returns n candidates whose only hyperparameter is their position. They exist
// for dry runs of a schedule when no configuration generator is attached.
func Placeholders(n int) []model.Candidate {
	cs := make([]model.Candidate, 0, n)
	for i := 0; i < n; i++ {
		cs = append(cs, model.Candidate{
			Name:            name(i),
			Hyperparameters: model.Hyperparameters{"placeholder": i},
		})
	}
	return cs
}

// name suffixes a pet name with the index, since pet names alone may repeat.
func name(i int) string {
	return fmt.Sprintf("%s%s%d", petname.Generate(nameWords, nameSep), nameSep, i)
}
