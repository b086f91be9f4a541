package searcher

import (
	"math"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"

	"github.com/determined-ai/hyperband/pkg/model"
)

type rankedConfig struct {
	key  model.MSTKey
	loss float64
}

// rankedConfigComparator orders by ascending loss, then ascending key. NaN losses rank after
// every real loss.
func rankedConfigComparator(a, b interface{}) int {
	c1, c2 := a.(rankedConfig), b.(rankedConfig)
	l1, l2 := sortableLoss(c1.loss), sortableLoss(c2.loss)
	switch {
	case l1 < l2:
		return -1
	case l1 > l2:
		return 1
	case c1.key < c2.key:
		return -1
	case c1.key > c2.key:
		return 1
	default:
		return 0
	}
}

func sortableLoss(loss float64) float64 {
	if math.IsNaN(loss) {
		return math.Inf(1)
	}
	return loss
}

// Prune returns the k keys of losses with the smallest loss, in (loss, key) order. Smaller
// loss is better and equal losses are broken by ascending key. It fails with an
// InsufficientResultsError if fewer than k results are available.
func Prune(bracket int, losses map[model.MSTKey]float64, k int) ([]model.MSTKey, error) {
	if k < 0 {
		return nil, errors.Errorf("cannot keep %d configurations of bracket %d", k, bracket)
	}
	if len(losses) < k {
		return nil, &InsufficientResultsError{Bracket: bracket, Want: k, Got: len(losses)}
	}

	ranked := treeset.NewWith(rankedConfigComparator)
	for key, loss := range losses {
		ranked.Add(rankedConfig{key: key, loss: loss})
	}

	survivors := make([]model.MSTKey, 0, k)
	for it := ranked.Iterator(); len(survivors) < k && it.Next(); {
		survivors = append(survivors, it.Value().(rankedConfig).key)
	}
	return survivors, nil
}
