package searcher

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hyperband/pkg/model"
)

func TestPruneKeepsLowestLoss(t *testing.T) {
	losses := map[model.MSTKey]float64{1: 0.5, 2: 0.2, 3: 0.9}
	keys, err := Prune(1, losses, 1)
	require.NoError(t, err)
	require.Equal(t, []model.MSTKey{2}, keys)

	keys, err = Prune(1, losses, 3)
	require.NoError(t, err)
	require.Equal(t, []model.MSTKey{2, 1, 3}, keys)

	keys, err = Prune(1, losses, 0)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestPruneTiesByKey(t *testing.T) {
	losses := map[model.MSTKey]float64{7: 0.3, 3: 0.3, 5: 0.1, 4: 0.3}
	keys, err := Prune(2, losses, 3)
	require.NoError(t, err)
	require.Equal(t, []model.MSTKey{5, 3, 4}, keys)
}

func TestPruneSelectionProperty(t *testing.T) {
	losses := map[model.MSTKey]float64{
		1: 0.8, 2: 0.1, 3: 0.4, 4: 0.4, 5: 0.9, 6: 0.05, 7: 0.4, 8: 0.6, 9: 0.4,
	}
	for k := 0; k <= len(losses); k++ {
		keys, err := Prune(0, losses, k)
		require.NoError(t, err)
		require.Len(t, keys, k)

		kept := make(map[model.MSTKey]bool)
		for _, key := range keys {
			kept[key] = true
		}
		for _, in := range keys {
			for out, loss := range losses {
				if kept[out] {
					continue
				}
				require.LessOrEqual(t, losses[in], loss)
				if losses[in] == loss {
					require.Less(t, in, out, "ties must go to the lower key")
				}
			}
		}
	}
}

func TestPruneNaNRanksLast(t *testing.T) {
	losses := map[model.MSTKey]float64{1: math.NaN(), 2: 10, 3: math.Inf(1)}
	keys, err := Prune(0, losses, 3)
	require.NoError(t, err)
	require.Equal(t, []model.MSTKey{2, 1, 3}, keys)
}

func TestPruneInsufficient(t *testing.T) {
	_, err := Prune(3, map[model.MSTKey]float64{1: 0.1}, 2)
	var ierr *InsufficientResultsError
	require.True(t, errors.As(err, &ierr))
	require.Equal(t, 3, ierr.Bracket)
	require.Equal(t, 2, ierr.Want)
	require.Equal(t, 1, ierr.Got)

	_, err = Prune(3, nil, -1)
	require.Error(t, err)
}
