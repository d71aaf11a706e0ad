// Public domain.

package occsolver_test

import (
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/occsolver"
	"github.com/viscoinv/occam/internal/sites"
)

func TestWeights(t *testing.T) {
	filter, err := sites.New("a", "b")
	require.NoError(t, err)
	layout := occsolver.Layout{Epochs: epochal.MustList(0, 10), Sites: filter, Patches: 1}

	b := epochal.NewBuilder()
	sd := sparse.ZerosDense(6)
	copy(sd.Elements, []float64{0.1, 0.1, 0.3, 2, 2, 0})
	require.NoError(t, b.Put(0, sd))
	require.NoError(t, b.Put(10, sd))
	require.NoError(t, b.SetInfo(green.SitesKey, []string{"a", "b"}, nil))
	sdm, err := green.New(b.Build(), filter)
	require.NoError(t, err)

	floors := occsolver.Floors{Default: 0.2, Sites: map[sites.ID]float64{"b": 1}}
	sigma, err := occsolver.Weights(sdm, layout, floors)
	require.NoError(t, err)
	want := []float64{.2, .2, .3, 2, 2, 1}
	for k := 0; k < 2; k++ {
		for i, w := range want {
			assert.Equal(t, w, sigma.AtVec(layout.Row(k, i)))
		}
	}

	// no data and no floor
	_, err = occsolver.Weights(nil, layout, occsolver.Floors{})
	assert.ErrorIs(t, err, occerr.ErrConfiguration)

	sigma, err = occsolver.Weights(nil, layout, occsolver.Floors{Default: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, sigma.AtVec(11))
}

func TestApplyWeights(t *testing.T) {
	jac := mat.NewDense(2, 2, []float64{2, 4, 6, 8})
	d := mat.NewVecDense(2, []float64{2, 6})
	sigma := mat.NewVecDense(2, []float64{2, 0.5})
	require.NoError(t, occsolver.ApplyWeights(jac, d, sigma))
	assert.Equal(t, []float64{1, 2, 12, 16}, jac.RawMatrix().Data)
	assert.Equal(t, []float64{1, 12}, d.RawVector().Data)

	err := occsolver.ApplyWeights(jac, mat.NewVecDense(3, nil), sigma)
	assert.ErrorIs(t, err, occerr.ErrConsistency)
}
