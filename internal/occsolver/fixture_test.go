// Public domain.

package occsolver_test

import (
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/require"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/sites"
	"github.com/viscoinv/occam/internal/synth"
)

const label = "log10(visM)"

// fixture is a synthetic problem: reference and perturbed tables, and
// observations of a growing checkerboard slip computed from a table
// between the two.
type fixture struct {
	fault  *fault.Model
	epochs epochal.List
	filter *sites.List
	g0, g1 *green.Model
	obs    *green.Model
	slip   [][]float64
}

func newFixture(t *testing.T, rows, cols, nsites int, epochs ...epochal.Epoch) *fixture {
	t.Helper()
	f := &fault.Model{Rows: rows, Cols: cols, PatchStrike: 28, PatchDip: 23.03,
		TopDepth: 3, Dip: unit.AngleFromDeg(15)}
	ids, err := synth.SiteIDs(nsites)
	require.NoError(t, err)
	geo := synth.Geometry{Fault: f, Sites: ids, Seed: 42}
	ep := epochal.MustList(epochs...)

	model := func(tau, param float64) *green.Model {
		a, err := synth.Table(geo, ep, tau, label, param)
		require.NoError(t, err)
		g, err := green.New(a, ids)
		require.NoError(t, err)
		return g
	}
	fx := &fixture{fault: f, epochs: ep, filter: ids,
		g0: model(100, 18.8), g1: model(80, 18.9)}

	truth := model(90, 18.85)
	fx.slip = synth.Growing(synth.Checkerboard(f, 2, 1), ep.Len())
	oa, err := synth.Observations(truth, ep, fx.slip, 0.01, 3)
	require.NoError(t, err)
	fx.obs, err = green.New(oa, ids)
	require.NoError(t, err)
	return fx
}

func (fx *fixture) slip0() []float64 {
	return fx.slip[len(fx.slip)-1]
}
