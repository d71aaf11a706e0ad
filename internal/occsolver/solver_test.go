// Public domain.

package occsolver_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/occsolver"
)

func randomSystem(t *testing.T, m, n int, seed uint64) occsolver.System {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	g := mat.NewDense(m, n, nil)
	d := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			g.Set(i, j, rnd.NormFloat64())
		}
		d.SetVec(i, rnd.NormFloat64())
	}
	r, err := occsolver.Tikhonov{Rows: 1, Cols: n, RowNormLength: 1, ColNormLength: 1,
		NumEpochs: 1}.Matrix()
	require.NoError(t, err)
	return occsolver.System{G: g, D: d, R: r}
}

func TestAlphaZeroIsLeastSquares(t *testing.T) {
	sys := randomSystem(t, 20, 5, 1)
	s, err := occsolver.NewSolver(sys)
	require.NoError(t, err)
	sol, err := s.Solve(0)
	require.NoError(t, err)

	var ls mat.VecDense
	require.NoError(t, ls.SolveVec(sys.G, sys.D))
	for i := 0; i < 5; i++ {
		assert.InDelta(t, ls.AtVec(i), sol.M[i], 1e-9)
	}
	var r mat.VecDense
	r.MulVec(sys.G, &ls)
	r.SubVec(&r, sys.D)
	assert.InDelta(t, mat.Norm(&r, 2), sol.Misfit, 1e-9)
	assert.Equal(t, 5, sol.Rank)
}

func TestLargeAlphaDrivesToZero(t *testing.T) {
	sys := randomSystem(t, 20, 5, 2)
	s, err := occsolver.NewSolver(sys)
	require.NoError(t, err)
	prev := math.Inf(1)
	for _, a := range []float64{1e2, 1e4, 1e6} {
		sol, err := s.Solve(a)
		require.NoError(t, err)
		n := floats.Norm(sol.M, math.Inf(1))
		assert.Less(t, n, prev)
		prev = n
	}
	assert.Less(t, prev, 1e-8)
}

func TestRepeatSolveReusesSystem(t *testing.T) {
	sys := randomSystem(t, 8, 4, 3)
	s, err := occsolver.NewSolver(sys)
	require.NoError(t, err)
	a, err := s.Solve(3)
	require.NoError(t, err)
	_, err = s.Solve(300)
	require.NoError(t, err)
	b, err := s.Solve(3)
	require.NoError(t, err)
	assert.Equal(t, a.M, b.M)
	assert.Equal(t, a.Misfit, b.Misfit)
}

func TestSolveErrors(t *testing.T) {
	sys := randomSystem(t, 3, 5, 4)
	s, err := occsolver.NewSolver(sys)
	require.NoError(t, err)
	_, err = s.Solve(0)
	assert.ErrorIs(t, err, occerr.ErrNumerical, "underdetermined without damping")
	_, err = s.Solve(1)
	assert.NoError(t, err)
	for _, a := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err = s.Solve(a)
		assert.ErrorIs(t, err, occerr.ErrConfiguration)
	}

	bad := sys
	bad.D = mat.NewVecDense(4, nil)
	_, err = occsolver.NewSolver(bad)
	assert.ErrorIs(t, err, occerr.ErrConsistency)
	_, err = occsolver.NewSolver(sys, occsolver.WithRcond(0))
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
}

func TestTikhonov(t *testing.T) {
	tk := occsolver.Tikhonov{Rows: 3, Cols: 3, RowNormLength: 1, ColNormLength: 2,
		NumEpochs: 2, NumNonLin: 1}
	r, err := tk.Matrix()
	require.NoError(t, err)
	n, c := r.Dims()
	require.Equal(t, 19, n)
	require.Equal(t, 19, c)

	// center patch of the second epoch
	x := 9 + 4
	assert.Equal(t, -2.5, r.At(x, x))
	assert.Equal(t, 1.0, r.At(x, x-3))
	assert.Equal(t, 1.0, r.At(x, x+3))
	assert.Equal(t, .25, r.At(x, x-1))
	assert.Equal(t, .25, r.At(x, x+1))
	assert.Equal(t, 0.0, r.At(x, 4), "epochs are independent")
	// undamped non-linear row
	assert.Equal(t, 0.0, mat.Norm(r.RowView(18), 2))

	// slip block has full rank
	var svd mat.SVD
	require.True(t, svd.Factorize(r.Slice(0, 18, 0, 18), mat.SVDNone))
	assert.Equal(t, 18, svd.Rank(1e-12))

	tk.NonLinDamping = .5
	r, err = tk.Matrix()
	require.NoError(t, err)
	assert.Equal(t, .5, r.At(18, 18))

	tk.ColNormLength = 0
	_, err = tk.Matrix()
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
}

func TestTikhonovFor(t *testing.T) {
	fx := newFixture(t, 2, 3, 1, 0)
	tk := occsolver.TikhonovFor(fx.fault, 3, 1)
	assert.Equal(t, 1.0, tk.RowNormLength)
	assert.Equal(t, 28/23.03, tk.ColNormLength)
	assert.Equal(t, 3*6+1, tk.Size())
}
