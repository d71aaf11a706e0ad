// Public domain.

package occsolver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/occerr"
)

// DefaultRcond is the relative singular value below which the stacked
// system is considered rank deficient.
const DefaultRcond = 1e-12

// System is an assembled problem: the (weighted) Jacobian, observation
// and regularization matrix.  G and R must have the same column count.
type System struct {
	G *mat.Dense
	D *mat.VecDense
	R *mat.Dense
}

// Solution is the result of one damped solve.
type Solution struct {
	Alpha     float64
	M         []float64
	Misfit    float64 // ||G m - d||
	Roughness float64 // ||R m||
	Rank      int
	Cond      float64 // condition number of [G; alpha R]
}

// Solver solves a System for any number of damping values.  G, d and R
// are copied into a stacked buffer once; each Solve only rescales the
// regularization rows.
//
// A Solver is not safe for concurrent use.
type Solver struct {
	sys   System
	rcond float64
	m, n  int // rows of G, columns
	stack *mat.Dense
	rhs   *mat.VecDense
	svd   mat.SVD
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithRcond sets the rank tolerance, relative to the largest singular
// value.
func WithRcond(rcond float64) SolverOption {
	return func(s *Solver) { s.rcond = rcond }
}

func NewSolver(sys System, opts ...SolverOption) (*Solver, error) {
	const op = "occsolver.NewSolver"
	if sys.G == nil || sys.D == nil || sys.R == nil {
		return nil, occerr.Configuration(op, "incomplete system")
	}
	m, n := sys.G.Dims()
	nr, nc := sys.R.Dims()
	if sys.D.Len() != m || nc != n {
		return nil, occerr.Consistency(op, "G %dx%d, d %d, R %dx%d", m, n, sys.D.Len(), nr, nc)
	}
	s := &Solver{sys: sys, rcond: DefaultRcond, m: m, n: n}
	for _, o := range opts {
		o(s)
	}
	if !(s.rcond > 0) || s.rcond >= 1 {
		return nil, occerr.Configuration(op, "rcond %g", s.rcond)
	}
	s.stack = mat.NewDense(m+nr, n, nil)
	s.stack.Slice(0, m, 0, n).(*mat.Dense).Copy(sys.G)
	s.rhs = mat.NewVecDense(m+nr, nil)
	s.rhs.SliceVec(0, m).(*mat.VecDense).CopyVec(sys.D)
	return s, nil
}

// Solve minimizes ||G m - d||² + alpha² ||R m||².  A system that is rank
// deficient at this alpha is a numerical error.
func (s *Solver) Solve(alpha float64) (*Solution, error) {
	const op = "occsolver.Solve"
	if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, occerr.Configuration(op, "alpha %g", alpha)
	}
	nr, _ := s.sys.R.Dims()
	s.stack.Slice(s.m, s.m+nr, 0, s.n).(*mat.Dense).Scale(alpha, s.sys.R)

	if !s.svd.Factorize(s.stack, mat.SVDThin) {
		return nil, occerr.Numerical(op, "SVD did not converge at alpha %g", alpha)
	}
	rank := s.svd.Rank(s.rcond)
	if rank < s.n {
		return nil, occerr.Numerical(op, "rank %d of %d at alpha %g", rank, s.n, alpha)
	}
	x := mat.NewVecDense(s.n, nil)
	s.svd.SolveVecTo(x, s.rhs, rank)

	sol := &Solution{
		Alpha: alpha,
		M:     x.RawVector().Data,
		Rank:  rank,
		Cond:  s.svd.Cond(),
	}
	var r mat.VecDense
	r.MulVec(s.sys.G, x)
	r.SubVec(&r, s.sys.D)
	sol.Misfit = mat.Norm(&r, 2)
	var rm mat.VecDense
	rm.MulVec(s.sys.R, x)
	sol.Roughness = mat.Norm(&rm, 2)
	for _, v := range sol.M {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, occerr.Numerical(op, "non-finite solution at alpha %g", alpha)
		}
	}
	return sol, nil
}
