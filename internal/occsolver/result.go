// Public domain.

package occsolver

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/occerr"
)

// NonLinParam describes one non-linear parameter of a trial: the value
// its reference table was computed for and the step to its perturbed
// table.  Either may be NaN when the tables carry no annotation.
// Linearization is the offset, in units of Step, the observation was
// shifted by.
type NonLinParam struct {
	Label         string
	Reference     float64
	Step          float64
	Linearization float64
}

// NonLinValue is a solved non-linear parameter.
type NonLinValue struct {
	NonLinParam
	Correction float64 // from Reference, in units of Step
	Value      float64 // Reference + Correction*Step
}

// Result is the solution selected for a trial and alpha.  It is immutable.
type Result struct {
	id        uuid.UUID
	trial     string
	alpha     float64
	misfit    float64
	roughness float64
	layout    Layout
	m         []float64
	nonlin    []NonLinValue
}

func newResult(trial string, layout Layout, params []NonLinParam, sol *Solution) *Result {
	r := &Result{
		id:        uuid.New(),
		trial:     trial,
		alpha:     sol.Alpha,
		misfit:    sol.Misfit,
		roughness: sol.Roughness,
		layout:    layout,
		m:         append([]float64(nil), sol.M...),
	}
	for j, p := range params {
		// the solved column is relative to the linearization point
		c := sol.M[layout.NonLinCol(j)] - p.Linearization
		r.nonlin = append(r.nonlin, NonLinValue{p, c, p.Reference + c*p.Step})
	}
	return r
}

func (r *Result) ID() uuid.UUID         { return r.id }
func (r *Result) Trial() string         { return r.trial }
func (r *Result) Alpha() float64        { return r.alpha }
func (r *Result) Misfit() float64       { return r.misfit }
func (r *Result) Roughness() float64    { return r.roughness }
func (r *Result) Layout() Layout        { return r.layout }
func (r *Result) M() []float64          { return append([]float64(nil), r.m...) }
func (r *Result) NonLin() []NonLinValue { return append([]NonLinValue(nil), r.nonlin...) }

// SlipAt returns the slip of each patch at epoch block k.
func (r *Result) SlipAt(k int) []float64 {
	l := r.layout
	return append([]float64(nil), r.m[l.SlipCol(k, 0):l.SlipCol(k+1, 0)]...)
}

// IncrementalSlip returns for each epoch block the slip added since the
// previous block, the first block relative to zero.
func (r *Result) IncrementalSlip() [][]float64 {
	n := r.layout.Epochs.Len()
	out := make([][]float64, n)
	prev := make([]float64, r.layout.Patches)
	for k := 0; k < n; k++ {
		s := r.SlipAt(k)
		inc := make([]float64, len(s))
		for p := range s {
			inc[p] = s[p] - prev[p]
		}
		out[k], prev = inc, s
	}
	return out
}

// Predicted returns jac * m, the displacement predicted by the solution
// for a jacobian of the same layout.
func (r *Result) Predicted(jac mat.Matrix) (*mat.VecDense, error) {
	if rr, c := jac.Dims(); rr != r.layout.Rows() || c != len(r.m) {
		return nil, occerr.Consistency("occsolver.Predicted", "jacobian %dx%d, layout %dx%d",
			rr, c, r.layout.Rows(), len(r.m))
	}
	out := mat.NewVecDense(r.layout.Rows(), nil)
	out.MulVec(jac, mat.NewVecDense(len(r.m), r.M()))
	return out, nil
}

// paramOrNaN turns an optional annotation into a value.
func paramOrNaN(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}
