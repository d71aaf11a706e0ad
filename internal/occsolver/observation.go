// Public domain.

package occsolver

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
)

// Mode selects how observed displacements are referenced.
type Mode int

const (
	// Cumulative uses displacement as stored, since the reference time.
	Cumulative Mode = iota
	// Postseismic subtracts the displacement at the first epoch.
	Postseismic
)

func (m Mode) String() string {
	if m == Postseismic {
		return "postseismic"
	}
	return "cumulative"
}

// ParseMode parses "cumulative" or "postseismic".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "cumulative":
		return Cumulative, nil
	case "postseismic":
		return Postseismic, nil
	}
	return 0, occerr.Configuration("occsolver.ParseMode", "unknown mode %q", s)
}

// AssembleObservation stacks observed displacements in the row order of
// layout.  The observation must be filtered to the same sites, in the same
// order, and cover every epoch of the layout.
func AssembleObservation(obs *green.Model, layout Layout, mode Mode) (*mat.VecDense, error) {
	const op = "occsolver.AssembleObservation"
	if !obs.Sites().Equal(layout.Sites) {
		return nil, occerr.Consistency(op, "observation sites %v, jacobian sites %v",
			obs.Sites().Strings(), layout.Sites.Strings())
	}
	oe := obs.Epochs()
	if oe.Len() == 0 || layout.Epochs.Min() < oe.Min() || layout.Epochs.Max() > oe.Max() {
		return nil, occerr.Consistency(op, "observation epochs %v do not cover %v", oe, layout.Epochs)
	}
	br := layout.BlockRows()
	d := mat.NewVecDense(layout.Rows(), nil)
	var ref *mat.Dense
	for k, e := range layout.Epochs.All() {
		v, err := obs.ValueAt(e)
		if err != nil {
			return nil, err
		}
		if r, c := v.Dims(); r != br || c != 1 {
			return nil, occerr.Consistency(op, "epoch %d: observation %dx%d, want %dx1", e, r, c, br)
		}
		if mode == Postseismic {
			if ref == nil {
				ref = v
			}
			v = subtract(v, ref)
		}
		for i := 0; i < br; i++ {
			d.SetVec(layout.Row(k, i), v.At(i, 0))
		}
	}
	return d, nil
}

func subtract(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Sub(a, b)
	return &out
}

// Linearize shifts d to the linearization point x0 of the non-linear
// parameters, d + sum over j of J_j * x0_j.  The non-linear columns solved
// against the shifted d are then x0 plus the correction from the
// reference tables.
func Linearize(d *mat.VecDense, jac mat.Matrix, layout Layout, x0 []float64) (*mat.VecDense, error) {
	const op = "occsolver.Linearize"
	if len(x0) != len(layout.NonLin) {
		return nil, occerr.Configuration(op, "%d linearization values for %d parameters",
			len(x0), len(layout.NonLin))
	}
	if r, c := jac.Dims(); r != d.Len() || c != layout.Cols() {
		return nil, occerr.Consistency(op, "jacobian %dx%d, observation %d, layout %dx%d",
			r, c, d.Len(), layout.Rows(), layout.Cols())
	}
	out := mat.VecDenseCopyOf(d)
	for j, x := range x0 {
		if x == 0 {
			continue
		}
		col := mat.Col(nil, layout.NonLinCol(j), jac)
		out.AddScaledVec(out, x, mat.NewVecDense(len(col), col))
	}
	return out, nil
}
