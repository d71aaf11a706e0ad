// Public domain.

package occsolver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
)

// SlipSource supplies the slip distribution a linearization is made at.
type SlipSource interface {
	SlipAt(e epochal.Epoch) (*mat.VecDense, error)
}

// ConstSlip is the same slip at every epoch.
type ConstSlip struct {
	v []float64
}

func NewConstSlip(slip []float64) ConstSlip {
	return ConstSlip{append([]float64(nil), slip...)}
}

func (c ConstSlip) SlipAt(epochal.Epoch) (*mat.VecDense, error) {
	if len(c.v) == 0 {
		return nil, occerr.Configuration("occsolver.ConstSlip", "empty slip")
	}
	return mat.NewVecDense(len(c.v), append([]float64(nil), c.v...)), nil
}

// EpochalSlip reads slip from a store, flattening each array in row major
// order.  Stores of rows x cols grids and of single columns both work.
type EpochalSlip struct {
	Store epochal.Store
}

func (s EpochalSlip) SlipAt(e epochal.Epoch) (*mat.VecDense, error) {
	a, err := s.Store.At(e)
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(len(a.Elements), a.Elements), nil
}

// Sensitivity pairs a Green's function difference with the slip it is
// applied to.
type Sensitivity struct {
	Diff  *green.Diff
	Slip0 SlipSource
}

// AssembleJacobian builds the sensitivity matrix for epochs from the
// reference table g0 and the non-linear parameter sensitivities.
//
// Rows are grouped by epoch, each block holding the filtered site rows of
// g0.  Columns are the slip of each patch for each epoch, then one column
// per sensitivity.
func AssembleJacobian(g0 *green.Model, sens []Sensitivity, epochs epochal.List) (*mat.Dense, Layout, error) {
	const op = "occsolver.AssembleJacobian"
	if epochs.Len() == 0 {
		return nil, Layout{}, occerr.Configuration(op, "no epochs")
	}
	layout := Layout{Epochs: epochs, Sites: g0.Sites()}
	seen := map[string]bool{}
	for _, s := range sens {
		if s.Diff == nil || s.Slip0 == nil {
			return nil, Layout{}, occerr.Configuration(op, "incomplete non-linear parameter")
		}
		lbl := s.Diff.Label()
		if seen[lbl] {
			return nil, Layout{}, occerr.Configuration(op, "parameter %s given twice", lbl)
		}
		seen[lbl] = true
		if !s.Diff.Epochs().Equal(g0.Epochs()) {
			return nil, Layout{}, occerr.Consistency(op, "%s: epochs %v, reference %v",
				lbl, s.Diff.Epochs(), g0.Epochs())
		}
		if !s.Diff.Sites().Equal(g0.Sites()) {
			return nil, Layout{}, occerr.Consistency(op, "%s: site filter differs from reference", lbl)
		}
		layout.NonLin = append(layout.NonLin, lbl)
	}

	var jac *mat.Dense
	br := layout.BlockRows()
	for k, e := range epochs.All() {
		g, err := g0.ValueAt(e)
		if err != nil {
			return nil, Layout{}, err
		}
		r, p := g.Dims()
		if jac == nil {
			layout.Patches = p
			jac = mat.NewDense(layout.Rows(), layout.Cols(), nil)
		}
		if r != br || p != layout.Patches {
			return nil, Layout{}, occerr.Consistency(op, "epoch %d: table %dx%d, want %dx%d",
				e, r, p, br, layout.Patches)
		}
		jac.Slice(layout.Row(k, 0), layout.Row(k+1, 0),
			layout.SlipCol(k, 0), layout.SlipCol(k+1, 0)).(*mat.Dense).Copy(g)

		for j, s := range sens {
			col, err := sensitivityColumn(s, e, layout.Patches)
			if err != nil {
				return nil, Layout{}, err
			}
			c := layout.NonLinCol(j)
			for i := 0; i < br; i++ {
				jac.Set(layout.Row(k, i), c, col.AtVec(i))
			}
		}
	}
	return jac, layout, nil
}

// sensitivityColumn returns dG(e) * slip0(e).
func sensitivityColumn(s Sensitivity, e epochal.Epoch, patches int) (*mat.VecDense, error) {
	dg, err := s.Diff.ValueAt(e)
	if err != nil {
		return nil, err
	}
	slip, err := s.Slip0.SlipAt(e)
	if err != nil {
		return nil, err
	}
	if _, c := dg.Dims(); c != patches || slip.Len() != patches {
		return nil, occerr.Consistency("occsolver.AssembleJacobian",
			"%s epoch %d: %d patches, difference has %d, slip0 has %d",
			s.Diff.Label(), e, patches, c, slip.Len())
	}
	r, _ := dg.Dims()
	col := mat.NewVecDense(r, nil)
	col.MulVec(dg, slip)
	return col, nil
}
