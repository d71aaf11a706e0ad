// Public domain.

package occsolver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

// Floors are lower bounds on observation standard deviations, by site
// with a default for sites not listed.
type Floors struct {
	Default float64
	Sites   map[sites.ID]float64
}

// clip computes the standard deviation to use for one observation from
// the configured floor and the standard deviation read from data.
func (f Floors) clip(sd float64, id sites.ID) float64 {
	floor, ok := f.Sites[id]
	if !ok {
		floor = f.Default
	}
	if sd == 0 {
		// no data value, the floor is all there is
		return floor
	}
	if floor > sd {
		return floor
	}
	return sd
}

// Weights returns the standard deviation of every row of layout.  sd may
// be nil, in which case only the floors apply.  Every sigma must come out
// positive.
func Weights(sd *green.Model, layout Layout, floors Floors) (*mat.VecDense, error) {
	const op = "occsolver.Weights"
	if sd != nil && !sd.Sites().Equal(layout.Sites) {
		return nil, occerr.Consistency(op, "standard deviation sites differ from jacobian sites")
	}
	br := layout.BlockRows()
	sigma := mat.NewVecDense(layout.Rows(), nil)
	for k, e := range layout.Epochs.All() {
		var v *mat.Dense
		if sd != nil {
			var err error
			if v, err = sd.ValueAt(e); err != nil {
				return nil, err
			}
			if r, c := v.Dims(); r != br || c != 1 {
				return nil, occerr.Consistency(op, "epoch %d: sd %dx%d, want %dx1", e, r, c, br)
			}
		}
		for i := 0; i < br; i++ {
			var s float64
			if v != nil {
				s = v.At(i, 0)
			}
			id := layout.Sites.At(i / sites.Components)
			s = floors.clip(s, id)
			if !(s > 0) || math.IsInf(s, 0) {
				return nil, occerr.Configuration(op, "site %s epoch %d: standard deviation %g", id, e, s)
			}
			sigma.SetVec(layout.Row(k, i), s)
		}
	}
	return sigma, nil
}

// ApplyWeights divides each row of jac and d by its sigma, in place.
func ApplyWeights(jac *mat.Dense, d *mat.VecDense, sigma *mat.VecDense) error {
	r, _ := jac.Dims()
	if d.Len() != r || sigma.Len() != r {
		return occerr.Consistency("occsolver.ApplyWeights",
			"jacobian %d rows, observation %d, sigma %d", r, d.Len(), sigma.Len())
	}
	for i := 0; i < r; i++ {
		w := 1 / sigma.AtVec(i)
		row := jac.RawRowView(i)
		for j := range row {
			row[j] *= w
		}
		d.SetVec(i, d.AtVec(i)*w)
	}
	return nil
}
