// Public domain.

package fault

import (
	"math"

	"github.com/viscoinv/occam/internal/occerr"
)

// Layer is one layer of a layered earth, extending down to Bottom km.
type Layer struct {
	Bottom float64 // km
	Mu     float64 // shear modulus, Pa
}

// Earth is a layered elastic earth, layers ordered top down.  The last
// layer extends to any depth.
type Earth []Layer

// Uniform returns a single layer earth.
func Uniform(mu float64) Earth { return Earth{{math.Inf(1), mu}} }

// Shear returns the shear modulus at depth km.
func (e Earth) Shear(depth float64) float64 {
	for _, l := range e {
		if depth < l.Bottom {
			return l.Mu
		}
	}
	return e[len(e)-1].Mu
}

// Moment computes seismic moment in N·m and moment magnitude for a slip
// distribution in meters.
//
//	Mo = sum of mu * slip * patch area
//	Mw = 2/3 log10(Mo) - 6
func (m *Model) Moment(slip []float64, earth Earth) (mo, mw float64, err error) {
	if len(slip) != m.NumPatches() {
		return 0, 0, occerr.Consistency("fault.Moment",
			"%d slip values for %d patches", len(slip), m.NumPatches())
	}
	if len(earth) == 0 {
		return 0, 0, occerr.Configuration("fault.Moment", "empty earth model")
	}
	area := m.Area()
	for x, s := range slip {
		row, _ := m.RowCol(x)
		mo += earth.Shear(m.Depth(row)) * s * area
	}
	return mo, Mw(mo), nil
}

// Mw converts moment in N·m to moment magnitude.
func Mw(mo float64) float64 { return 2./3*math.Log10(mo) - 6 }
