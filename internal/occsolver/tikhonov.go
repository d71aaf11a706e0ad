// Public domain.

package occsolver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/occerr"
)

// Tikhonov is a second order roughening operator over the fault grid,
// repeated for each epoch, followed by rows for the non-linear
// parameters.
//
// Within a block the row for patch (i, j) is the five point Laplacian
//
//	(s[i-1,j] - 2 s[i,j] + s[i+1,j]) / RowNormLength²
//	+ (s[i,j-1] - 2 s[i,j] + s[i,j+1]) / ColNormLength²
//
// with slip outside the grid taken as zero, so the operator has full rank.
// Non-linear parameter rows are NonLinDamping times the identity; with
// zero damping they are zero rows and the parameters go unregularized.
type Tikhonov struct {
	Rows, Cols    int     // fault grid, along dip and along strike
	RowNormLength float64 // patch spacing along dip
	ColNormLength float64 // patch spacing along strike
	NumEpochs     int
	NumNonLin     int
	NonLinDamping float64
}

// TikhonovFor returns the operator for f, normalized to a unit spacing
// along dip and the patch aspect ratio along strike.
func TikhonovFor(f *fault.Model, epochs, nonlin int) Tikhonov {
	return Tikhonov{
		Rows:          f.Rows,
		Cols:          f.Cols,
		RowNormLength: 1,
		ColNormLength: f.PatchStrike / f.PatchDip,
		NumEpochs:     epochs,
		NumNonLin:     nonlin,
	}
}

func (t Tikhonov) Validate() error {
	const op = "occsolver.Tikhonov"
	switch {
	case t.Rows < 1 || t.Cols < 1:
		return occerr.Configuration(op, "grid %dx%d", t.Rows, t.Cols)
	case !(t.RowNormLength > 0) || !(t.ColNormLength > 0) ||
		math.IsInf(t.RowNormLength, 0) || math.IsInf(t.ColNormLength, 0):
		return occerr.Configuration(op, "normalization lengths %g, %g", t.RowNormLength, t.ColNormLength)
	case t.NumEpochs < 1 || t.NumNonLin < 0:
		return occerr.Configuration(op, "%d epochs, %d non-linear parameters", t.NumEpochs, t.NumNonLin)
	case t.NonLinDamping < 0 || math.IsNaN(t.NonLinDamping):
		return occerr.Configuration(op, "non-linear damping %g", t.NonLinDamping)
	}
	return nil
}

// Size returns the row and column count of the operator.
func (t Tikhonov) Size() int { return t.NumEpochs*t.Rows*t.Cols + t.NumNonLin }

// Matrix builds the operator.  Columns are ordered as in Layout.
func (t Tikhonov) Matrix() (*mat.Dense, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := t.Size()
	r := mat.NewDense(n, n, nil)
	wr := 1 / (t.RowNormLength * t.RowNormLength)
	wc := 1 / (t.ColNormLength * t.ColNormLength)
	np := t.Rows * t.Cols
	for k := 0; k < t.NumEpochs; k++ {
		base := k * np
		for i := 0; i < t.Rows; i++ {
			for j := 0; j < t.Cols; j++ {
				x := base + i*t.Cols + j
				r.Set(x, x, -2*wr-2*wc)
				if i > 0 {
					r.Set(x, x-t.Cols, wr)
				}
				if i < t.Rows-1 {
					r.Set(x, x+t.Cols, wr)
				}
				if j > 0 {
					r.Set(x, x-1, wc)
				}
				if j < t.Cols-1 {
					r.Set(x, x+1, wc)
				}
			}
		}
	}
	for j := 0; j < t.NumNonLin; j++ {
		x := t.NumEpochs*np + j
		r.Set(x, x, t.NonLinDamping)
	}
	return r, nil
}
