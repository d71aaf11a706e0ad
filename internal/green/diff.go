// Public domain.

package green

import (
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

// Annotation keys of a Diff.
const (
	LabelKey = "label"
	StepKey  = "step"
)

// Diff is the difference of a perturbed and a reference table.  It is an
// epochal.Store of filtered arrays, so it can itself be wrapped by New.
type Diff struct {
	ref, pert *Model
	label     string
	step      float64
	hasStep   bool
}

func (d *Diff) Label() string        { return d.label }
func (d *Diff) Reference() *Model    { return d.ref }
func (d *Diff) Perturbed() *Model    { return d.pert }
func (d *Diff) Epochs() epochal.List { return d.ref.Epochs() }
func (d *Diff) Sites() *sites.List   { return d.ref.filter }
func (d *Diff) NumRows() int         { return d.ref.NumRows() }

// Step returns the parameter change between the two tables, when both
// carry the label as an annotation.
func (d *Diff) Step() (float64, bool) { return d.step, d.hasStep }

// ValueAt returns pert(e) - ref(e).
func (d *Diff) ValueAt(e epochal.Epoch) (*mat.Dense, error) {
	g0, err := d.ref.ValueAt(e)
	if err != nil {
		return nil, err
	}
	g1, err := d.pert.ValueAt(e)
	if err != nil {
		return nil, err
	}
	r0, c0 := g0.Dims()
	if r1, c1 := g1.Dims(); r0 != r1 || c0 != c1 {
		return nil, occerr.Consistency("green.Diff", "%s epoch %d: %dx%d != %dx%d",
			d.label, e, r1, c1, r0, c0)
	}
	g1.Sub(g1, g0)
	return g1, nil
}

func (d *Diff) At(e epochal.Epoch) (*sparse.DenseArray, error) {
	v, err := d.ValueAt(e)
	if err != nil {
		return nil, err
	}
	return Array(v), nil
}

func (d *Diff) HasInfo(key string) bool {
	switch key {
	case SitesKey, LabelKey:
		return true
	case StepKey:
		return d.hasStep
	}
	return false
}

func (d *Diff) Info(key, attr string) (any, error) {
	if attr == "" {
		switch key {
		case SitesKey:
			return d.ref.filter.Strings(), nil
		case LabelKey:
			return d.label, nil
		case StepKey:
			if d.hasStep {
				return d.step, nil
			}
		}
	}
	return nil, &occerr.Error{Kind: occerr.ErrConfiguration, Op: "green.Diff.Info",
		Msg: key, Err: epochal.ErrNoInfo}
}
