// Public domain.

// Package green reads Green's function tables, and other per-site arrays,
// restricted to an allow-list of sites.
//
// A table is an epochal store whose arrays have three rows per site, in
// the site order given by the store's "sites" annotation, and one column
// per sub-fault.  Displacement and standard deviation files have the same
// row layout with a single column.
package green

import (
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

// SitesKey is the annotation listing the sites of a store, in row order.
const SitesKey = "sites"

// Model is a store seen through a site filter.
type Model struct {
	store  epochal.Store
	all    *sites.List
	filter *sites.List
	rows   []int
}

// New filters store to the sites of filter.  A nil filter selects all
// sites in their stored order.
func New(store epochal.Store, filter *sites.List) (*Model, error) {
	const op = "green.New"
	if !store.HasInfo(SitesKey) {
		return nil, occerr.Configuration(op, "store has no %q annotation", SitesKey)
	}
	v, err := store.Info(SitesKey, "")
	if err != nil {
		return nil, err
	}
	s, err := epochal.Strings(v)
	if err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, op, err)
	}
	all, err := sites.FromStrings(s)
	if err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, op, err)
	}
	if filter == nil {
		filter = all
	}
	rows, err := filter.Rows(all)
	if err != nil {
		return nil, err
	}
	return &Model{store: store, all: all, filter: filter, rows: rows}, nil
}

func (m *Model) Epochs() epochal.List { return m.store.Epochs() }
func (m *Model) Sites() *sites.List   { return m.filter }
func (m *Model) NumRows() int         { return len(m.rows) }
func (m *Model) Store() epochal.Store { return m.store }

// Param returns a numeric annotation, such as the value of the non-linear
// parameter a table was computed for.
func (m *Model) Param(label string) (float64, bool) {
	if !m.store.HasInfo(label) {
		return 0, false
	}
	v, err := m.store.Info(label, "")
	if err != nil {
		return 0, false
	}
	f, err := epochal.Float(v)
	return f, err == nil
}

// ValueAt returns the filtered array at e as a matrix, rows in filter
// order.  One dimensional arrays are returned as a single column.
func (m *Model) ValueAt(e epochal.Epoch) (*mat.Dense, error) {
	a, err := m.store.At(e)
	if err != nil {
		return nil, err
	}
	r, c, err := dims(a)
	if err != nil {
		return nil, err
	}
	if want := m.all.NumRows(); r != want {
		return nil, occerr.Consistency("green.ValueAt",
			"epoch %d: %d rows, %d sites need %d", e, r, m.all.Len(), want)
	}
	out := mat.NewDense(len(m.rows), c, nil)
	for i, src := range m.rows {
		out.SetRow(i, a.Elements[src*c:(src+1)*c])
	}
	return out, nil
}

// Difference returns the store of other minus m, under the given
// parameter label.  Both must have the same epochs and site filter.
func (m *Model) Difference(other *Model, label string) (*Diff, error) {
	const op = "green.Difference"
	if label == "" {
		return nil, occerr.Configuration(op, "empty parameter label")
	}
	if !m.Epochs().Equal(other.Epochs()) {
		return nil, occerr.Consistency(op, "%s: epochs %v != %v", label, m.Epochs(), other.Epochs())
	}
	if !m.filter.Equal(other.filter) {
		return nil, occerr.Consistency(op, "%s: site filters differ", label)
	}
	d := &Diff{ref: m, pert: other, label: label}
	p0, ok0 := m.Param(label)
	p1, ok1 := other.Param(label)
	if ok0 && ok1 {
		d.step, d.hasStep = p1-p0, true
	}
	return d, nil
}

func dims(a *sparse.DenseArray) (r, c int, err error) {
	switch len(a.Shape) {
	case 1:
		return a.Shape[0], 1, nil
	case 2:
		return a.Shape[0], a.Shape[1], nil
	}
	return 0, 0, occerr.Consistency("green", "array of %d dimensions", len(a.Shape))
}

// Array converts a matrix to a two dimensional array.
func Array(m mat.Matrix) *sparse.DenseArray {
	r, c := m.Dims()
	a := sparse.ZerosDense(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Elements[i*c+j] = m.At(i, j)
		}
	}
	return a
}
