// Public domain.

// Package synth builds synthetic Green's function tables, slip models and
// observations, for checkerboard resolution tests of an inversion set up.
//
// Tables come from a simple kernel: response decays with distance from
// the patch center and grows after the event by an exponential relaxation
// whose time constant stands in for mantle viscosity.  They are not
// physical, but have the structure of real tables.
package synth

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"golang.org/x/exp/rand"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

// Geometry places sites around a fault.  Site positions are drawn from
// Seed, so equal geometries give equal tables.
type Geometry struct {
	Fault *fault.Model
	Sites *sites.List
	Seed  uint64
}

type point struct{ x, y, z float64 }

// positions returns site surface positions in km, x along strike from the
// fault's first column, y perpendicular toward down dip.
func (g Geometry) positions() []point {
	rnd := rand.New(rand.NewSource(g.Seed))
	f := g.Fault
	length := float64(f.Cols) * f.PatchStrike
	width := float64(f.Rows) * f.PatchDip * math.Cos(f.Dip.Rad())
	p := make([]point, g.Sites.Len())
	for i := range p {
		p[i] = point{
			x: (rnd.Float64()*1.4 - .2) * length,
			y: (rnd.Float64()*1.6 - .3) * (width + 50),
		}
	}
	return p
}

func (g Geometry) patch(x int) point {
	f := g.Fault
	row, col := f.RowCol(x)
	return point{
		x: (float64(col) + .5) * f.PatchStrike,
		y: (float64(row) + .5) * f.PatchDip * math.Cos(f.Dip.Rad()),
		z: f.Depth(row),
	}
}

// Table computes a table for epochs, relaxing with time constant tau days.
// The table is annotated with its sites and with param under label, when
// label is not empty.
func Table(g Geometry, epochs epochal.List, tau float64, label string, param float64) (*epochal.Array, error) {
	if err := g.Fault.Validate(); err != nil {
		return nil, err
	}
	if !(tau > 0) {
		return nil, occerr.Configuration("synth.Table", "tau %g", tau)
	}
	sp := g.positions()
	np := g.Fault.NumPatches()
	nr := g.Sites.NumRows()

	// elastic response, then scaled per epoch
	el := make([]float64, nr*np)
	for s, site := range sp {
		for x := 0; x < np; x++ {
			p := g.patch(x)
			dx, dy := site.x-p.x, site.y-p.y
			r2 := dx*dx + dy*dy + p.z*p.z
			r := math.Sqrt(r2)
			k := 1e3 * g.Fault.PatchStrike * g.Fault.PatchDip / (r2 * (1 + r/100))
			for c, dir := range [sites.Components]float64{dx / r, dy / r, p.z / r} {
				el[(s*sites.Components+c)*np+x] = k * dir
			}
		}
	}

	b := epochal.NewBuilder()
	for _, e := range epochs.All() {
		f := 1 + .5*(1-math.Exp(-float64(e)/tau))
		a := sparse.ZerosDense(nr, np)
		for i, v := range el {
			a.Elements[i] = v * f
		}
		if err := b.Put(e, a); err != nil {
			return nil, err
		}
	}
	if err := b.SetInfo(green.SitesKey, g.Sites.Strings(), nil); err != nil {
		return nil, err
	}
	if err := b.SetInfo("tau", tau, map[string]any{"unit": "day"}); err != nil {
		return nil, err
	}
	if label != "" {
		if err := b.SetInfo(label, param, nil); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Checkerboard returns a slip vector of alternating blocks of amplitude
// and zero, block patches on a side.
func Checkerboard(f *fault.Model, block int, amplitude float64) []float64 {
	if block < 1 {
		block = 1
	}
	s := make([]float64, f.NumPatches())
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			if (r/block+c/block)%2 == 0 {
				s[f.Mx(r, c)] = amplitude
			}
		}
	}
	return s
}

// Observations predicts displacement G(e_k) * slip[k] at each epoch, adds
// gaussian noise of standard deviation noise drawn from seed, and returns
// the result as a store of single column arrays annotated with the sites
// of g.
func Observations(g *green.Model, epochs epochal.List, slip [][]float64, noise float64, seed uint64) (*epochal.Array, error) {
	const op = "synth.Observations"
	if len(slip) != epochs.Len() {
		return nil, occerr.Consistency(op, "%d slip vectors for %d epochs", len(slip), epochs.Len())
	}
	rnd := rand.New(rand.NewSource(seed))
	b := epochal.NewBuilder()
	for k, e := range epochs.All() {
		gm, err := g.ValueAt(e)
		if err != nil {
			return nil, err
		}
		r, c := gm.Dims()
		if len(slip[k]) != c {
			return nil, occerr.Consistency(op, "epoch %d: %d slip values for %d patches", e, len(slip[k]), c)
		}
		a := sparse.ZerosDense(r)
		for i := 0; i < r; i++ {
			var v float64
			for j, s := range slip[k] {
				v += gm.At(i, j) * s
			}
			if noise > 0 {
				v += noise * rnd.NormFloat64()
			}
			a.Elements[i] = v
		}
		if err = b.Put(e, a); err != nil {
			return nil, err
		}
	}
	if err := b.SetInfo(green.SitesKey, g.Sites().Strings(), nil); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Growing returns slip[k] = final * (k+1)/n, for n epochs, a slip history
// increasing steadily to final.
func Growing(final []float64, n int) [][]float64 {
	out := make([][]float64, n)
	for k := range out {
		f := float64(k+1) / float64(n)
		out[k] = make([]float64, len(final))
		for p, s := range final {
			out[k][p] = s * f
		}
	}
	return out
}

// SiteIDs returns n site IDs "S000", "S001", ...
func SiteIDs(n int) (*sites.List, error) {
	ids := make([]sites.ID, n)
	for i := range ids {
		ids[i] = sites.ID(fmt.Sprintf("S%03d", i))
	}
	return sites.New(ids...)
}
