// Public domain.

// Package occsolver implements the linearized, regularized slip inversion.
//
// For a set of epochs t_0 < t_1 < ... the system solved is
//
//	| G(t_0)                 J_0(t_0) ... |   | s_0 |     | d(t_0) |
//	|        G(t_1)          J_0(t_1) ... | * | s_1 |  =  | d(t_1) |
//	|               ...      ...          |   | ... |     | ...    |
//	                                          | x_0 |
//	                                          | ... |
//
// where G(t) is the reference Green's function table at t, s_k the slip
// on each fault patch at epoch t_k, and J_j(t) = (G_j(t) - G(t)) * slip0
// the finite difference sensitivity to non-linear parameter j, whose
// correction x_j is shared by all epochs.  The system is damped by a
// second order Tikhonov operator R, minimizing
//
//	||G m - d||² + alpha² ||R m||²
//
// for each alpha of a sweep, giving the L-curve of misfit against
// roughness.
package occsolver

import (
	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/sites"
)

// Layout records the row and column ordering of an assembled system.
type Layout struct {
	Epochs  epochal.List
	Sites   *sites.List
	Patches int
	NonLin  []string // non-linear parameter labels, in column order
}

// BlockRows is the number of rows per epoch.
func (l Layout) BlockRows() int { return l.Sites.NumRows() }

func (l Layout) Rows() int     { return l.Epochs.Len() * l.BlockRows() }
func (l Layout) SlipCols() int { return l.Epochs.Len() * l.Patches }
func (l Layout) Cols() int     { return l.SlipCols() + len(l.NonLin) }

// Row returns the row of site row r in epoch block k.
func (l Layout) Row(k, r int) int { return k*l.BlockRows() + r }

// SlipCol returns the column of patch p in epoch block k.
func (l Layout) SlipCol(k, p int) int { return k*l.Patches + p }

// NonLinCol returns the column of non-linear parameter j.
func (l Layout) NonLinCol(j int) int { return l.SlipCols() + j }

// Equal reports whether two layouts order rows and columns identically.
func (l Layout) Equal(o Layout) bool {
	if !l.Epochs.Equal(o.Epochs) || !l.Sites.Equal(o.Sites) ||
		l.Patches != o.Patches || len(l.NonLin) != len(o.NonLin) {
		return false
	}
	for j, s := range l.NonLin {
		if o.NonLin[j] != s {
			return false
		}
	}
	return true
}
