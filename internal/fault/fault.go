// Public domain.

// Package fault defines the sub-fault grid that slip is estimated on.
//
// The fault plane is divided into Rows x Cols rectangular patches, rows
// running down dip from the top edge, columns along strike.  Slip vectors
// hold one value per patch in row major order.
package fault

import (
	"encoding/gob"
	"math"
	"os"

	"github.com/soniakeys/unit"

	"github.com/viscoinv/occam/internal/occerr"
)

// Model describes the fault grid.  It is not modified after loading.
type Model struct {
	Rows, Cols  int        // patches along dip, along strike
	PatchStrike float64    // km
	PatchDip    float64    // km
	TopDepth    float64    // km, depth of the top edge
	Dip         unit.Angle // dip of the fault plane
}

// Validate checks the grid is usable.
func (m *Model) Validate() error {
	const op = "fault.Validate"
	switch {
	case m.Rows < 1 || m.Cols < 1:
		return occerr.Configuration(op, "grid %dx%d", m.Rows, m.Cols)
	case !(m.PatchStrike > 0) || !(m.PatchDip > 0):
		return occerr.Configuration(op, "patch size %g x %g km", m.PatchStrike, m.PatchDip)
	case m.TopDepth < 0:
		return occerr.Configuration(op, "top depth %g km", m.TopDepth)
	case m.Dip < 0 || m.Dip.Deg() > 90:
		return occerr.Configuration(op, "dip %g deg", m.Dip.Deg())
	}
	return nil
}

// NumPatches returns Rows * Cols.
func (m *Model) NumPatches() int { return m.Rows * m.Cols }

// Mx computes the index of a patch in a slip vector.
func (m *Model) Mx(row, col int) int { return row*m.Cols + col }

// RowCol is the inverse of Mx.
func (m *Model) RowCol(x int) (row, col int) { return x / m.Cols, x % m.Cols }

// Depth returns the depth in km of the center of patches in row.
func (m *Model) Depth(row int) float64 {
	return m.TopDepth + (float64(row)+.5)*m.PatchDip*math.Sin(m.Dip.Rad())
}

// Area returns the area of one patch in m².
func (m *Model) Area() float64 { return m.PatchStrike * 1e3 * m.PatchDip * 1e3 }

// ReadFile reads a fault model written by WriteFile.
func ReadFile(fn string) (*Model, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "fault.ReadFile", err)
	}
	defer f.Close()
	var m Model
	if err = gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "fault.ReadFile", err)
	}
	return &m, m.Validate()
}

// WriteFile writes m to a new file fn.
func WriteFile(fn string, m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
