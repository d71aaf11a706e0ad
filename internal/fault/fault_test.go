// Public domain.

package fault_test

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/occerr"
)

func ExampleModel_Mx() {
	m := &fault.Model{Rows: 10, Cols: 25, PatchStrike: 28, PatchDip: 23.03}
	fmt.Println(m.NumPatches(), m.Mx(1, 3))
	fmt.Println(m.RowCol(28))
	// Output:
	// 250 28
	// 1 3
}

func TestMoment(t *testing.T) {
	m := &fault.Model{Rows: 1, Cols: 1, PatchStrike: 1, PatchDip: 1}
	mo, mw, err := m.Moment([]float64{1}, fault.Uniform(3e10))
	require.NoError(t, err)
	assert.InDelta(t, 3e16, mo, 1)
	assert.InDelta(t, 2./3*math.Log10(3e16)-6, mw, 1e-12)

	_, _, err = m.Moment([]float64{1, 2}, fault.Uniform(3e10))
	assert.ErrorIs(t, err, occerr.ErrConsistency)
}

func TestLayeredShear(t *testing.T) {
	e := fault.Earth{{Bottom: 10, Mu: 1e10}, {Bottom: 30, Mu: 3e10}, {Bottom: math.Inf(1), Mu: 6e10}}
	assert.Equal(t, 1e10, e.Shear(5))
	assert.Equal(t, 3e10, e.Shear(10))
	assert.Equal(t, 6e10, e.Shear(100))

	// two rows, vertical fault, 10 km patches: centers at 5 and 15 km
	m := &fault.Model{Rows: 2, Cols: 1, PatchStrike: 10, PatchDip: 10, Dip: unit.AngleFromDeg(90)}
	assert.InDelta(t, 15, m.Depth(1), 1e-9)
	mo, _, err := m.Moment([]float64{1, 1}, e)
	require.NoError(t, err)
	assert.InDelta(t, (1e10+3e10)*1e8, mo, 1)
}

func TestFileRoundTrip(t *testing.T) {
	m := &fault.Model{Rows: 10, Cols: 25, PatchStrike: 28, PatchDip: 23.03,
		TopDepth: 3, Dip: unit.AngleFromDeg(15)}
	fn := filepath.Join(t.TempDir(), "fault.gob")
	require.NoError(t, fault.WriteFile(fn, m))
	got, err := fault.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestValidate(t *testing.T) {
	for _, m := range []fault.Model{
		{Rows: 0, Cols: 1, PatchStrike: 1, PatchDip: 1},
		{Rows: 1, Cols: 1, PatchStrike: 0, PatchDip: 1},
		{Rows: 1, Cols: 1, PatchStrike: 1, PatchDip: 1, TopDepth: -1},
		{Rows: 1, Cols: 1, PatchStrike: 1, PatchDip: 1, Dip: unit.AngleFromDeg(91)},
	} {
		assert.ErrorIs(t, m.Validate(), occerr.ErrConfiguration, "%+v", m)
	}
}
