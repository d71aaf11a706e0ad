// Public domain.

package epochal_test

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/occerr"
)

func arr(shape []int, vals ...float64) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	copy(a.Elements, vals)
	return a
}

func ExampleList_All() {
	l := epochal.MustList(0, 10, 30)
	for i, e := range l.All() {
		fmt.Println(i, epochal.Key(e))
	}
	// Output:
	// 0 0000
	// 1 0010
	// 2 0030
}

func TestNewList(t *testing.T) {
	_, err := epochal.NewList(0, 10, 10)
	assert.ErrorIs(t, err, occerr.ErrConsistency)
	_, err = epochal.NewList(-1, 10)
	assert.ErrorIs(t, err, occerr.ErrConfiguration)

	l := epochal.MustList(0, 10, 30)
	assert.Equal(t, epochal.Epoch(0), l.Min())
	assert.Equal(t, epochal.Epoch(30), l.Max())
	i, ok := l.Index(10)
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	assert.False(t, l.Contains(11))
	assert.True(t, l.Equal(epochal.MustList(0, 10, 30)))
	assert.False(t, l.Equal(epochal.MustList(0, 10)))

	// restartable
	n := 0
	for range l.All() {
		n++
	}
	for range l.All() {
		n++
	}
	assert.Equal(t, 6, n)
}

// storeSuite runs the same Store contract against both implementations.
type storeSuite struct {
	suite.Suite
	open func(w func(epochal.Writer)) epochal.Store
}

func (s *storeSuite) fill() epochal.Store {
	return s.open(func(w epochal.Writer) {
		r := s.Require()
		r.NoError(w.Put(0, arr([]int{2, 2}, 1, 2, 3, 4)))
		r.NoError(w.Put(10, arr([]int{2, 2}, 11, 12, 13, 14)))
		r.NoError(w.Put(30, arr([]int{2, 2}, -1, 0.1, math.Pi, 1e-300)))
		r.NoError(w.SetInfo("sites", []string{"J550", "0001"}, nil))
		r.NoError(w.SetInfo("log10(visM)", 18.8, map[string]any{"unit": "Pa.s"}))
	})
}

func (s *storeSuite) TestExactHit() {
	st := s.fill()
	v, err := st.At(10)
	s.Require().NoError(err)
	s.Equal([]int{2, 2}, v.Shape)
	s.Equal([]float64{11, 12, 13, 14}, v.Elements)

	// caller owns the result
	v.Elements[0] = 99
	again, err := st.At(10)
	s.Require().NoError(err)
	s.Equal(11.0, again.Elements[0])
}

func (s *storeSuite) TestInterpolation() {
	st := s.fill()
	v, err := st.At(17)
	s.Require().NoError(err)
	v1 := []float64{11, 12, 13, 14}
	v2 := []float64{-1, 0.1, math.Pi, 1e-300}
	for k := range v1 {
		want := v1[k] + float64(17-10)/float64(30-10)*(v2[k]-v1[k])
		s.Equal(want, v.Elements[k], "element %d", k)
	}
	// boundaries are exact
	for _, e := range []epochal.Epoch{0, 30} {
		v, err := st.At(e)
		s.Require().NoError(err)
		if e == 30 {
			s.Equal(v2, v.Elements)
		}
	}
}

func (s *storeSuite) TestRange() {
	st := s.fill()
	for _, e := range []epochal.Epoch{-1, 31, 1000} {
		_, err := st.At(e)
		s.ErrorIs(err, occerr.ErrRange, "epoch %d", e)
		var re *epochal.RangeError
		s.Require().True(errors.As(err, &re))
		s.Equal(epochal.Epoch(30), re.Max)
	}
}

func (s *storeSuite) TestPutOrder() {
	s.open(func(w epochal.Writer) {
		s.Require().NoError(w.Put(5, arr([]int{1}, 1)))
		s.ErrorIs(w.Put(5, arr([]int{1}, 1)), epochal.ErrDuplicateEpoch)
		s.ErrorIs(w.Put(4, arr([]int{1}, 1)), epochal.ErrNotAscending)
		s.ErrorIs(w.Put(4, arr([]int{1}, 1)), occerr.ErrConsistency)
		s.ErrorIs(w.Put(-2, arr([]int{1}, 1)), occerr.ErrConfiguration)
	})
}

func (s *storeSuite) TestInfo() {
	st := s.fill()
	s.True(st.HasInfo("sites"))
	s.False(st.HasInfo("rake"))
	v, err := st.Info("sites", "")
	s.Require().NoError(err)
	ids, err := epochal.Strings(v)
	s.Require().NoError(err)
	s.Equal([]string{"J550", "0001"}, ids)

	v, err = st.Info("log10(visM)", "")
	s.Require().NoError(err)
	f, err := epochal.Float(v)
	s.Require().NoError(err)
	s.Equal(18.8, f)

	u, err := st.Info("log10(visM)", "unit")
	s.Require().NoError(err)
	s.Equal("Pa.s", u)

	_, err = st.Info("rake", "")
	s.ErrorIs(err, epochal.ErrNoInfo)
	s.ErrorIs(err, occerr.ErrConfiguration)
}

func (s *storeSuite) TestVelocity() {
	st := s.fill()
	v, err := epochal.Velocity(st, 0, 10)
	s.Require().NoError(err)
	s.Equal([]float64{1, 1, 1, 1}, v.Elements)
	_, err = epochal.Velocity(st, 10, 10)
	s.ErrorIs(err, occerr.ErrConfiguration)
}

func TestArray(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(w func(epochal.Writer)) epochal.Store {
		b := epochal.NewBuilder()
		w(b)
		return b.Build()
	}})
}

func TestFile(t *testing.T) {
	s := &storeSuite{}
	s.open = func(w func(epochal.Writer)) epochal.Store {
		fn := filepath.Join(s.T().TempDir(), "store.db")
		f, err := epochal.Create(fn)
		s.Require().NoError(err)
		w(f)
		s.Require().NoError(f.Close())
		r, err := epochal.Open(fn)
		s.Require().NoError(err)
		s.T().Cleanup(func() { r.Close() })
		return r
	}
	suite.Run(t, s)
}

func TestFileRoundTripBits(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "bits.db")
	w, err := epochal.Create(fn)
	require.NoError(t, err)
	vals := map[epochal.Epoch]*sparse.DenseArray{
		0:    arr([]int{3}, math.Copysign(0, -1), math.SmallestNonzeroFloat64, math.MaxFloat64),
		1:    arr([]int{3}, math.NaN(), math.Inf(-1), 1.0/3),
		1200: arr([]int{3}, 0.1, 0.2, 0.30000000000000004),
	}
	for _, e := range []epochal.Epoch{0, 1, 1200} {
		require.NoError(t, w.Put(e, vals[e]))
	}
	require.NoError(t, w.Close())

	r, err := epochal.Open(fn)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []epochal.Epoch{0, 1, 1200}, r.Epochs().Slice())
	for e, want := range vals {
		got, err := r.At(e)
		require.NoError(t, err)
		require.Len(t, got.Elements, len(want.Elements))
		for k := range want.Elements {
			assert.Equal(t, math.Float64bits(want.Elements[k]), math.Float64bits(got.Elements[k]),
				"epoch %d element %d", e, k)
		}
	}

	_, err = epochal.Create(fn)
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
	_, err = epochal.Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
}

func TestCopy(t *testing.T) {
	b := epochal.NewBuilder()
	require.NoError(t, b.Put(0, arr([]int{2}, 1, 2)))
	require.NoError(t, b.Put(3, arr([]int{2}, 4, 8)))
	require.NoError(t, b.SetInfo("rake", 90.0, map[string]any{"unit": "deg"}))

	fn := filepath.Join(t.TempDir(), "copy.db")
	f, err := epochal.Create(fn)
	require.NoError(t, err)
	require.NoError(t, epochal.Copy(f, b.Build(), "rake", "absent"))
	v, err := f.At(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, v.Elements)
	u, err := f.Info("rake", "unit")
	require.NoError(t, err)
	assert.Equal(t, "deg", u)

	// no keys named: everything the file lists
	back := epochal.NewBuilder()
	require.NoError(t, epochal.Copy(back, f))
	a := back.Build()
	assert.Equal(t, []string{"rake"}, a.InfoKeys())
	assert.Equal(t, map[string]any{"unit": "deg"}, a.Attrs("rake"))
	assert.Equal(t, f.Epochs().Slice(), a.Epochs().Slice())
	require.NoError(t, f.Close())
}

func TestShapeMismatch(t *testing.T) {
	a, err := epochal.NewArray([]epochal.Epoch{0, 2},
		[]*sparse.DenseArray{arr([]int{2}, 1, 2), arr([]int{3}, 1, 2, 3)})
	require.NoError(t, err)
	_, err = a.At(1)
	assert.ErrorIs(t, err, occerr.ErrConsistency)
	_, err = a.At(2)
	assert.NoError(t, err)
}
