// Public domain.

package sites_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

func ExampleList_Rows() {
	full, _ := sites.New("0001", "0002", "J550")
	sub, _ := sites.New("J550", "0001")
	rows, err := sub.Rows(full)
	fmt.Println(rows, err)
	// Output:
	// [6 7 8 0 1 2] <nil>
}

func TestParse(t *testing.T) {
	l, err := sites.Parse(strings.NewReader(`# sites used for the inversion
J550 inland

0001  extra tokens ignored
  G060
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"J550", "0001", "G060"}, l.Strings())
	assert.Equal(t, 9, l.NumRows())
	i, ok := l.Index("G060")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestParseErrors(t *testing.T) {
	_, err := sites.Parse(strings.NewReader("# nothing\n\n"))
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
	_, err = sites.Parse(strings.NewReader("J550\nJ550\n"))
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
	_, err = sites.ReadFile(filepath.Join(t.TempDir(), "none"))
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
}

func TestReadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "sites")
	require.NoError(t, os.WriteFile(fn, []byte("0001\n0002\n"), 0o644))
	l, err := sites.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, sites.ID("0002"), l.At(1))
}

func TestRowsMissing(t *testing.T) {
	full, err := sites.New("0001", "0002")
	require.NoError(t, err)
	sub, err := sites.New("0002", "XXXX", "YYYY")
	require.NoError(t, err)
	_, err = sub.Rows(full)
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
	assert.Contains(t, err.Error(), "XXXX YYYY")
}

// Swapping filter order permutes rows.
func TestRowsPermute(t *testing.T) {
	full, _ := sites.New("a", "b", "c")
	ab, _ := sites.New("a", "b")
	ba, _ := sites.New("b", "a")
	r1, err := ab.Rows(full)
	require.NoError(t, err)
	r2, err := ba.Rows(full)
	require.NoError(t, err)
	assert.Equal(t, r1[:3], r2[3:])
	assert.Equal(t, r1[3:], r2[:3])
	assert.False(t, ab.Equal(ba))
}
