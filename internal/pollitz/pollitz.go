// Public domain.

// Package pollitz imports the text output of the STATIC1D and VISCO1D
// simulators into an epochal Green's function table.
//
// The simulators write one file per day after the event and per
// sub-fault, named day_DDDD_flt_FFFF.out, each holding one line per site
// with east, north and up displacement in columns 3 to 5.  Files for
// later days hold the postseismic part only; the coseismic day 0 output
// is added to them on import.
package pollitz

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"go.uber.org/zap"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/sites"
)

// NumSubfaultsKey is the info key of the sub-fault count.
const NumSubfaultsKey = "num_subflts"

// Config describes one set of simulator outputs.  Exactly one of Sites
// and SitesFile must be given.
type Config struct {
	Dir          string
	Epochs       epochal.List
	NumSubfaults int // 0 counts the day 0 files
	Sites        *sites.List
	SitesFile    string

	// Extra info, typically the model parameters the table was computed
	// for, such as log10(visM).  ExtraAttrs holds attributes by key,
	// such as {"visM": {"unit": "Pa.s"}}; each key must also be in Extra.
	Extra      map[string]any
	ExtraAttrs map[string]map[string]any

	Log *zap.Logger
}

// FileName returns the name of the simulator output of a day and sub-fault.
func FileName(day epochal.Epoch, flt int) string {
	return fmt.Sprintf("day_%04d_flt_%04d.out", day, flt)
}

func (c *Config) resolve() (*sites.List, int, error) {
	const op = "pollitz.Import"
	var s *sites.List
	switch {
	case c.Sites != nil && c.SitesFile != "":
		return nil, 0, occerr.Configuration(op, "sites are ambiguous: both a list and a file given")
	case c.Sites == nil && c.SitesFile == "":
		return nil, 0, occerr.Configuration(op, "no sites given")
	case c.Sites != nil:
		s = c.Sites
	default:
		var err error
		if s, err = sites.ReadFile(c.SitesFile); err != nil {
			return nil, 0, err
		}
	}
	if c.Epochs.Len() == 0 {
		return nil, 0, occerr.Configuration(op, "no epochs")
	}
	for k := range c.ExtraAttrs {
		if _, ok := c.Extra[k]; !ok {
			return nil, 0, occerr.Configuration(op, "attributes for %q without extra info", k)
		}
	}
	if c.Epochs.Len() > 1 && c.Epochs.At(0) != 0 {
		return nil, 0, occerr.Configuration(op, "epochs must start at day 0, got %d", c.Epochs.At(0))
	}
	n := c.NumSubfaults
	if n == 0 {
		m, err := filepath.Glob(filepath.Join(c.Dir, "day_0000_flt_????.out"))
		if err != nil {
			return nil, 0, err
		}
		n = len(m)
	}
	if n <= 0 {
		return nil, 0, occerr.Configuration(op, "no sub-fault outputs in %s", c.Dir)
	}
	for _, day := range c.Epochs.Slice() {
		for f := 0; f < n; f++ {
			if _, err := os.Stat(filepath.Join(c.Dir, FileName(day, f))); err != nil {
				return nil, 0, occerr.Wrap(occerr.ErrConfiguration, op, err)
			}
		}
	}
	return s, n, nil
}

// Import reads the outputs described by c into w: one (3 x sites) by
// sub-faults slice per epoch, then info "sites", "num_subflts" and the
// extra info.  Every file is checked to exist before anything is written.
func Import(c Config, w epochal.Writer) error {
	s, n, err := c.resolve()
	if err != nil {
		return err
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	var day0 *sparse.DenseArray
	for _, day := range c.Epochs.Slice() {
		log.Info("reading day", zap.Int("epoch", int(day)), zap.Int("subfaults", n))
		g, err := c.readDay(day, s.NumRows(), n)
		if err != nil {
			return err
		}
		if day == 0 {
			day0 = g.Copy()
		} else if day0 != nil {
			for i, v := range day0.Elements {
				g.Elements[i] += v
			}
		}
		if err = w.Put(day, g); err != nil {
			return err
		}
	}
	if err = w.SetInfo(green.SitesKey, s.Strings(), nil); err != nil {
		return err
	}
	if err = w.SetInfo(NumSubfaultsKey, n, nil); err != nil {
		return err
	}
	for k, v := range c.Extra {
		if err = w.SetInfo(k, v, c.ExtraAttrs[k]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) readDay(day epochal.Epoch, rows, n int) (*sparse.DenseArray, error) {
	g := sparse.ZerosDense(rows, n)
	for f := 0; f < n; f++ {
		col, err := readFile(filepath.Join(c.Dir, FileName(day, f)))
		if err != nil {
			return nil, err
		}
		if len(col) != rows {
			return nil, occerr.Consistency("pollitz.Import", "%s: %d values, want %d",
				FileName(day, f), len(col), rows)
		}
		for r, v := range col {
			g.Set(v, r, f)
		}
	}
	return g, nil
}

// readFile returns columns 3 to 5 of every data line, flattened.
func readFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var col []float64
	sc := bufio.NewScanner(f)
	ln := 0
	for sc.Scan() {
		ln++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		flds := strings.Fields(line)
		if len(flds) == 0 {
			continue
		}
		if len(flds) < 5 {
			return nil, occerr.Consistency("pollitz.Import", "%s line %d: %d columns", path, ln, len(flds))
		}
		for _, s := range flds[2:5] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, ln, err)
			}
			col = append(col, v)
		}
	}
	return col, sc.Err()
}
