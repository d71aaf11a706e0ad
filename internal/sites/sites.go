// Public domain.

// Package sites handles the ordered site allow-lists that select rows of
// per-site, per-component arrays.
//
// Arrays keyed by site carry three rows per site, east, north and up, in
// site order.
package sites

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/viscoinv/occam/internal/occerr"
)

// Components per site: e, n, u.
const Components = 3

// ID is a site identifier, a fixed-width token such as "J550".
type ID string

// List is an ordered set of site IDs.  It is immutable after
// construction.
type List struct {
	ids []ID
	pos map[ID]int
}

// New builds a List.  It fails on an empty list or duplicate IDs.
func New(ids ...ID) (*List, error) {
	const op = "sites.New"
	if len(ids) == 0 {
		return nil, occerr.Configuration(op, "empty site list")
	}
	l := &List{ids: append([]ID(nil), ids...), pos: make(map[ID]int, len(ids))}
	for i, id := range ids {
		if id == "" {
			return nil, occerr.Configuration(op, "empty site id at %d", i)
		}
		if j, dup := l.pos[id]; dup {
			return nil, occerr.Configuration(op, "site %s listed at %d and %d", id, j, i)
		}
		l.pos[id] = i
	}
	return l, nil
}

// FromStrings is New for string slices, as stored in file annotations.
func FromStrings(s []string) (*List, error) {
	ids := make([]ID, len(s))
	for i, x := range s {
		ids[i] = ID(x)
	}
	return New(ids...)
}

// ReadFile reads a site list file.
func ReadFile(fn string) (*List, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "sites.ReadFile", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one site per line, taking the first whitespace separated
// token.  Blank lines and lines starting with # are ignored, so are any
// tokens after the first.
func Parse(r io.Reader) (*List, error) {
	var ids []ID
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], "#") {
			continue
		}
		ids = append(ids, ID(f[0]))
	}
	if err := sc.Err(); err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "sites.Parse", err)
	}
	return New(ids...)
}

func (l *List) Len() int     { return len(l.ids) }
func (l *List) At(i int) ID  { return l.ids[i] }
func (l *List) IDs() []ID    { return append([]ID(nil), l.ids...) }
func (l *List) NumRows() int { return len(l.ids) * Components }

// Index returns the position of id in the list.
func (l *List) Index(id ID) (int, bool) {
	i, ok := l.pos[id]
	return i, ok
}

func (l *List) Strings() []string {
	s := make([]string, len(l.ids))
	for i, id := range l.ids {
		s[i] = string(id)
	}
	return s
}

// Equal reports whether two lists hold the same IDs in the same order.
func (l *List) Equal(o *List) bool {
	if len(l.ids) != len(o.ids) {
		return false
	}
	for i, id := range l.ids {
		if o.ids[i] != id {
			return false
		}
	}
	return true
}

// Rows maps l onto full, returning for each row of an l-filtered array
// the row of the full array it comes from.  Rows are site major, three
// per site.  A site of l missing from full is a configuration error.
func (l *List) Rows(full *List) ([]int, error) {
	rows := make([]int, 0, l.NumRows())
	var missing []string
	for _, id := range l.ids {
		j, ok := full.pos[id]
		if !ok {
			missing = append(missing, string(id))
			continue
		}
		for c := 0; c < Components; c++ {
			rows = append(rows, j*Components+c)
		}
	}
	if len(missing) > 0 {
		return nil, occerr.Configuration("sites.Rows",
			"sites not in data: %s", strings.Join(missing, " "))
	}
	return rows, nil
}
