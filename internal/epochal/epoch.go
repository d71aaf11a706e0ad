// Public domain.

// Package epochal stores numeric arrays indexed by epoch.
//
// An epoch is an integer day count from a fixed reference time.  A Store
// maps an ascending list of epochs to one n-dimensional array per epoch
// and answers lookups between stored epochs by linear interpolation.
// Two implementations are provided: Array, held in memory, and File,
// persisted in an SQLite database.
package epochal

import (
	"fmt"
	"iter"
	"sort"

	"github.com/viscoinv/occam/internal/occerr"
)

// Epoch is a day index relative to the reference time of a data set.
type Epoch int

// List is an immutable, strictly ascending list of epochs.
//
// The zero value is an empty list.
type List struct {
	e []Epoch
}

// NewList validates and copies es.  Epochs must be non-negative and
// strictly ascending.
func NewList(es ...Epoch) (List, error) {
	for i, e := range es {
		if e < 0 {
			return List{}, occerr.Configuration("epochal.NewList", "negative epoch %d", e)
		}
		if i > 0 && e <= es[i-1] {
			return List{}, occerr.Consistency("epochal.NewList",
				"epochs not strictly ascending at %d: %d after %d", i, e, es[i-1])
		}
	}
	return List{append([]Epoch(nil), es...)}, nil
}

// MustList is NewList for literals known to be valid.
func MustList(es ...Epoch) List {
	l, err := NewList(es...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l List) Len() int       { return len(l.e) }
func (l List) At(i int) Epoch { return l.e[i] }
func (l List) Min() Epoch     { return l.e[0] }
func (l List) Max() Epoch     { return l.e[len(l.e)-1] }
func (l List) Slice() []Epoch { return append([]Epoch(nil), l.e...) }
func (l List) Contains(e Epoch) bool {
	_, ok := l.Index(e)
	return ok
}

// Index returns the position of e, and false if e is not in the list.
func (l List) Index(e Epoch) (int, bool) {
	i := sort.Search(len(l.e), func(i int) bool { return l.e[i] >= e })
	return i, i < len(l.e) && l.e[i] == e
}

// All iterates position, epoch pairs in ascending order.  The sequence
// may be ranged over any number of times.
func (l List) All() iter.Seq2[int, Epoch] {
	return func(yield func(int, Epoch) bool) {
		for i, e := range l.e {
			if !yield(i, e) {
				return
			}
		}
	}
}

func (l List) Equal(o List) bool {
	if len(l.e) != len(o.e) {
		return false
	}
	for i, e := range l.e {
		if o.e[i] != e {
			return false
		}
	}
	return true
}

func (l List) String() string { return fmt.Sprint(l.e) }

// Key formats an epoch the way it is keyed in files, zero padded to
// four digits.
func Key(e Epoch) string { return fmt.Sprintf("%04d", int(e)) }
