// Public domain.

package epochal

import (
	"github.com/ctessum/sparse"

	"github.com/viscoinv/occam/internal/occerr"
)

// Array is an in-memory Store.  It is immutable and safe for concurrent
// use.
type Array struct {
	epochs List
	vals   []*sparse.DenseArray
	info   infoMap
}

// NewArray builds an Array from parallel slices of epochs and values.
func NewArray(epochs []Epoch, vals []*sparse.DenseArray) (*Array, error) {
	if len(epochs) != len(vals) {
		return nil, occerr.Consistency("epochal.NewArray",
			"%d epochs, %d values", len(epochs), len(vals))
	}
	b := NewBuilder()
	for i, e := range epochs {
		if err := b.Put(e, vals[i]); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (a *Array) Epochs() List { return a.epochs }

func (a *Array) At(e Epoch) (*sparse.DenseArray, error) {
	return lookup(a.epochs, e, func(i int) (*sparse.DenseArray, error) {
		return a.vals[i], nil
	})
}

func (a *Array) HasInfo(key string) bool            { return a.info.has(key) }
func (a *Array) Info(key, attr string) (any, error) { return a.info.get(key, attr) }

// Attrs returns a copy of all attributes stored with key.
func (a *Array) Attrs(key string) map[string]any { return a.info.attrs(key) }

// InfoKeys lists annotation keys in sorted order.
func (a *Array) InfoKeys() []string { return a.info.keys() }

// Builder accumulates epochs and annotations for an Array.  It implements
// Writer.
type Builder struct {
	epochs []Epoch
	vals   []*sparse.DenseArray
	info   infoMap
}

func NewBuilder() *Builder {
	return &Builder{info: infoMap{}}
}

// Put appends a copy of v at epoch e.
func (b *Builder) Put(e Epoch, v *sparse.DenseArray) error {
	var last Epoch
	if n := len(b.epochs); n > 0 {
		last = b.epochs[n-1]
	}
	if err := checkPut(len(b.epochs), last, e, v); err != nil {
		return err
	}
	b.epochs = append(b.epochs, e)
	b.vals = append(b.vals, v.Copy())
	return nil
}

// SetInfo stores value and attrs under key, replacing any previous entry.
func (b *Builder) SetInfo(key string, value any, attrs map[string]any) error {
	if key == "" {
		return occerr.Configuration("epochal.SetInfo", "empty key")
	}
	ie := infoEntry{Value: value}
	if len(attrs) > 0 {
		ie.Attrs = make(map[string]any, len(attrs))
		for k, v := range attrs {
			ie.Attrs[k] = v
		}
	}
	b.info[key] = ie
	return nil
}

// Build returns an Array holding what has been put so far.  The builder
// may continue to be used.
func (b *Builder) Build() *Array {
	info := make(infoMap, len(b.info))
	for k, v := range b.info {
		info[k] = v
	}
	return &Array{
		epochs: List{append([]Epoch(nil), b.epochs...)},
		vals:   append([]*sparse.DenseArray(nil), b.vals...),
		info:   info,
	}
}
