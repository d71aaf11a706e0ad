// Public domain.

package epochal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/viscoinv/occam/internal/occerr"
)

// Store is read access to epoch indexed arrays plus their annotations.
type Store interface {
	// Epochs returns the stored epochs.
	Epochs() List
	// At returns the array at e, interpolated if e is not stored.
	// The returned array belongs to the caller.
	At(e Epoch) (*sparse.DenseArray, error)
	// HasInfo reports whether an annotation is stored under key.
	HasInfo(key string) bool
	// Info returns the value stored under key, or with attr != "",
	// the named attribute of that value.
	Info(key, attr string) (any, error)
}

// Writer is the append path of a store.  Epochs must be put in strictly
// ascending order.
type Writer interface {
	Put(e Epoch, v *sparse.DenseArray) error
	SetInfo(key string, value any, attrs map[string]any) error
}

// Put errors.  Both are ErrConsistency kind.
var (
	ErrDuplicateEpoch = errors.New("duplicate epoch")
	ErrNotAscending   = errors.New("epoch not ascending")
	ErrNoInfo         = errors.New("no such info")
)

// RangeError reports a lookup outside the stored epochs.
type RangeError struct {
	Epoch, Min, Max Epoch
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("epoch %d out of range [%d, %d]", e.Epoch, e.Min, e.Max)
}

// Is makes a RangeError match occerr.ErrRange.
func (e *RangeError) Is(target error) bool { return target == occerr.ErrRange }

// checkPut validates appending e after the n epochs ending with last.
func checkPut(n int, last, e Epoch, v *sparse.DenseArray) error {
	const op = "epochal.Put"
	switch {
	case e < 0:
		return occerr.Configuration(op, "negative epoch %d", e)
	case v == nil:
		return occerr.Configuration(op, "nil array for epoch %d", e)
	case n > 0 && e == last:
		return &occerr.Error{Kind: occerr.ErrConsistency, Op: op,
			Msg: fmt.Sprintf("epoch %d", e), Err: ErrDuplicateEpoch}
	case n > 0 && e < last:
		return &occerr.Error{Kind: occerr.ErrConsistency, Op: op,
			Msg: fmt.Sprintf("epoch %d after %d", e, last), Err: ErrNotAscending}
	}
	return nil
}

// lookup implements Store.At for both stores.  get(i) returns the array
// stored at position i; lookup never modifies what get returns.
func lookup(epochs List, e Epoch, get func(i int) (*sparse.DenseArray, error)) (*sparse.DenseArray, error) {
	if epochs.Len() == 0 {
		return nil, occerr.Range("epochal.At", "no epochs stored, requested %d", e)
	}
	if e < epochs.Min() || e > epochs.Max() {
		return nil, &RangeError{e, epochs.Min(), epochs.Max()}
	}
	i, exact := epochs.Index(e)
	if exact {
		v, err := get(i)
		if err != nil {
			return nil, err
		}
		return v.Copy(), nil
	}
	// e.At(i-1) < e < e.At(i)
	t1, t2 := epochs.At(i-1), epochs.At(i)
	v1, err := get(i - 1)
	if err != nil {
		return nil, err
	}
	v2, err := get(i)
	if err != nil {
		return nil, err
	}
	if !sameShape(v1.Shape, v2.Shape) {
		return nil, occerr.Consistency("epochal.At",
			"shape %v at epoch %d, %v at epoch %d", v1.Shape, t1, v2.Shape, t2)
	}
	return Interpolate(v1, v2, t1, t2, e), nil
}

// Interpolate returns v1 + (e-t1)/(t2-t1) * (v2-v1) elementwise.
// v1 and v2 must have the same shape.
func Interpolate(v1, v2 *sparse.DenseArray, t1, t2, e Epoch) *sparse.DenseArray {
	out := sparse.ZerosDense(v1.Shape...)
	f := float64(e-t1) / float64(t2-t1)
	for k, a := range v1.Elements {
		out.Elements[k] = a + f*(v2.Elements[k]-a)
	}
	return out
}

// Velocity returns the rate of change per day between e1 and e2.
func Velocity(s Store, e1, e2 Epoch) (*sparse.DenseArray, error) {
	if e2 <= e1 {
		return nil, occerr.Configuration("epochal.Velocity", "epoch %d not after %d", e2, e1)
	}
	v1, err := s.At(e1)
	if err != nil {
		return nil, err
	}
	v2, err := s.At(e2)
	if err != nil {
		return nil, err
	}
	if !sameShape(v1.Shape, v2.Shape) {
		return nil, occerr.Consistency("epochal.Velocity", "shape %v != %v", v1.Shape, v2.Shape)
	}
	dt := float64(e2 - e1)
	for k := range v2.Elements {
		v2.Elements[k] = (v2.Elements[k] - v1.Elements[k]) / dt
	}
	return v2, nil
}

// Copy writes every stored epoch and the named info keys of src to dst.
// With no keys named, every key src lists is copied.
func Copy(dst Writer, src Store, infoKeys ...string) error {
	if len(infoKeys) == 0 {
		if l, ok := src.(interface{ InfoKeys() []string }); ok {
			infoKeys = l.InfoKeys()
		}
	}
	for _, e := range src.Epochs().All() {
		v, err := src.At(e)
		if err != nil {
			return err
		}
		if err = dst.Put(e, v); err != nil {
			return err
		}
	}
	for _, k := range infoKeys {
		if !src.HasInfo(k) {
			continue
		}
		v, err := src.Info(k, "")
		if err != nil {
			return err
		}
		if err = dst.SetInfo(k, v, infoAttrs(src, k)); err != nil {
			return err
		}
	}
	return nil
}

// infoAttrs retrieves all attributes of key if src exposes them.
func infoAttrs(src Store, key string) map[string]any {
	if a, ok := src.(interface{ Attrs(string) map[string]any }); ok {
		return a.Attrs(key)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type infoEntry struct {
	Value any            `json:"value"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

type infoMap map[string]infoEntry

func (m infoMap) has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m infoMap) get(key, attr string) (any, error) {
	const op = "epochal.Info"
	ie, ok := m[key]
	if !ok {
		return nil, &occerr.Error{Kind: occerr.ErrConfiguration, Op: op, Msg: key, Err: ErrNoInfo}
	}
	if attr == "" {
		return ie.Value, nil
	}
	v, ok := ie.Attrs[attr]
	if !ok {
		return nil, &occerr.Error{Kind: occerr.ErrConfiguration, Op: op,
			Msg: key + "/" + attr, Err: ErrNoInfo}
	}
	return v, nil
}

func (m infoMap) attrs(key string) map[string]any {
	ie, ok := m[key]
	if !ok || len(ie.Attrs) == 0 {
		return nil
	}
	a := make(map[string]any, len(ie.Attrs))
	for k, v := range ie.Attrs {
		a[k] = v
	}
	return a
}

func (m infoMap) keys() []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Float converts a numeric info value to float64.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	}
	return 0, occerr.Configuration("epochal.Float", "%T is not numeric", v)
}

// Strings converts a string list info value to []string.  Lists decoded
// from JSON arrive as []any.
func Strings(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		s := make([]string, len(x))
		for i, e := range x {
			str, ok := e.(string)
			if !ok {
				return nil, occerr.Configuration("epochal.Strings", "element %d is %T", i, e)
			}
			s[i] = str
		}
		return s, nil
	}
	return nil, occerr.Configuration("epochal.Strings", "%T is not a string list", v)
}
