// Public domain.

package occsolver

import (
	"math"
	"sort"
	"strings"

	"github.com/viscoinv/occam/internal/occerr"
)

// Point is one alpha of an L-curve.  A point whose solve failed is a gap:
// Err is set and Solution is nil.
type Point struct {
	Alpha    float64
	Solution *Solution
	Err      error
}

func (p Point) Gap() bool { return p.Solution == nil }

// Selection chooses how a run picks its final solution.
type Selection int

const (
	// SelectCorner picks the L-curve corner of each trial, then the trial
	// with the lowest misfit at its corner.
	SelectCorner Selection = iota
	// SelectRecord records every point and picks nothing.
	SelectRecord
)

func (s Selection) String() string {
	if s == SelectRecord {
		return "record"
	}
	return "corner"
}

func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(s) {
	case "", "corner":
		return SelectCorner, nil
	case "record":
		return SelectRecord, nil
	}
	return 0, occerr.Configuration("occsolver.ParseSelection", "unknown selection %q", s)
}

// Corner returns the index in pts of the L-curve corner, or -1 if pts has
// no usable point.
//
// Usable points, those without error and with positive misfit and
// roughness, are ordered by ascending alpha and taken in log10(misfit),
// log10(roughness) space.  The corner is the interior point of greatest
// positive signed curvature through its neighbors, the curve turning
// toward the origin.  Without such a point, the point closest to the
// origin after scaling both axes to [0, 1] is taken.
func Corner(pts []Point) int {
	type lp struct {
		i    int
		x, y float64
	}
	var c []lp
	for i, p := range pts {
		if p.Gap() || !(p.Solution.Misfit > 0) || !(p.Solution.Roughness > 0) {
			continue
		}
		c = append(c, lp{i, math.Log10(p.Solution.Misfit), math.Log10(p.Solution.Roughness)})
	}
	if len(c) == 0 {
		return -1
	}
	sort.SliceStable(c, func(a, b int) bool { return pts[c[a].i].Alpha < pts[c[b].i].Alpha })

	best, bestK := -1, 0.
	for k := 1; k+1 < len(c); k++ {
		if kk := menger(c[k-1].x, c[k-1].y, c[k].x, c[k].y, c[k+1].x, c[k+1].y); kk > bestK {
			best, bestK = c[k].i, kk
		}
	}
	if best >= 0 {
		return best
	}

	minX, maxX, minY, maxY := c[0].x, c[0].x, c[0].y, c[0].y
	for _, p := range c[1:] {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	norm := func(v, lo, hi float64) float64 {
		if hi == lo {
			return 0
		}
		return (v - lo) / (hi - lo)
	}
	best, bestD := c[0].i, math.Inf(1)
	for _, p := range c {
		if d := math.Hypot(norm(p.x, minX, maxX), norm(p.y, minY, maxY)); d < bestD {
			best, bestD = p.i, d
		}
	}
	return best
}

// menger returns the signed curvature of the circle through three points,
// positive for a counterclockwise turn.
func menger(x1, y1, x2, y2, x3, y3 float64) float64 {
	cross := (x2-x1)*(y3-y2) - (y2-y1)*(x3-x2)
	a := math.Hypot(x2-x1, y2-y1)
	b := math.Hypot(x3-x2, y3-y2)
	c := math.Hypot(x3-x1, y3-y1)
	if a == 0 || b == 0 || c == 0 {
		return 0
	}
	return 2 * cross / (a * b * c)
}
