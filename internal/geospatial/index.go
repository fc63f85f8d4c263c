package geospatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const minRectSide = 1e-9

type indexEntry struct {
	idx   int
	point orb.Point
	rect  rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect { return e.rect }

// Index is an R-tree over projected feature locations. It is immutable after
// NewIndex returns and may be queried from multiple goroutines.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex bulk-loads points; a point's position in the slice is its index.
func NewIndex(points []orb.Point) *Index {
	objs := make([]rtreego.Spatial, len(points))
	for i, p := range points {
		objs[i] = &indexEntry{
			idx:   i,
			point: p,
			rect:  rtreego.Point{p[0], p[1]}.ToRect(tolerance(p[0], p[1])),
		}
	}
	return &Index{
		tree: rtreego.NewTree(2, 25, 50, objs...),
		size: len(points),
	}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.size }

// Neighbor is one k-nearest result.
type Neighbor struct {
	Index    int
	Distance float64
}

// KNearest returns up to k indices nearest to p, nearest first. Equidistant
// entries are ordered by index, including those tied with the k-th result.
func (ix *Index) KNearest(p orb.Point, k int) []Neighbor {
	return ix.KNearestBound(p.Bound(), k)
}

// KNearestBound returns up to k indices nearest to the box b, nearest first,
// with the same tie order as KNearest. Points inside b are at distance zero.
func (ix *Index) KNearestBound(b orb.Bound, k int) []Neighbor {
	if k <= 0 || ix.size == 0 {
		return nil
	}

	dist := func(e *indexEntry) float64 { return boundDistance(b, e.point) }

	radius := 0.0
	for _, s := range ix.tree.NearestNeighbors(k, rtreego.Point{b.Center()[0], b.Center()[1]}) {
		if e, ok := s.(*indexEntry); ok && e != nil {
			radius = math.Max(radius, dist(e))
		}
	}

	return ix.collect(b.Pad(radius), k, func(e *indexEntry) (float64, bool) {
		d := dist(e)
		return d, d <= radius
	})
}

// collect gathers entries intersecting window that keep passes, sorts them
// by (distance, index) and truncates to k.
func (ix *Index) collect(window orb.Bound, k int, keep func(*indexEntry) (float64, bool)) []Neighbor {
	window = window.Pad(tolerance(window.Min[0], window.Min[1], window.Max[0], window.Max[1]))
	rect, err := rtreego.NewRect(
		rtreego.Point{window.Min[0], window.Min[1]},
		[]float64{window.Max[0] - window.Min[0], window.Max[1] - window.Min[1]},
	)
	if err != nil {
		return nil
	}

	var out []Neighbor
	for _, s := range ix.tree.SearchIntersect(rect) {
		e, ok := s.(*indexEntry)
		if !ok || e == nil {
			continue
		}
		if d, ok := keep(e); ok {
			out = append(out, Neighbor{Index: e.idx, Distance: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Index < out[j].Index
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// tolerance returns a rectangle padding that survives float rounding at the
// magnitude of the given coordinates.
func tolerance(coords ...float64) float64 {
	m := 1.0
	for _, c := range coords {
		m = math.Max(m, math.Abs(c))
	}
	return minRectSide * m
}

func boundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(0, math.Max(b.Min[0]-p[0], p[0]-b.Max[0]))
	dy := math.Max(0, math.Max(b.Min[1]-p[1], p[1]-b.Max[1]))
	return math.Hypot(dx, dy)
}
