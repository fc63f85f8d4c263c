package geospatial

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/model"
)

// PartitionOptions configures density-based tiling.
type PartitionOptions struct {
	DensityFactor float64
	Buffer        float64 // degrees added on every side of a cluster box
	Seed          uint64
	Restarts      int
	MaxIterations int
	MaxTileArea   float64 // square degrees of a buffered tile; 0 disables splitting
}

// DefaultPartitionOptions returns the options used when none are configured.
func DefaultPartitionOptions() PartitionOptions {
	return PartitionOptions{
		DensityFactor: 0.015,
		Buffer:        0.005,
		Seed:          2020,
		Restarts:      10,
		MaxIterations: 500,
	}
}

// ClusterCount returns the number of clusters used for n points, clamped to
// [1, distinct].
func ClusterCount(n, distinct int, density float64) int {
	k := int(math.Round(float64(n) * density))
	if k > distinct {
		k = distinct
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Partition clusters WGS84 points with k-means and returns one buffered tile
// per cluster, ordered by cluster id. Every input point lies inside the
// unbuffered box of the tile it was assigned to.
func Partition(points []orb.Point, opts PartitionOptions) ([]model.Tile, error) {
	if len(points) == 0 {
		return nil, eris.New("geospatial: partition requires at least one point")
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}

	log := zap.L().With(zap.String("component", "geospatial.partition"))

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	k := ClusterCount(len(points), countDistinct(points), opts.DensityFactor)
	res := bestKMeans(points, k, opts, rng)

	groups := make([][]orb.Point, k)
	for i, c := range res.assign {
		groups[c] = append(groups[c], points[i])
	}

	var tiles []model.Tile
	for _, members := range groups {
		if len(members) == 0 {
			continue
		}
		for _, part := range splitOversized(members, opts, rng) {
			tiles = append(tiles, model.Tile{
				ID:      len(tiles),
				Bound:   memberBound(part).Pad(opts.Buffer),
				Members: len(part),
			})
		}
	}

	log.Info("partitioned points",
		zap.Int("points", len(points)),
		zap.Int("clusters", k),
		zap.Int("tiles", len(tiles)),
		zap.Float64("inertia", res.inertia),
	)
	return tiles, nil
}

// splitOversized bisects a cluster with 2-means until every buffered box is
// under the area cap or holds a single distinct point.
func splitOversized(members []orb.Point, opts PartitionOptions, rng *rand.Rand) [][]orb.Point {
	if opts.MaxTileArea <= 0 || boundArea(memberBound(members).Pad(opts.Buffer)) <= opts.MaxTileArea {
		return [][]orb.Point{members}
	}
	if countDistinct(members) < 2 {
		return [][]orb.Point{members}
	}

	res := bestKMeans(members, 2, opts, rng)
	halves := make([][]orb.Point, 2)
	for i, c := range res.assign {
		halves[c] = append(halves[c], members[i])
	}

	var out [][]orb.Point
	for _, h := range halves {
		if len(h) == 0 {
			continue
		}
		out = append(out, splitOversized(h, opts, rng)...)
	}
	return out
}

type kmeansResult struct {
	centroids []orb.Point
	assign    []int
	inertia   float64
}

// bestKMeans runs k-means opts.Restarts times and keeps the lowest inertia.
// The first run wins ties.
func bestKMeans(points []orb.Point, k int, opts PartitionOptions, rng *rand.Rand) kmeansResult {
	var best kmeansResult
	for r := 0; r < opts.Restarts; r++ {
		res := kmeans(points, k, opts.MaxIterations, rng)
		if r == 0 || res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

func kmeans(points []orb.Point, k, maxIter int, rng *rand.Rand) kmeansResult {
	centroids := seedPlusPlus(points, k, rng)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := nearestCentroid(p, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([]orb.Point, k)
		counts := make([]int, k)
		for i, p := range points {
			c := assign[i]
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			counts[c]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = orb.Point{sums[c][0] / float64(counts[c]), sums[c][1] / float64(counts[c])}
			}
		}
		reseedEmpty(points, centroids, assign, counts)
	}

	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[assign[i]])
	}
	return kmeansResult{centroids: centroids, assign: assign, inertia: inertia}
}

// seedPlusPlus picks k initial centroids with k-means++ weighting.
func seedPlusPlus(points []orb.Point, k int, rng *rand.Rand) []orb.Point {
	centroids := make([]orb.Point, 0, k)
	centroids = append(centroids, points[rng.IntN(len(points))])

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = sqDist(p, centroids[nearestCentroid(p, centroids)])
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, points[rng.IntN(len(points))])
			continue
		}

		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 && d > 0 {
				pick = i
				break
			}
		}
		for dist[pick] == 0 && pick > 0 {
			pick--
		}
		centroids = append(centroids, points[pick])
	}
	return centroids
}

// reseedEmpty moves every empty centroid onto the point farthest from its
// current centroid.
func reseedEmpty(points []orb.Point, centroids []orb.Point, assign, counts []int) {
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[assign[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[assign[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[assign[far]]--
		centroids[c] = points[far]
		assign[far] = c
		counts[c] = 1
	}
}

func nearestCentroid(p orb.Point, centroids []orb.Point) int {
	best, bestDist := 0, math.Inf(1)
	for c, q := range centroids {
		if d := sqDist(p, q); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func countDistinct(points []orb.Point) int {
	seen := make(map[orb.Point]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func memberBound(points []orb.Point) orb.Bound {
	return orb.MultiPoint(points).Bound()
}

func boundArea(b orb.Bound) float64 {
	return (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
}
