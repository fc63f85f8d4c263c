package geospatial

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scatter returns n points around each center with the given spread.
func scatter(seed uint64, n int, spread float64, centers ...orb.Point) []orb.Point {
	rng := rand.New(rand.NewPCG(seed, seed))
	var pts []orb.Point
	for _, c := range centers {
		for i := 0; i < n; i++ {
			pts = append(pts, orb.Point{
				c[0] + (rng.Float64()-0.5)*spread,
				c[1] + (rng.Float64()-0.5)*spread,
			})
		}
	}
	return pts
}

func covered(tiles []orbTile, p orb.Point, buffer float64) bool {
	for _, tl := range tiles {
		if tl.Pad(-buffer + 1e-9).Contains(p) {
			return true
		}
	}
	return false
}

type orbTile = orb.Bound

func boundsOf(t *testing.T, pts []orb.Point, opts PartitionOptions) []orbTile {
	t.Helper()
	tiles, err := Partition(pts, opts)
	require.NoError(t, err)
	out := make([]orbTile, len(tiles))
	for i, tl := range tiles {
		assert.Equal(t, i, tl.ID)
		out[i] = tl.Bound
	}
	return out
}

func TestClusterCount(t *testing.T) {
	tests := []struct {
		name        string
		n, distinct int
		density     float64
		want        int
	}{
		{"rounds", 200, 200, 0.015, 3},
		{"clamps to one", 10, 10, 0.015, 1},
		{"clamps to distinct", 1000, 2, 0.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClusterCount(tt.n, tt.distinct, tt.density))
		})
	}
}

func TestPartition_Empty(t *testing.T) {
	_, err := Partition(nil, DefaultPartitionOptions())
	assert.Error(t, err)
}

func TestPartition_SinglePoint(t *testing.T) {
	p := orb.Point{23.72, 37.97}
	tiles, err := Partition([]orb.Point{p}, DefaultPartitionOptions())
	require.NoError(t, err)
	require.Len(t, tiles, 1)

	assert.Equal(t, 1, tiles[0].Members)
	assert.InDelta(t, p[0]-0.005, tiles[0].Bound.Min[0], 1e-12)
	assert.InDelta(t, p[1]+0.005, tiles[0].Bound.Max[1], 1e-12)
	assert.InDelta(t, 0.0001, tiles[0].Area(), 1e-12)
}

func TestPartition_Coverage(t *testing.T) {
	pts := scatter(7, 150, 0.2,
		orb.Point{23.7, 37.9},
		orb.Point{22.9, 40.6},
		orb.Point{21.7, 38.2},
	)
	opts := DefaultPartitionOptions()
	opts.DensityFactor = 0.02

	bounds := boundsOf(t, pts, opts)
	assert.NotEmpty(t, bounds)
	assert.LessOrEqual(t, len(bounds), ClusterCount(len(pts), len(pts), opts.DensityFactor))

	for _, p := range pts {
		assert.True(t, covered(bounds, p, opts.Buffer), "point %v not covered", p)
	}
}

func TestPartition_MembersSum(t *testing.T) {
	pts := scatter(11, 80, 1, orb.Point{0, 0}, orb.Point{5, 5})
	opts := DefaultPartitionOptions()
	opts.DensityFactor = 0.05

	tiles, err := Partition(pts, opts)
	require.NoError(t, err)

	total := 0
	for _, tl := range tiles {
		total += tl.Members
	}
	assert.Equal(t, len(pts), total)
}

func TestPartition_Deterministic(t *testing.T) {
	pts := scatter(3, 100, 0.5, orb.Point{10, 10}, orb.Point{11, 12})
	opts := DefaultPartitionOptions()
	opts.DensityFactor = 0.03

	a, err := Partition(pts, opts)
	require.NoError(t, err)
	b, err := Partition(pts, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPartition_SeparatesClusters(t *testing.T) {
	pts := scatter(5, 50, 0.01, orb.Point{0, 0}, orb.Point{10, 10})
	opts := DefaultPartitionOptions()
	opts.DensityFactor = 0.02 // k = 2

	tiles, err := Partition(pts, opts)
	require.NoError(t, err)
	require.Len(t, tiles, 2)
	for _, tl := range tiles {
		assert.Equal(t, 50, tl.Members)
		assert.Less(t, tl.Area(), 0.001)
	}
}

func TestPartition_Boundedness(t *testing.T) {
	// One wide sparse cluster that a single k-means tile would cover entirely.
	pts := scatter(9, 60, 4, orb.Point{20, 40})
	opts := DefaultPartitionOptions()
	opts.MaxTileArea = 0.5

	tiles, err := Partition(pts, opts)
	require.NoError(t, err)
	assert.Greater(t, len(tiles), 1)

	total := 0
	for _, tl := range tiles {
		assert.LessOrEqual(t, tl.Area(), opts.MaxTileArea)
		total += tl.Members
	}
	assert.Equal(t, len(pts), total)

	bounds := make([]orbTile, len(tiles))
	for i, tl := range tiles {
		bounds[i] = tl.Bound
	}
	for _, p := range pts {
		assert.True(t, covered(bounds, p, opts.Buffer))
	}
}

func TestPartition_DuplicatePoints(t *testing.T) {
	p := orb.Point{1, 1}
	pts := make([]orb.Point, 300)
	for i := range pts {
		pts[i] = p
	}
	opts := DefaultPartitionOptions()
	opts.MaxTileArea = 1e-9 // unreachable; a single distinct point stops splitting

	tiles, err := Partition(pts, opts)
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, 300, tiles[0].Members)
}
