package geospatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-interlink/internal/model"
)

func TestEPSGProjector_RoundTrip(t *testing.T) {
	proj := NewEPSGProjector()
	defer proj.Close()
	athens := orb.Point{23.7261, 37.9715}

	merc, err := proj.Project(athens, WGS84, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, 2641177, merc[0], 10)
	assert.InDelta(t, 4575400, merc[1], 10)

	back, err := proj.Project(merc, WebMercator, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, athens[0], back[0], 1e-9)
	assert.InDelta(t, athens[1], back[1], 1e-9)
}

func TestEPSGProjector_GreekGrid(t *testing.T) {
	proj := NewEPSGProjector()
	defer proj.Close()
	athens := orb.Point{23.7261, 37.9715}

	ggrs, err := proj.Project(athens, WGS84, GreekGrid)
	require.NoError(t, err)
	// Central meridian 24E, false easting 500 km.
	assert.InDelta(t, 476000, ggrs[0], 1500)
	assert.InDelta(t, 4203000, ggrs[1], 3000)

	back, err := proj.Project(ggrs, GreekGrid, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, athens[0], back[0], 1e-7)
	assert.InDelta(t, athens[1], back[1], 1e-7)

	merc, err := proj.Project(ggrs, GreekGrid, WebMercator)
	require.NoError(t, err)
	direct, err := proj.Project(athens, WGS84, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, direct[0], merc[0], 0.5)
	assert.InDelta(t, direct[1], merc[1], 0.5)
}

func TestEPSGProjector_Identity(t *testing.T) {
	p := orb.Point{1, 2}
	got, err := NewEPSGProjector().Project(p, GreekGrid, GreekGrid)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestEPSGProjector_Unknown(t *testing.T) {
	proj := NewEPSGProjector()
	defer proj.Close()

	_, err := proj.Project(orb.Point{1, 2}, 999999, WebMercator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPSG:999999")

	assert.NoError(t, proj.Check(WGS84, WebMercator))
	assert.NoError(t, proj.Check(GreekGrid, WebMercator))
	assert.ErrorContains(t, proj.Check(WGS84, 999999), "EPSG:999999")
}

func TestEPSGProjector_PolarLatitude(t *testing.T) {
	_, err := NewEPSGProjector().Project(orb.Point{0, 89.9}, WGS84, WebMercator)
	assert.Error(t, err)
}

func TestProjectAll(t *testing.T) {
	pts := []orb.Point{{0, 0}, {10, 10}}
	out, err := ProjectAll(NewEPSGProjector(), pts, WGS84, WebMercator)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 0, out[0][0], 1e-6)
	assert.Greater(t, out[1][0], 1e6)

	_, err = ProjectAll(NewEPSGProjector(), []orb.Point{{0, 0}, {0, 89.99}}, WGS84, WebMercator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project point 1")
}

func TestProjectPOIs(t *testing.T) {
	pois := []model.SourcePOI{
		{ID: "a", Location: orb.Point{23.7261, 37.9715}, CRS: WGS84},
		{ID: "b", Location: orb.Point{2641177, 4575400}, CRS: WebMercator},
	}

	out, err := ProjectPOIs(NewEPSGProjector(), pois, WebMercator)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, pois[0].Location, out[0].Geographic)
	assert.InDelta(t, 2641177, out[0].Projected[0], 10)
	assert.Equal(t, pois[1].Location, out[1].Projected)
	assert.InDelta(t, 23.7261, out[1].Geographic[0], 1e-3)

	assert.True(t, pois[0].Projected.Equal(orb.Point{}), "input is not modified")
}

func TestProjectPOIs_GreekGrid(t *testing.T) {
	pois := []model.SourcePOI{{ID: "g", Location: orb.Point{476000, 4203000}, CRS: GreekGrid}}
	out, err := ProjectPOIs(NewEPSGProjector(), pois, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, 23.73, out[0].Geographic[0], 0.05)
	assert.InDelta(t, 37.97, out[0].Geographic[1], 0.05)
	assert.Greater(t, out[0].Projected[0], 2.6e6)
}

func TestProjectPOIs_Unsupported(t *testing.T) {
	_, err := ProjectPOIs(NewEPSGProjector(), []model.SourcePOI{{ID: "x", CRS: 999999}}, WebMercator)
	assert.ErrorContains(t, err, "x")
}

func TestProjectFeatures(t *testing.T) {
	table := model.FeatureTable{{Location: orb.Point{23.7261, 37.9715}}}
	out, err := ProjectFeatures(NewEPSGProjector(), table, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, 4575400, out[0].Projected[1], 10)
	assert.True(t, table[0].Projected.Equal(orb.Point{}))
}
