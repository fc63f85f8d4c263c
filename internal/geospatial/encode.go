package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// PointWKT renders p as well-known text.
func PointWKT(p orb.Point) string {
	return wkt.MarshalString(p)
}

// ParsePointWKT parses a POINT well-known-text string.
func ParsePointWKT(s string) (orb.Point, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return orb.Point{}, eris.Wrap(err, "geospatial: parse wkt")
	}
	p, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, eris.Errorf("geospatial: expected POINT, got %s", g.GeoJSONType())
	}
	return p, nil
}

// EncodePointEWKB converts p to EWKB bytes carrying srid.
func EncodePointEWKB(p orb.Point, srid int) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p[0], p[1]}).SetSRID(srid)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geospatial: encode EWKB")
	}
	return data, nil
}

// DecodePointEWKB parses EWKB point bytes, returning the point and its SRID.
func DecodePointEWKB(data []byte) (orb.Point, int, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return orb.Point{}, 0, eris.Wrap(err, "geospatial: decode EWKB")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return orb.Point{}, 0, eris.Errorf("geospatial: expected point geometry, got %T", g)
	}
	return orb.Point{pt.X(), pt.Y()}, pt.SRID(), nil
}
