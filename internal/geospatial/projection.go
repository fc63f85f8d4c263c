package geospatial

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"

	"github.com/sells-group/poi-interlink/internal/model"
)

// EPSG codes with a dedicated fast path.
const (
	WGS84       = 4326
	WebMercator = 3857
	GreekGrid   = 2100
)

const maxMercatorLat = 85.05112878

// Projector converts point coordinates between coordinate reference systems.
type Projector interface {
	Project(p orb.Point, from, to int) (orb.Point, error)
}

// EPSGProjector projects between any two EPSG codes known to PROJ. The
// EPSG:4326 <-> EPSG:3857 pair is computed in Go without PROJ. The zero value
// is ready to use and safe for concurrent callers; Close releases the cached
// transformations.
type EPSGProjector struct {
	mu  sync.Mutex
	pjs map[[2]int]*proj.PJ
}

// NewEPSGProjector returns an empty projector.
func NewEPSGProjector() *EPSGProjector {
	return &EPSGProjector{}
}

// Project converts p from the from CRS to the to CRS.
func (e *EPSGProjector) Project(p orb.Point, from, to int) (orb.Point, error) {
	if from == to {
		return p, nil
	}
	if isMercatorPair(from, to) {
		return projectMercator(p, to)
	}

	pj, err := e.transform(from, to)
	if err != nil {
		return orb.Point{}, err
	}
	c, err := pj.Forward(proj.NewCoord(p[0], p[1], 0, 0))
	if err != nil {
		return orb.Point{}, eris.Wrapf(err, "geospatial: project EPSG:%d -> EPSG:%d", from, to)
	}
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
		return orb.Point{}, eris.Errorf("geospatial: point %v outside the domain of EPSG:%d -> EPSG:%d", p, from, to)
	}
	return orb.Point{c[0], c[1]}, nil
}

// Check reports whether from -> to can be projected, without converting a point.
func (e *EPSGProjector) Check(from, to int) error {
	if from == to || isMercatorPair(from, to) {
		return nil
	}
	_, err := e.transform(from, to)
	return err
}

// Close destroys the cached transformations.
func (e *EPSGProjector) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, pj := range e.pjs {
		pj.Destroy()
		delete(e.pjs, k)
	}
}

func (e *EPSGProjector) transform(from, to int) (*proj.PJ, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := [2]int{from, to}
	if pj, ok := e.pjs[key]; ok {
		return pj, nil
	}

	raw, err := proj.NewCRSToCRS(epsg(from), epsg(to), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geospatial: unsupported crs pair EPSG:%d -> EPSG:%d", from, to)
	}
	// Geographic CRSs are lat/lon in the EPSG registry; keep lon/lat like orb.
	pj, err := raw.NormalizeForVisualization()
	raw.Destroy()
	if err != nil {
		return nil, eris.Wrapf(err, "geospatial: normalize EPSG:%d -> EPSG:%d", from, to)
	}

	if e.pjs == nil {
		e.pjs = make(map[[2]int]*proj.PJ)
	}
	e.pjs[key] = pj
	return pj, nil
}

func epsg(code int) string {
	return fmt.Sprintf("EPSG:%d", code)
}

func isMercatorPair(from, to int) bool {
	return (from == WGS84 && to == WebMercator) || (from == WebMercator && to == WGS84)
}

func projectMercator(p orb.Point, to int) (orb.Point, error) {
	if to == WGS84 {
		return project.Mercator.ToWGS84(p), nil
	}
	if p[1] > maxMercatorLat || p[1] < -maxMercatorLat {
		return orb.Point{}, eris.Errorf("geospatial: latitude %.6f outside web mercator range", p[1])
	}
	return project.WGS84.ToMercator(p), nil
}

// ProjectAll projects every point, failing on the first point that cannot be converted.
func ProjectAll(projector Projector, points []orb.Point, from, to int) ([]orb.Point, error) {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		q, err := projector.Project(p, from, to)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: project point %d", i)
		}
		out[i] = q
	}
	return out, nil
}

// ProjectPOIs returns copies of pois with their WGS84 and target coordinates
// filled in.
func ProjectPOIs(projector Projector, pois []model.SourcePOI, target int) ([]model.SourcePOI, error) {
	out := make([]model.SourcePOI, len(pois))
	for i, poi := range pois {
		geo, err := projector.Project(poi.Location, poi.CRS, WGS84)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: project poi %s", poi.ID)
		}
		prj, err := projector.Project(poi.Location, poi.CRS, target)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: project poi %s", poi.ID)
		}
		poi.Geographic = geo
		poi.Projected = prj
		out[i] = poi
	}
	return out, nil
}

// ProjectFeatures returns a copy of table with every feature's target
// coordinate filled in from its WGS84 location.
func ProjectFeatures(projector Projector, table model.FeatureTable, target int) (model.FeatureTable, error) {
	out := make(model.FeatureTable, len(table))
	for i, f := range table {
		p, err := projector.Project(f.Location, WGS84, target)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: project feature %s", f.ID)
		}
		f.Projected = p
		out[i] = f
	}
	return out, nil
}
