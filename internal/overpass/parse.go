package overpass

import (
	"io"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

// LatLon is a coordinate as Overpass serializes it.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is one entry of an Overpass JSON response.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Center   *LatLon           `json:"center,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// Response is an Overpass JSON response.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Remark    string    `json:"remark,omitempty"`
	Elements  []Element `json:"elements"`
}

// ParseStats counts elements dropped while converting a response.
type ParseStats struct {
	Elements  int
	Untagged  int
	Malformed int
	Unknown   int
}

// DecodeResponse reads an Overpass response. Undecodable payloads, payloads
// without an elements member and server-side runtime errors are reported as
// transient so the caller retries them.
func DecodeResponse(r io.Reader) (*Response, error) {
	type envelope struct {
		Response
		Elements *[]Element `json:"elements"`
	}

	env, err := fetcher.DecodeJSONObject[envelope](r)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "overpass: decode response"), 0)
	}
	if env.Elements == nil {
		return nil, resilience.NewTransientError(eris.New("overpass: response has no elements"), 0)
	}
	if strings.Contains(env.Remark, "runtime error") {
		return nil, resilience.NewTransientError(eris.Errorf("overpass: %s", env.Remark), 0)
	}

	resp := env.Response
	resp.Elements = *env.Elements
	return &resp, nil
}

// Features converts the response elements to candidate features. Elements
// without tags or without a usable coordinate are dropped.
func (r *Response) Features() (model.FeatureTable, ParseStats) {
	stats := ParseStats{Elements: len(r.Elements)}
	table := make(model.FeatureTable, 0, len(r.Elements))

	for _, el := range r.Elements {
		f, reason := el.feature()
		switch reason {
		case "":
			table = append(table, f)
		case "untagged":
			stats.Untagged++
		case "malformed":
			stats.Malformed++
		default:
			stats.Unknown++
		}
	}

	if stats.Malformed > 0 || stats.Unknown > 0 {
		zap.L().Debug("overpass: dropped elements",
			zap.Int("malformed", stats.Malformed),
			zap.Int("unknown_type", stats.Unknown),
			zap.Int("untagged", stats.Untagged),
		)
	}
	return table, stats
}

func (el Element) feature() (model.CandidateFeature, string) {
	var id osm.FeatureID
	kind := model.KindArea
	switch osm.Type(el.Type) {
	case osm.TypeNode:
		id = osm.NodeID(el.ID).FeatureID()
		kind = model.KindPoint
	case osm.TypeWay:
		id = osm.WayID(el.ID).FeatureID()
	case osm.TypeRelation:
		id = osm.RelationID(el.ID).FeatureID()
	default:
		return model.CandidateFeature{}, "unknown"
	}

	loc, ok := el.location()
	if !ok {
		return model.CandidateFeature{}, "malformed"
	}
	if len(el.Tags) == 0 {
		return model.CandidateFeature{}, "untagged"
	}

	tags := make(osm.Tags, 0, len(el.Tags))
	for k, v := range el.Tags {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })

	return model.CandidateFeature{
		ID:       id,
		Kind:     kind,
		Names:    model.NamesFromTags(tags),
		Tags:     tags,
		Location: loc,
	}, ""
}

// location returns the representative coordinate: the node position, the
// server-computed center, or the mean of an inline geometry with at least
// two vertices.
func (el Element) location() (orb.Point, bool) {
	if el.Type == string(osm.TypeNode) {
		if el.Lat == nil || el.Lon == nil {
			return orb.Point{}, false
		}
		return orb.Point{*el.Lon, *el.Lat}, true
	}

	if el.Center != nil {
		return orb.Point{el.Center.Lon, el.Center.Lat}, true
	}
	if len(el.Geometry) < 2 {
		return orb.Point{}, false
	}

	var sx, sy float64
	for _, p := range el.Geometry {
		sx += p.Lon
		sy += p.Lat
	}
	n := float64(len(el.Geometry))
	return orb.Point{sx / n, sy / n}, true
}
