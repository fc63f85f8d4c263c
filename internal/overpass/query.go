// Package overpass acquires OSM features for a set of tiles from an Overpass
// API endpoint.
package overpass

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// QueryOptions controls the category filter of a tile query.
type QueryOptions struct {
	// Keys is the allow-list of tag keys a feature must carry at least one of.
	Keys []string
	// WayExcludedKeys are dropped from the allow-list for way statements.
	WayExcludedKeys []string
	// Exclusions are key=value pairs a feature must not carry.
	Exclusions []string
}

// DefaultQueryOptions returns the category filter used for POI acquisition.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Keys:            []string{"amenity", "shop", "building", "leisure", "sport", "historic", "tourism", "man_made"},
		WayExcludedKeys: []string{"building"},
		Exclusions:      []string{"access=private", "amenity=bench"},
	}
}

// BuildQuery renders the Overpass QL query for one WGS84 tile. A timeout of
// zero or less leaves the server default in place.
func BuildQuery(b orb.Bound, timeoutSecs int, opts QueryOptions) string {
	var sb strings.Builder

	sb.WriteString("[out:json]")
	if timeoutSecs > 0 {
		fmt.Fprintf(&sb, "[timeout:%d]", timeoutSecs)
	}
	fmt.Fprintf(&sb, "[bbox:%s,%s,%s,%s];(",
		coord(b.Min[1]), coord(b.Min[0]), coord(b.Max[1]), coord(b.Max[0]))

	exclusions := exclusionFilters(opts.Exclusions)
	wayKeys := slices.DeleteFunc(slices.Clone(opts.Keys), func(k string) bool {
		return slices.Contains(opts.WayExcludedKeys, k)
	})

	for _, stmt := range []struct {
		kind string
		keys []string
	}{
		{"node", opts.Keys},
		{"way", wayKeys},
		{"relation", opts.Keys},
	} {
		if len(stmt.keys) == 0 {
			continue
		}
		sb.WriteString(stmt.kind)
		sb.WriteString(exclusions)
		fmt.Fprintf(&sb, `[~"^(%s)$"~"."];`, strings.Join(stmt.keys, "|"))
	}

	sb.WriteString(");out center;")
	return sb.String()
}

func exclusionFilters(pairs []string) string {
	var sb strings.Builder
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		fmt.Fprintf(&sb, `[%q!=%q]`, k, v)
	}
	return sb.String()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
