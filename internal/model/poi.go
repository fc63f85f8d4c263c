package model

import (
	"strings"

	"github.com/paulmach/orb"
)

// Category is the three-level classification attached to a source POI.
type Category struct {
	Theme    string `json:"theme"`
	Class    string `json:"class_name"`
	Subclass string `json:"subclass_n"`
}

// Tokens returns the category levels in order. Empty levels are kept so that
// positions stay stable for callers that index into the slice.
func (c Category) Tokens() []string {
	return []string{c.Theme, c.Class, c.Subclass}
}

// String joins the non-empty category levels with "|".
func (c Category) String() string {
	parts := make([]string, 0, 3)
	for _, p := range c.Tokens() {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "|")
}

// SourcePOI is one record of the primary dataset. It is not modified once
// its derived coordinates are filled in.
type SourcePOI struct {
	Row      int       `json:"row"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Location orb.Point `json:"location"` // source CRS
	CRS      int       `json:"crs"`

	Geographic orb.Point `json:"geographic"` // WGS84
	Projected  orb.Point `json:"projected"`  // target CRS
}
