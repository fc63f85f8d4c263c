package model

import "github.com/paulmach/orb"

// Tile is one acquisition unit: a buffered WGS84 bounding box around a
// cluster of source POIs.
type Tile struct {
	ID       int       `json:"id"`
	Bound    orb.Bound `json:"bound"`
	Members  int       `json:"members"`
	Attempts int       `json:"attempts,omitempty"`
}

// Area returns the tile area in square degrees.
func (t Tile) Area() float64 {
	return (t.Bound.Max[0] - t.Bound.Min[0]) * (t.Bound.Max[1] - t.Bound.Min[1])
}
