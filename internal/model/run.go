package model

import "time"

// RunStatus represents the current state of an interlinking run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusPartitioned RunStatus = "partitioned"
	RunStatusAcquiring   RunStatus = "acquiring"
	RunStatusMatching    RunStatus = "matching"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run records one evaluation of a dataset against OSM.
type Run struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Status      RunStatus `json:"status"`
	POIs        int       `json:"pois"`
	Tiles       int       `json:"tiles"`
	FailedTiles int       `json:"failed_tiles"`
	Features    int       `json:"features"`
	Matched     int       `json:"matched"`
	Unmatched   int       `json:"unmatched"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
