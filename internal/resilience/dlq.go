package resilience

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// FailedTile records a tile whose acquisition gave up, so a later run can
// retry it without repartitioning the dataset.
type FailedTile struct {
	RunID     string    `json:"run_id"`
	TileID    int       `json:"tile_id"`
	Bound     orb.Bound `json:"bound"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
}

// NewFailedTile builds the record for a tile that failed with err.
func NewFailedTile(runID string, tileID int, bound orb.Bound, attempts int, err error) FailedTile {
	return FailedTile{
		RunID:     runID,
		TileID:    tileID,
		Bound:     bound,
		Error:     err.Error(),
		ErrorType: ClassifyError(err),
		Attempts:  attempts,
		FailedAt:  time.Now().UTC(),
	}
}

// ClassifyError categorizes an error as "transient" or "permanent". Exhausted
// retries are classified by the error of the last attempt.
func ClassifyError(err error) string {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		err = ex.Err
	}
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
