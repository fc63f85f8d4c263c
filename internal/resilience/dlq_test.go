package resilience

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
		{"exhausted transient", &ExhaustedError{Attempts: 5, Err: NewTransientError(errors.New("504"), 504)}, "transient"},
		{"exhausted permanent", &ExhaustedError{Attempts: 5, Err: errors.New("http 400")}, "permanent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFailedTile(t *testing.T) {
	b := orb.Bound{Min: orb.Point{23.7, 37.9}, Max: orb.Point{23.8, 38.0}}
	err := &ExhaustedError{Attempts: 5, Err: NewTransientError(errors.New("http 504"), 504)}

	ft := NewFailedTile("run-1", 7, b, 5, err)
	if ft.RunID != "run-1" || ft.TileID != 7 {
		t.Errorf("unexpected identity %q/%d", ft.RunID, ft.TileID)
	}
	if ft.Bound != b {
		t.Errorf("Bound = %v, want %v", ft.Bound, b)
	}
	if ft.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", ft.Attempts)
	}
	if ft.ErrorType != "transient" {
		t.Errorf("ErrorType = %q, want transient", ft.ErrorType)
	}
	if ft.Error != err.Error() {
		t.Errorf("Error = %q", ft.Error)
	}
	if ft.FailedAt.IsZero() {
		t.Error("FailedAt not set")
	}
}
