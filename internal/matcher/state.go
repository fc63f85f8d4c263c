package matcher

// State is the matching progress of one source POI.
type State int

const (
	StateNew State = iota
	StateCandidatesFetched
	StateScored
	StateMatched
	StateUnmatched
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateCandidatesFetched:
		return "candidates_fetched"
	case StateScored:
		return "scored"
	case StateMatched:
		return "matched"
	case StateUnmatched:
		return "unmatched"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateUnmatched
}

// CanTransition reports whether to directly follows s.
func (s State) CanTransition(to State) bool {
	switch s {
	case StateNew:
		return to == StateCandidatesFetched
	case StateCandidatesFetched:
		return to == StateScored
	case StateScored:
		return to == StateMatched || to == StateUnmatched
	default:
		return false
	}
}
