// Package signal classifies which lamp of a signal head is lit in a raw
// frame, and renders the annotated operator-feedback image.
package signal

// State is the classified lamp state.
type State int

const (
	StateUnknown State = iota
	StateRed
	StateYellow
	StateGreen
)

var stateNames = [...]string{"UNKNOWN", "RED", "YELLOW", "GREEN"}

// String returns the canonical state label.
func (s State) String() string {
	if s >= StateUnknown && s <= StateGreen {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// MarshalText renders the state as its label on the JSON surfaces.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// stateForIndex maps the fixed candidate ordering to labels: 0 red,
// 1 yellow, 2 green.
func stateForIndex(i int) State {
	switch i {
	case 0:
		return StateRed
	case 1:
		return StateYellow
	case 2:
		return StateGreen
	default:
		return StateUnknown
	}
}

// Result is the outcome of classifying one frame. The per-candidate mean
// luminance is kept for diagnostics and exposed on the state endpoints.
type Result struct {
	State State `json:"state"`
	// Luma holds the mean luminance sampled for red, yellow, green.
	Luma [3]float64 `json:"luma"`
	// Brightest is the winning candidate index, or -1 when nothing was
	// sampled (out-of-bounds region).
	Brightest int `json:"brightest"`
	// RegionValid is false when the master region fell outside the frame
	// and classification short-circuited.
	RegionValid bool `json:"region_valid"`
}
