package sign

import "fmt"

// Default trusted operating range.
const (
	DefaultMinCm = 10.0
	DefaultMaxCm = 200.0
)

// Range is the closed interval of distances for which detections are
// trusted. Markers outside it are still drawn but never drive actions.
type Range struct {
	MinCm float64 `json:"min_cm"`
	MaxCm float64 `json:"max_cm"`
}

// DefaultRange returns [10, 200] cm.
func DefaultRange() Range {
	return Range{MinCm: DefaultMinCm, MaxCm: DefaultMaxCm}
}

// Contains reports whether cm lies inside the range, bounds included.
func (r Range) Contains(cm float64) bool {
	return cm >= r.MinCm && cm <= r.MaxCm
}

// Valid reports whether the range is non-empty and non-negative.
func (r Range) Valid() bool {
	return r.MinCm >= 0 && r.MinCm <= r.MaxCm
}

func (r Range) String() string {
	return fmt.Sprintf("[%.1f, %.1f] cm", r.MinCm, r.MaxCm)
}
