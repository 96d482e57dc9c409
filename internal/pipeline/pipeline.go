// Package pipeline composes the per-frame decision steps: distance
// estimation, range filtering, action resolution and STOP dwell timing.
// Step is a pure function; all cross-frame state is passed in and returned.
package pipeline

import (
	"fmt"
	"time"

	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/sign"
)

// Display sentinels.
const (
	NoAction    = "None"
	NoDistance  = "—"
	StopPending = "STOP (WAITING...)"
)

// Config holds the fixed parameters of the decision pipeline.
type Config struct {
	Estimator sign.Estimator
	Range     sign.Range
	Dwell     dwell.Machine
}

// DefaultConfig returns a 9 cm tag, a [10, 200] cm range and a 3 s dwell.
func DefaultConfig() Config {
	return Config{
		Estimator: sign.NewEstimator(sign.DefaultTagWidthCm),
		Range:     sign.DefaultRange(),
		Dwell:     dwell.New(dwell.DefaultThreshold),
	}
}

// Overlay is the per-marker annotation data. Action is empty for filtered
// markers.
type Overlay struct {
	ID         int               `json:"id"`
	Corners    [4]detector.Point `json:"corners"`
	Center     detector.Point    `json:"center"`
	DistanceCm float64           `json:"distance_cm"`
	Accepted   bool              `json:"accepted"`
	Action     sign.Action       `json:"action,omitempty"`
	Primary    bool              `json:"primary"`
}

// Dwell is the reported STOP dwell state.
type Dwell struct {
	Phase   dwell.Phase   `json:"phase"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Report is everything a presentation sink needs for one frame.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	FPS       float64   `json:"fps"`
	// Action is the resolved action label, the pending STOP variant, or "None".
	Action string `json:"action"`
	// Distance is the primary marker's distance, e.g. "100.0cm", or "—".
	Distance string `json:"distance"`
	// Detected counts raw detections, including skipped and filtered ones.
	Detected int       `json:"detected"`
	Focal    int       `json:"focal"`
	Dwell    Dwell     `json:"dwell"`
	Overlays []Overlay `json:"overlays"`

	// Primary is the index into Overlays of the marker that drove the
	// action, or -1.
	Primary int `json:"primary"`
}

// PrimaryOverlay returns the overlay that drove the frame's action.
func (r Report) PrimaryOverlay() (Overlay, bool) {
	if r.Primary < 0 || r.Primary >= len(r.Overlays) {
		return Overlay{}, false
	}
	return r.Overlays[r.Primary], true
}

// ResolvedAction returns the primary marker's action, or "" when no marker
// was accepted. Unlike Action it never carries the pending STOP label.
func (r Report) ResolvedAction() sign.Action {
	if o, ok := r.PrimaryOverlay(); ok {
		return o.Action
	}
	return ""
}

// Step processes one frame's detections.
//
// Markers with zero pixel size are skipped outright. Every other marker gets
// a distance estimate and an overlay. Among accepted markers the nearest one
// (lower id on a tie) is the primary: it alone decides the frame's action,
// distance label and whether STOP was observed. The returned dwell state
// must be passed to the next call.
func Step(cfg Config, state dwell.State, markers []detector.Marker, focal int, now time.Time) (Report, dwell.State) {
	r := Report{
		Timestamp: now,
		Action:    NoAction,
		Distance:  NoDistance,
		Detected:  len(markers),
		Focal:     focal,
		Overlays:  make([]Overlay, 0, len(markers)),
		Primary:   -1,
	}

	for _, m := range markers {
		cm, ok := cfg.Estimator.Distance(m.PixelSize(), focal)
		if !ok {
			continue
		}

		o := Overlay{
			ID:         m.ID,
			Corners:    m.Corners,
			Center:     m.Center(),
			DistanceCm: cm,
			Accepted:   cfg.Range.Contains(cm),
		}
		if o.Accepted {
			o.Action = sign.Resolve(m.ID)
			if r.Primary < 0 || nearer(o, r.Overlays[r.Primary]) {
				r.Primary = len(r.Overlays)
			}
		}
		r.Overlays = append(r.Overlays, o)
	}

	primary, hasPrimary := r.PrimaryOverlay()
	if hasPrimary {
		r.Overlays[r.Primary].Primary = true
	}
	stop := hasPrimary && primary.Action == sign.Stop

	next := cfg.Dwell.Step(state, stop, now)
	r.Dwell = Dwell{Phase: next.Phase, Elapsed: next.Elapsed(now)}

	if hasPrimary {
		r.Action = primary.Action.String()
		r.Distance = FormatDistance(primary.DistanceCm)
		if stop && next.Phase == dwell.Dwelling {
			r.Action = StopPending
		}
	}

	return r, next
}

// nearer reports whether a should win over b as the primary marker.
func nearer(a, b Overlay) bool {
	if a.DistanceCm != b.DistanceCm {
		return a.DistanceCm < b.DistanceCm
	}
	return a.ID < b.ID
}

// FormatDistance renders a distance label with one decimal.
func FormatDistance(cm float64) string {
	return fmt.Sprintf("%.1fcm", cm)
}
