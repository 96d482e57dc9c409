// Package dwell implements the STOP dwell-time state machine: a STOP sign
// must be seen continuously for a minimum time before it is confirmed.
package dwell

import (
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultThreshold is the continuous STOP time required for confirmation.
const DefaultThreshold = 3 * time.Second

// Phase is the state machine's discrete state.
type Phase int

const (
	// Idle means no STOP is currently observed.
	Idle Phase = iota
	// Dwelling means STOP is observed but not yet for Threshold.
	Dwelling
	// Confirmed means STOP has been observed for at least Threshold.
	Confirmed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dwelling:
		return "dwelling"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Idle, Dwelling, Confirmed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return errors.Newf("unknown dwell phase %q", text)
}

// State is the value carried from one frame to the next. Since is the
// instant the current STOP streak began and is zero while Idle.
type State struct {
	Phase Phase
	Since time.Time
}

// Elapsed returns how long the current STOP streak has lasted at now.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.Phase == Idle || s.Since.IsZero() {
		return 0
	}
	return now.Sub(s.Since)
}

// Machine holds the transition rules.
type Machine struct {
	Threshold time.Duration
}

// New returns a Machine with the given confirmation threshold.
func New(threshold time.Duration) Machine {
	return Machine{Threshold: threshold}
}

// Step returns the state following s given whether the current frame's
// resolved action is STOP. Any non-STOP frame resets to Idle; there is no
// grace period and no memory of a previous partial streak.
func (m Machine) Step(s State, stop bool, now time.Time) State {
	if !stop {
		return State{Phase: Idle}
	}

	switch s.Phase {
	case Confirmed:
		return s
	case Dwelling:
		if now.Sub(s.Since) >= m.Threshold {
			return State{Phase: Confirmed, Since: s.Since}
		}
		return s
	default:
		next := State{Phase: Dwelling, Since: now}
		if m.Threshold <= 0 {
			next.Phase = Confirmed
		}
		return next
	}
}
