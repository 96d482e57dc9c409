// Package plugin discovers and runs action hooks: external executables that
// are handed a JSON request on stdin whenever the perception loop commits to
// an action, and answer with a JSON response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// AllActions in a manifest's action list subscribes a hook to every action.
const AllActions = "*"

// Manifest describes a hook's metadata and the actions it handles.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Actions lists action labels such as "STOP" or "TURN LEFT", or "*".
	Actions []string `json:"actions"`
	// Config is passed through to the hook on every request.
	Config json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the hook subscribes to action.
func (m Manifest) Handles(action string) bool {
	return slices.Contains(m.Actions, AllActions) || slices.Contains(m.Actions, action)
}

// Request is sent to a hook when an action is committed.
type Request struct {
	// Action is the resolved action label.
	Action string `json:"action"`
	// Event is the journal event kind that triggered the hook.
	Event      string          `json:"event"`
	MarkerID   int             `json:"marker_id"`
	DistanceCm float64         `json:"distance_cm"`
	Focal      int             `json:"focal"`
	SessionID  string          `json:"session_id,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a hook execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered hook with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
