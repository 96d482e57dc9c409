// Package calibration owns the focal-length parameter of the distance model
// and the operator commands that tune it against a marker placed at a known
// distance.
package calibration

import (
	"fmt"
	"strings"
	"time"
)

// Focal-length defaults.
const (
	DefaultFocal = 1000
	DefaultStep  = 10
	DefaultMin   = 100
)

// Confirmation holds shown after a focal change.
const (
	AdjustHold = 500 * time.Millisecond
	ResetHold  = 800 * time.Millisecond
)

// Command is a discrete operator request.
type Command int

const (
	// None means no command was issued this frame.
	None Command = iota
	Increase
	Decrease
	Reset
	Guidance
	Snapshot
	Quit
)

var commandNames = map[Command]string{
	None:     "none",
	Increase: "increase",
	Decrease: "decrease",
	Reset:    "reset",
	Guidance: "guidance",
	Snapshot: "snapshot",
	Quit:     "quit",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "none"
}

// ParseCommand maps a command name to a Command. Unrecognised names map to
// None with ok set to false.
func ParseCommand(name string) (Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range commandNames {
		if n == name && c != None {
			return c, true
		}
	}
	return None, false
}

// Settings bounds the focal length.
type Settings struct {
	Initial int
	Step    int
	Min     int
}

// DefaultSettings returns initial 1000, step 10, floor 100.
func DefaultSettings() Settings {
	return Settings{Initial: DefaultFocal, Step: DefaultStep, Min: DefaultMin}
}

// Outcome describes the effect of one command. Hold is how long the
// confirmation Message should stay visible; applying it is left to the
// caller so the transition itself never sleeps.
type Outcome struct {
	Command Command
	Focal   int
	Delta   int
	Changed bool
	Message string
	Hold    time.Duration
	Quit    bool
}

// Controller is the single writer of the focal length. It is not safe for
// concurrent use; the frame loop owns it.
type Controller struct {
	settings Settings
	focal    int
}

// NewController returns a Controller at settings.Initial.
func NewController(settings Settings) *Controller {
	return &Controller{settings: settings, focal: settings.Initial}
}

// Focal returns the current focal length.
func (c *Controller) Focal() int {
	return c.focal
}

// Settings returns the controller's bounds.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Apply performs cmd and reports what happened.
func (c *Controller) Apply(cmd Command) Outcome {
	out := Outcome{Command: cmd}

	switch cmd {
	case Increase:
		c.focal += c.settings.Step
		out.Delta = c.settings.Step
		out.Changed = true
		out.Message = fmt.Sprintf("FOCAL LENGTH: %d (+%d)", c.focal, c.settings.Step)
		out.Hold = AdjustHold
	case Decrease:
		prev := c.focal
		c.focal = max(c.settings.Min, c.focal-c.settings.Step)
		out.Delta = c.focal - prev
		out.Changed = out.Delta != 0
		out.Message = fmt.Sprintf("FOCAL LENGTH: %d (-%d)", c.focal, c.settings.Step)
		out.Hold = AdjustHold
	case Reset:
		out.Delta = c.settings.Initial - c.focal
		c.focal = c.settings.Initial
		out.Changed = out.Delta != 0
		out.Message = fmt.Sprintf("FOCAL LENGTH RESET: %d", c.focal)
		out.Hold = ResetHold
	case Guidance:
		out.Message = strings.Join(GuidanceLines(c.settings.Initial), "\n")
	case Snapshot:
		out.Message = "snapshot requested"
	case Quit:
		out.Quit = true
	default:
		out.Command = None
	}

	out.Focal = c.focal
	return out
}

// Adjusts reports whether cmd touches the focal length.
func (c Command) Adjusts() bool {
	return c == Increase || c == Decrease || c == Reset
}
