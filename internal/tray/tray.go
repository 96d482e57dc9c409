// Package tray provides a system tray menu for the sign perception loop.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/logger"
)

func log() *zap.SugaredLogger { return logger.Named("tray") }

// Pusher accepts commands for the perception loop.
type Pusher interface {
	Push(cmd calibration.Command) bool
}

// Tray represents the system tray application. Menu clicks are turned into
// calibration commands; Present keeps the status items current.
type Tray struct {
	commands Pusher
	mu       sync.RWMutex
	running  bool
	closing  bool

	quit     func()
	quitOnce sync.Once

	action   string
	focal    int
	distance string

	// Menu items stored for later updates
	menuAction   *systray.MenuItem
	menuDistance *systray.MenuItem
	menuFocal    *systray.MenuItem
}

// New creates a Tray that pushes menu commands to commands.
func New(commands Pusher) *Tray {
	return &Tray{commands: commands, action: "None", quit: systray.Quit}
}

// Run starts the system tray application.
// This function blocks until Close is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Signpost")
	systray.SetTooltip("Signpost marker perception")

	t.mu.Lock()
	t.menuAction = systray.AddMenuItem(t.actionTitle(), "Current action")
	t.menuAction.Disable()
	t.menuDistance = systray.AddMenuItem(t.distanceTitle(), "Distance to the primary marker")
	t.menuDistance.Disable()
	t.menuFocal = systray.AddMenuItem(t.focalTitle(), "Focal length used for distance estimation")
	t.menuFocal.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuIncrease := systray.AddMenuItem("Increase focal (+)", "Increase focal length by one step")
	menuDecrease := systray.AddMenuItem("Decrease focal (-)", "Decrease focal length by one step")
	menuReset := systray.AddMenuItem("Reset focal", "Reset focal length to its initial value")
	menuGuidance := systray.AddMenuItem("Calibration guide", "Print calibration guidance")
	systray.AddSeparator()

	menuSnapshot := systray.AddMenuItem("Save processing steps", "Save the processing steps snapshot")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Signpost")

	// Handle menu item clicks in a separate goroutine
	clicks := make(chan calibration.Command)
	go func() {
		for {
			select {
			case <-menuIncrease.ClickedCh:
				clicks <- calibration.Increase
			case <-menuDecrease.ClickedCh:
				clicks <- calibration.Decrease
			case <-menuReset.ClickedCh:
				clicks <- calibration.Reset
			case <-menuGuidance.ClickedCh:
				clicks <- calibration.Guidance
			case <-menuSnapshot.ClickedCh:
				clicks <- calibration.Snapshot
			case <-menuQuit.ClickedCh:
				clicks <- calibration.Quit
			}
		}
	}()
	go t.serve(clicks)

	t.started()
}

// started marks the tray as running. A Close that arrived before the tray
// was ready is honoured here.
func (t *Tray) started() {
	t.mu.Lock()
	t.running = true
	closing := t.closing
	t.mu.Unlock()

	if closing {
		t.stop()
	}
}

func (t *Tray) stop() {
	t.quitOnce.Do(t.quit)
}

func (t *Tray) onExit() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// serve forwards menu commands until a Quit has been queued. A Quit that
// finds the queue full leaves the menu live so it can be clicked again.
func (t *Tray) serve(clicks <-chan calibration.Command) {
	for cmd := range clicks {
		if t.handle(cmd) && cmd == calibration.Quit {
			return
		}
	}
}

// handle forwards a menu command to the loop.
func (t *Tray) handle(cmd calibration.Command) bool {
	if t.commands == nil {
		return false
	}
	if !t.commands.Push(cmd) {
		log().Warnw("Command queue full, dropping menu command", "command", cmd.String())
		return false
	}
	return true
}

// Present updates the status items from the latest frame report.
func (t *Tray) Present(v display.View) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.action = v.Report.Action
	t.distance = v.Report.Distance
	t.focal = v.Report.Focal

	if t.menuAction != nil {
		t.menuAction.SetTitle(t.actionTitle())
		t.menuDistance.SetTitle(t.distanceTitle())
		t.menuFocal.SetTitle(t.focalTitle())
	}
	return nil
}

func (t *Tray) actionTitle() string { return "Action: " + t.action }

func (t *Tray) distanceTitle() string {
	if t.distance == "" {
		return "Distance: —"
	}
	return "Distance: " + t.distance
}

func (t *Tray) focalTitle() string { return fmt.Sprintf("Focal: %d", t.focal) }

// Status returns the last presented action, distance and focal length.
func (t *Tray) Status() (action, distance string, focal int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.action, t.distance, t.focal
}

// Close quits the tray. When the tray is not ready yet, it quits as soon
// as the menu has been built.
func (t *Tray) Close() error {
	t.mu.Lock()
	t.closing = true
	running := t.running
	t.mu.Unlock()

	if running {
		t.stop()
	}
	return nil
}
