package app

import (
	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/capture"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/plugin"
	"github.com/ayusman/signpost/internal/sign"
	"github.com/ayusman/signpost/internal/store"
)

// processFrame runs one iteration of the loop:
//
//  1. Read a frame (failure is fatal)
//  2. Preprocess and detect markers on the enhanced image
//  3. Step the decision pipeline with the current focal length and dwell state
//  4. Annotate, compose the processing steps and present to every sink
//  5. Journal and dispatch hooks for action changes and STOP confirmation
//  6. Poll one operator command and apply it
func (a *App) processFrame() (quit bool, err error) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "read frame"), capture.ErrCapture)
	}
	defer frame.Close()
	a.frames++

	stages := a.pre.Process(frame)
	defer stages.Close()

	var markers []detector.Marker
	if stages != nil {
		markers, err = a.config.Detector.Detect(&stages.Enhanced)
		if err != nil {
			log().Warnw("Detection failed", "error", err)
			markers = nil
		}
	}

	now := a.clock.Now()
	prev := a.dwell
	report, next := pipeline.Step(a.config.Pipeline, prev, markers, a.focal.Focal(), now)
	if !a.lastFrame.IsZero() {
		if dt := now.Sub(a.lastFrame).Seconds(); dt > 0 {
			report.FPS = 1 / dt
		}
	}
	a.lastFrame = now
	a.dwell = next

	annotated := display.Annotate(frame, report)
	defer annotated.Close()

	steps := display.ComposeSteps(stages, frame.Cols(), frame.Rows())
	a.steps.Close()
	a.steps = steps

	a.present(display.View{Report: report, Annotated: &annotated, Steps: &a.steps})
	a.record(prev, report)

	return a.dispatch(a.pollCommand()), nil
}

func (a *App) present(v display.View) {
	for _, s := range a.config.Sinks {
		if err := s.Present(v); err != nil {
			log().Warnw("Failed to present frame", "error", err)
		}
	}
}

// record journals action changes and STOP confirmation and hands them to
// the hooks. A pending STOP counts as STOP for change detection; STOP hooks
// only fire once it is confirmed.
func (a *App) record(prev dwell.State, r pipeline.Report) {
	primary, _ := r.PrimaryOverlay()

	action := r.ResolvedAction()
	if action != a.lastAction {
		a.lastAction = action
		if action != "" {
			log().Debugw("Action changed", "action", action.String(), "marker", primary.ID, "distance_cm", primary.DistanceCm)
			a.journal(store.EventAction, action, primary, "")
			if action != sign.Stop {
				a.hook(store.EventAction, action, primary)
			}
		}
	}

	if prev.Phase != dwell.Confirmed && r.Dwell.Phase == dwell.Confirmed {
		log().Infow("STOP confirmed", "marker", primary.ID, "distance_cm", primary.DistanceCm, "dwell", r.Dwell.Elapsed)
		a.journal(store.EventStopConfirmed, sign.Stop, primary, r.Dwell.Elapsed.String())
		a.hook(store.EventStopConfirmed, sign.Stop, primary)
	}
}

func (a *App) journal(kind store.EventKind, action sign.Action, o pipeline.Overlay, detail string) {
	if a.session == "" {
		return
	}
	id, cm := o.ID, o.DistanceCm
	e := &store.Event{
		SessionID:  a.session,
		Kind:       kind,
		MarkerID:   &id,
		Action:     action.String(),
		DistanceCm: &cm,
		Focal:      a.focal.Focal(),
		Detail:     detail,
	}
	if err := a.config.Store.Events().Create(e); err != nil {
		log().Warnw("Failed to journal event", "kind", kind, "error", err)
	}
}

func (a *App) journalCommand(kind store.EventKind, detail string) {
	if a.session == "" {
		return
	}
	e := &store.Event{SessionID: a.session, Kind: kind, Focal: a.focal.Focal(), Detail: detail}
	if err := a.config.Store.Events().Create(e); err != nil {
		log().Warnw("Failed to journal event", "kind", kind, "error", err)
	}
}

func (a *App) hook(kind store.EventKind, action sign.Action, o pipeline.Overlay) {
	if a.config.Hooks == nil {
		return
	}
	a.config.Hooks.Dispatch(plugin.Request{
		Action:     action.String(),
		Event:      string(kind),
		MarkerID:   o.ID,
		DistanceCm: o.DistanceCm,
		Focal:      a.focal.Focal(),
		SessionID:  a.session,
	})
}

// pollCommand returns at most one command per frame, keyboard first.
func (a *App) pollCommand() calibration.Command {
	if a.config.Console != nil {
		key := a.config.Console.PollKey()
		if key >= 0 && key&0xFF != 0xFF {
			log().Debugw("Key pressed", "key", key)
		}
		if cmd := calibration.CommandForKey(key); cmd != calibration.None {
			return cmd
		}
	}
	if a.config.Commands != nil {
		return a.config.Commands.Poll()
	}
	return calibration.None
}

// dispatch applies cmd and reports whether the loop should stop.
func (a *App) dispatch(cmd calibration.Command) bool {
	if cmd == calibration.None {
		return false
	}

	out := a.focal.Apply(cmd)
	log().Infow("Command", "command", cmd.String(), "focal", out.Focal)

	switch {
	case out.Quit:
		return true
	case cmd.Adjusts():
		a.journalCommand(store.EventCalibration, out.Message)
		a.confirm(out)
	case cmd == calibration.Guidance:
		PrintGuidance(a.focal.Settings().Initial)
	case cmd == calibration.Snapshot:
		a.snapshot()
	}
	return false
}

// confirm shows a focal change for its hold time. Without a console the
// loop just pauses for the same duration.
func (a *App) confirm(out calibration.Outcome) {
	if a.config.Console != nil {
		a.config.Console.Confirm(out)
		return
	}
	a.clock.Sleep(out.Hold)
}

func (a *App) snapshot() {
	path := a.config.SnapshotPath
	if err := display.SaveSnapshot(path, a.steps); err != nil {
		log().Warnw("Failed to save processing steps", "path", path, "error", err)
		return
	}
	log().Infow("Saved processing steps", "path", path)
	a.journalCommand(store.EventSnapshot, path)
}

// PrintGuidance writes the focal calibration instructions to the terminal.
func PrintGuidance(resetFocal int) {
	pterm.DefaultHeader.WithFullWidth().Println(calibration.GuidanceTitle)
	for _, line := range calibration.GuidanceLines(resetFocal) {
		pterm.Println(pterm.LightCyan(line))
	}
	pterm.Println()
}
