// Package display renders perception reports onto camera frames and shows
// them in desktop windows.
package display

import (
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/pipeline"
)

// Window titles.
const (
	DetectionTitle = "AprilTag 36h11 Detection"
	StepsTitle     = "Image Processing Steps"
)

// View is one rendered frame handed to presentation sinks. Annotated and
// Steps are owned by the caller and only valid during Present.
type View struct {
	Report    pipeline.Report
	Annotated *gocv.Mat
	Steps     *gocv.Mat
}

// Window shows the annotated detection view and the processing steps in two
// desktop windows and reads keys from them. All methods must be called
// from the goroutine that created it.
type Window struct {
	detection *gocv.Window
	steps     *gocv.Window

	mu   sync.Mutex
	last gocv.Mat
}

// NewWindow opens both windows.
func NewWindow() *Window {
	return &Window{
		detection: gocv.NewWindow(DetectionTitle),
		steps:     gocv.NewWindow(StepsTitle),
		last:      gocv.NewMat(),
	}
}

// Present shows the view and keeps a copy of the annotated frame for
// confirmation banners.
func (w *Window) Present(v View) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v.Annotated != nil && !v.Annotated.Empty() {
		v.Annotated.CopyTo(&w.last)
		w.detection.IMShow(*v.Annotated)
	}
	if v.Steps != nil && !v.Steps.Empty() {
		w.steps.IMShow(*v.Steps)
	}
	return nil
}

// PollKey waits 1ms for a key press and returns its code, or -1.
func (w *Window) PollKey() int {
	return w.detection.WaitKey(1)
}

// Confirm draws the outcome's message over the last frame and keeps it on
// screen for the outcome's hold. Keys pressed meanwhile are discarded.
func (w *Window) Confirm(o calibration.Outcome) {
	w.mu.Lock()
	if !w.last.Empty() {
		DrawConfirmation(&w.last, o)
		w.detection.IMShow(w.last)
	}
	w.mu.Unlock()

	w.detection.WaitKey(int(max(o.Hold, time.Millisecond) / time.Millisecond))
}

// Close destroys both windows.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.last.Close()
	if err := w.steps.Close(); err != nil {
		return err
	}
	return w.detection.Close()
}
