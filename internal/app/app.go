// Package app provides the frame loop that ties capture, detection, the
// decision pipeline, presentation and operator commands together.
package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/capture"
	"github.com/ayusman/signpost/internal/clock"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/logger"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/plugin"
	"github.com/ayusman/signpost/internal/sign"
	"github.com/ayusman/signpost/internal/store"
)

func log() *zap.SugaredLogger { return logger.Named("app") }

// DefaultSnapshotPath is where the processing-steps composite is saved.
const DefaultSnapshotPath = "processing_steps.png"

// Sink receives every rendered frame.
type Sink interface {
	Present(v display.View) error
}

// Console is an interactive display that also reads keys and shows
// confirmation banners.
type Console interface {
	PollKey() int
	Confirm(o calibration.Outcome)
}

// CommandSource yields queued remote commands, or calibration.None.
type CommandSource interface {
	Poll() calibration.Command
}

// Hooks receives action hook requests. Dispatch must not block.
type Hooks interface {
	Dispatch(req plugin.Request) bool
}

// Config holds the collaborators and settings of the frame loop. Camera and
// Detector are required; everything else is optional.
type Config struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Pipeline    pipeline.Config
	Calibration calibration.Settings

	// Console, when set, is polled for keys before Commands.
	Console  Console
	Sinks    []Sink
	Commands CommandSource
	Store    *store.Store
	Hooks    Hooks
	Clock    clock.Clock

	SnapshotPath string
	// Source names the frame source in the journal.
	Source string
}

// App is the perception loop. It is the single owner of the focal length
// and the STOP dwell state; Run must not be called concurrently.
type App struct {
	config Config
	pre    *capture.Preprocessor
	focal  *calibration.Controller
	clock  clock.Clock

	dwell      dwell.State
	lastAction sign.Action
	lastFrame  time.Time
	session    string
	steps      gocv.Mat
	frames     int
	closed     bool
}

// New creates an App. Zero-valued settings fall back to their defaults.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if config.Pipeline == (pipeline.Config{}) {
		config.Pipeline = pipeline.DefaultConfig()
	}
	if config.Calibration == (calibration.Settings{}) {
		config.Calibration = calibration.DefaultSettings()
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.SnapshotPath == "" {
		config.SnapshotPath = DefaultSnapshotPath
	}

	return &App{
		config: config,
		pre:    capture.NewPreprocessor(),
		focal:  calibration.NewController(config.Calibration),
		clock:  config.Clock,
		steps:  gocv.NewMat(),
	}, nil
}

// Run opens the camera and processes frames until Quit is requested, ctx is
// cancelled, or the camera fails. A camera failure is returned wrapped so
// that errors.Is(err, capture.ErrCapture) holds.
func (a *App) Run(ctx context.Context) error {
	if !a.config.Camera.IsOpen() {
		if err := a.config.Camera.Open(); err != nil {
			return errors.Mark(errors.Wrap(err, "open camera"), capture.ErrCapture)
		}
	}

	a.startSession()
	defer a.endSession()

	log().Infow("Perception loop started", "source", a.config.Source, "focal", a.focal.Focal())
	for {
		if ctx.Err() != nil {
			log().Infow("Perception loop cancelled", "frames", a.frames)
			return nil
		}

		quit, err := a.processFrame()
		if err != nil {
			log().Errorw("Capture failed", "error", err, "frames", a.frames)
			return err
		}
		if quit {
			log().Infow("Perception loop stopped", "frames", a.frames)
			return nil
		}
	}
}

// Focal returns the current focal length.
func (a *App) Focal() int {
	return a.focal.Focal()
}

// Dwell returns the STOP dwell state carried into the next frame.
func (a *App) Dwell() dwell.State {
	return a.dwell
}

// Session returns the journal session id, or "" without a store.
func (a *App) Session() string {
	return a.session
}

// Frames returns how many frames have been processed.
func (a *App) Frames() int {
	return a.frames
}

// Close releases the camera, the detector and the image buffers. Calling it
// more than once is a no-op.
func (a *App) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	a.pre.Close()
	a.steps.Close()

	var err error
	if cerr := a.config.Detector.Close(); cerr != nil {
		err = errors.CombineErrors(err, errors.Wrap(cerr, "close detector"))
	}
	if cerr := a.config.Camera.Close(); cerr != nil {
		err = errors.CombineErrors(err, errors.Wrap(cerr, "close camera"))
	}
	return err
}

func (a *App) startSession() {
	if a.config.Store == nil {
		return
	}
	sess, err := a.config.Store.Sessions().Start(a.config.Source, a.focal.Focal())
	if err != nil {
		log().Warnw("Failed to start journal session", "error", err)
		return
	}
	a.session = sess.ID
}

func (a *App) endSession() {
	if a.session == "" {
		return
	}
	if err := a.config.Store.Sessions().End(a.session, a.focal.Focal()); err != nil {
		log().Warnw("Failed to end journal session", "session", a.session, "error", err)
	}
}
