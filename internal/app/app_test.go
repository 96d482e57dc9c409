package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/capture"
	"github.com/ayusman/signpost/internal/clock"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/plugin"
	"github.com/ayusman/signpost/internal/store"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// recordingSink keeps every report and optionally advances a mock clock
// after each frame.
type recordingSink struct {
	mu      sync.Mutex
	reports []pipeline.Report
	steps   []bool
	clock   *clock.Mock
	advance time.Duration
}

func (s *recordingSink) Present(v display.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, v.Report)
	s.steps = append(s.steps, v.Steps != nil && !v.Steps.Empty())
	if s.clock != nil {
		s.clock.Advance(s.advance)
	}
	return nil
}

type failingSink struct{ calls int }

func (s *failingSink) Present(display.View) error {
	s.calls++
	return errors.New("sink offline")
}

// scriptedConsole returns keys in order, then -1.
type scriptedConsole struct {
	keys     []int
	confirms []calibration.Outcome
}

func (c *scriptedConsole) PollKey() int {
	if len(c.keys) == 0 {
		return -1
	}
	k := c.keys[0]
	c.keys = c.keys[1:]
	return k
}

func (c *scriptedConsole) Confirm(o calibration.Outcome) {
	c.confirms = append(c.confirms, o)
}

type recordingHooks struct {
	requests []plugin.Request
}

func (h *recordingHooks) Dispatch(req plugin.Request) bool {
	h.requests = append(h.requests, req)
	return true
}

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type harness struct {
	app    *App
	camera *capture.MockCamera
	det    *detector.MockDetector
	clock  *clock.Mock
	sink   *recordingSink
}

func newHarness(t *testing.T, frames int, configure func(*Config)) *harness {
	t.Helper()

	h := &harness{
		camera: capture.NewMockCamera(blankFrames(t, frames), false),
		det:    detector.NewMockDetector(),
		clock:  clock.NewMock(epoch),
	}
	h.sink = &recordingSink{clock: h.clock}

	cfg := Config{
		Camera:       h.camera,
		Detector:     h.det,
		Clock:        h.clock,
		Sinks:        []Sink{h.sink},
		SnapshotPath: filepath.Join(t.TempDir(), "steps.png"),
		Source:       "mock",
	}
	if configure != nil {
		configure(&cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	h.app = a
	return h
}

func TestNew_RequiresCameraAndDetector(t *testing.T) {
	_, err := New(Config{Detector: detector.NewMockDetector()})
	assert.Error(t, err)

	_, err = New(Config{Camera: capture.NewMockCamera(nil, false)})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(Config{Camera: capture.NewMockCamera(nil, false), Detector: detector.NewMockDetector()})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, calibration.DefaultFocal, a.Focal())
	assert.Equal(t, pipeline.DefaultConfig(), a.config.Pipeline)
	assert.Equal(t, DefaultSnapshotPath, a.config.SnapshotPath)
	assert.Equal(t, dwell.Idle, a.Dwell().Phase)
}

func TestRun_CaptureFailureIsFatal(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.det.SetMarkers([]detector.Marker{detector.Square(4, 10, 10, 90)})

	err := h.app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, capture.ErrCapture))

	require.Len(t, h.sink.reports, 3)
	for _, r := range h.sink.reports {
		assert.Equal(t, "FORWARD", r.Action)
		assert.Equal(t, "100.0cm", r.Distance)
		assert.Equal(t, 1000, r.Focal)
	}
	assert.Equal(t, []bool{true, true, true}, h.sink.steps)
	assert.Equal(t, 3, h.app.Frames())
}

func TestRun_NoFrames(t *testing.T) {
	h := newHarness(t, 0, nil)

	err := h.app.Run(context.Background())
	assert.True(t, errors.Is(err, capture.ErrCapture))
	assert.Empty(t, h.sink.reports)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.app.Run(ctx))
	assert.Equal(t, 0, h.camera.Reads())
}

func TestRun_FPS(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.sink.advance = 50 * time.Millisecond

	h.app.Run(context.Background())

	require.Len(t, h.sink.reports, 3)
	assert.Zero(t, h.sink.reports[0].FPS)
	assert.InDelta(t, 20.0, h.sink.reports[1].FPS, 1e-9)
	assert.InDelta(t, 20.0, h.sink.reports[2].FPS, 1e-9)
}

func TestRun_DetectorErrorTreatedAsNoDetections(t *testing.T) {
	h := newHarness(t, 2, nil)
	h.det.SetError(errors.New("detector exploded"))

	err := h.app.Run(context.Background())
	assert.True(t, errors.Is(err, capture.ErrCapture))

	require.Len(t, h.sink.reports, 2)
	assert.Equal(t, pipeline.NoAction, h.sink.reports[0].Action)
	assert.Equal(t, 0, h.sink.reports[0].Detected)
	assert.Equal(t, 2, h.det.Calls())
}

func TestRun_SinkErrorsDoNotStopTheLoop(t *testing.T) {
	failing := &failingSink{}
	h := newHarness(t, 2, func(c *Config) { c.Sinks = append(c.Sinks, failing) })

	h.app.Run(context.Background())
	assert.Equal(t, 2, failing.calls)
	assert.Len(t, h.sink.reports, 2)
}

func TestRun_StopDwellConfirmation(t *testing.T) {
	hooks := &recordingHooks{}
	st := newTestStore(t)
	h := newHarness(t, 5, func(c *Config) {
		c.Hooks = hooks
		c.Store = st
	})
	h.sink.advance = time.Second
	h.det.SetMarkers([]detector.Marker{detector.StopMarker(45)})

	h.app.Run(context.Background())

	require.Len(t, h.sink.reports, 5)
	wantPhases := []dwell.Phase{dwell.Dwelling, dwell.Dwelling, dwell.Dwelling, dwell.Confirmed, dwell.Confirmed}
	for i, r := range h.sink.reports {
		assert.Equal(t, wantPhases[i], r.Dwell.Phase, "frame %d", i)
		assert.Equal(t, "200.0cm", r.Distance)
	}
	assert.Equal(t, pipeline.StopPending, h.sink.reports[0].Action)
	assert.Equal(t, "STOP", h.sink.reports[3].Action)
	assert.Equal(t, 3*time.Second, h.sink.reports[3].Dwell.Elapsed)

	// STOP hooks only fire on confirmation, once.
	require.Len(t, hooks.requests, 1)
	assert.Equal(t, "STOP", hooks.requests[0].Action)
	assert.Equal(t, string(store.EventStopConfirmed), hooks.requests[0].Event)
	assert.Equal(t, 5, hooks.requests[0].MarkerID)
	assert.Equal(t, h.app.Session(), hooks.requests[0].SessionID)

	actions, err := st.Events().Count(h.app.Session(), store.EventAction)
	require.NoError(t, err)
	assert.Equal(t, 1, actions)

	confirmed, err := st.Events().Count(h.app.Session(), store.EventStopConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
}

func TestRun_ActionChangesAreJournaled(t *testing.T) {
	hooks := &recordingHooks{}
	st := newTestStore(t)
	h := newHarness(t, 4, func(c *Config) {
		c.Hooks = hooks
		c.Store = st
	})

	sequence := [][]detector.Marker{
		{detector.Square(4, 10, 10, 90)},
		{detector.Square(4, 10, 10, 90)},
		nil,
		{detector.Square(3, 10, 10, 90)},
	}
	calls := 0
	h.sink.clock = nil
	h.app.config.Sinks = append(h.app.config.Sinks, sinkFunc(func(display.View) error {
		calls++
		if calls < len(sequence) {
			h.det.SetMarkers(sequence[calls])
		}
		return nil
	}))
	h.det.SetMarkers(sequence[0])

	h.app.Run(context.Background())

	events, err := st.Events().List(store.EventFilter{SessionID: h.app.Session(), Kind: store.EventAction})
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, "TURN LEFT", events[0].Action)
	assert.Equal(t, "FORWARD", events[1].Action)
	require.NotNil(t, events[1].DistanceCm)
	assert.InDelta(t, 100.0, *events[1].DistanceCm, 1e-9)

	require.Len(t, hooks.requests, 2)
	assert.Equal(t, "FORWARD", hooks.requests[0].Action)
	assert.Equal(t, "TURN LEFT", hooks.requests[1].Action)

	sess, err := st.Sessions().GetByID(h.app.Session())
	require.NoError(t, err)
	assert.NotNil(t, sess.EndedAt)
	require.NotNil(t, sess.FocalEnd)
	assert.Equal(t, 1000, *sess.FocalEnd)
}

type sinkFunc func(display.View) error

func (f sinkFunc) Present(v display.View) error { return f(v) }

func TestRun_RemoteCommands(t *testing.T) {
	queue := calibration.NewQueue(8)
	st := newTestStore(t)
	h := newHarness(t, 10, func(c *Config) {
		c.Commands = queue
		c.Store = st
	})
	h.det.SetMarkers([]detector.Marker{detector.Square(4, 10, 10, 90)})

	queue.Push(calibration.Increase)
	queue.Push(calibration.Increase)
	queue.Push(calibration.Decrease)
	queue.Push(calibration.Reset)
	queue.Push(calibration.Quit)

	require.NoError(t, h.app.Run(context.Background()))

	// One command per frame; quit is applied on the fifth.
	assert.Equal(t, 5, h.camera.Reads())
	focals := []int{}
	for _, r := range h.sink.reports {
		focals = append(focals, r.Focal)
	}
	assert.Equal(t, []int{1000, 1010, 1020, 1010, 1000}, focals)
	assert.Equal(t, "101.0cm", h.sink.reports[1].Distance)

	// Headless holds pause the loop on the clock.
	assert.Equal(t, 3*calibration.AdjustHold+calibration.ResetHold, h.clock.Slept())

	events, err := st.Events().List(store.EventFilter{Kind: store.EventCalibration})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "FOCAL LENGTH RESET: 1000", events[0].Detail)
	assert.Equal(t, "FOCAL LENGTH: 1010 (+10)", events[3].Detail)
}

func TestRun_KeyboardBeforeQueue(t *testing.T) {
	queue := calibration.NewQueue(8)
	console := &scriptedConsole{keys: []int{'w', -1, 'd', 27}}
	h := newHarness(t, 10, func(c *Config) {
		c.Commands = queue
		c.Console = console
	})
	queue.Push(calibration.Reset)

	require.NoError(t, h.app.Run(context.Background()))

	// Frame 1: key w. Frame 2: no key, so the queued reset. Frame 3: key d. Frame 4: ESC.
	assert.Equal(t, 4, h.camera.Reads())
	assert.Equal(t, 990, h.app.Focal())

	require.Len(t, console.confirms, 3)
	assert.Equal(t, calibration.Increase, console.confirms[0].Command)
	assert.Equal(t, calibration.Reset, console.confirms[1].Command)
	assert.Equal(t, "FOCAL LENGTH: 990 (-10)", console.confirms[2].Message)
	assert.Zero(t, h.clock.Slept())
}

func TestRun_Snapshot(t *testing.T) {
	queue := calibration.NewQueue(8)
	st := newTestStore(t)
	h := newHarness(t, 3, func(c *Config) {
		c.Commands = queue
		c.Store = st
	})
	queue.Push(calibration.Snapshot)
	queue.Push(calibration.Guidance)
	queue.Push(calibration.Quit)

	require.NoError(t, h.app.Run(context.Background()))

	info, err := os.Stat(h.app.config.SnapshotPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	img := gocv.IMRead(h.app.config.SnapshotPath, gocv.IMReadUnchanged)
	defer img.Close()
	assert.Equal(t, 120, img.Rows())
	assert.Equal(t, 160, img.Cols())

	events, err := st.Events().List(store.EventFilter{Kind: store.EventSnapshot})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, h.app.config.SnapshotPath, events[0].Detail)

	// Guidance does not change the focal length.
	assert.Equal(t, 1000, h.app.Focal())
}

func TestRun_SnapshotFailureIsNotFatal(t *testing.T) {
	queue := calibration.NewQueue(8)
	h := newHarness(t, 2, func(c *Config) {
		c.Commands = queue
		c.SnapshotPath = filepath.Join(t.TempDir(), "missing", "dir", "steps.png")
	})
	queue.Push(calibration.Snapshot)

	err := h.app.Run(context.Background())
	assert.True(t, errors.Is(err, capture.ErrCapture))
	assert.Len(t, h.sink.reports, 2)
}

func TestApp_Close(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.app.Run(context.Background())

	require.NoError(t, h.app.Close())
	assert.True(t, h.det.Closed())
	assert.False(t, h.camera.IsOpen())
}
