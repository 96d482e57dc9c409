// Package capture provides camera capture and frame preprocessing using GoCV (OpenCV).
package capture

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 1080
	DefaultHeight = 720
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrCapture is returned when the source fails to produce a frame. The
	// frame loop treats it as fatal.
	ErrCapture = errors.New("capture failed")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configure a camera.
type Options struct {
	// Source is a device index ("0") or a video file path.
	Source string
	Width  int
	Height int
	FPS    int
}

// DefaultOptions returns the default device at 1080x720.
func DefaultOptions() Options {
	return Options{
		Source: "0",
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FPS:    DefaultFPS,
	}
}

// cameraImpl manages video capture from a camera device or file using GoCV.
type cameraImpl struct {
	opts    Options
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for the given device ID at the default size.
func NewCamera(deviceID int) Camera {
	opts := DefaultOptions()
	opts.Source = strconv.Itoa(deviceID)
	return NewCameraWithOptions(opts)
}

// NewCameraWithOptions creates a new Camera. Zero-valued size or FPS fields
// fall back to the defaults.
func NewCameraWithOptions(opts Options) Camera {
	def := DefaultOptions()
	if strings.TrimSpace(opts.Source) == "" {
		opts.Source = def.Source
	}
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	return &cameraImpl{
		opts: opts,
		fps:  opts.FPS,
	}
}

// device converts the configured source to what OpenVideoCapture expects:
// an int for device indices, the string itself for files and URLs.
func (c *cameraImpl) device() interface{} {
	if id, err := strconv.Atoi(c.opts.Source); err == nil {
		return id
	}
	return c.opts.Source
}

// Open opens the source for capturing frames and requests the configured
// resolution. Devices may ignore the request.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.device())
	if err != nil {
		return errors.Wrapf(err, "open video source %q", c.opts.Source)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.Wrapf(ErrCapture, "read frame from %q", c.opts.Source)
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.Wrap(ErrCapture, "captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
