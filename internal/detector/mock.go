package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu      sync.Mutex
	markers []Marker
	err     error
	calls   int
	closed  bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetMarkers sets the markers that will be returned by Detect.
func (m *MockDetector) SetMarkers(markers []Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = markers
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured markers or error.
func (m *MockDetector) Detect(gray *gocv.Mat) ([]Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.markers == nil {
		return nil, nil
	}
	out := make([]Marker, len(m.markers))
	copy(out, m.markers)
	return out, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// StopMarker returns a STOP marker (id 5) whose pixel size is px.
func StopMarker(px float64) Marker {
	return Square(5, 100, 100, px)
}
