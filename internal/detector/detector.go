package detector

import "gocv.io/x/gocv"

// Detector defines the interface for fiducial marker detection implementations.
type Detector interface {
	// Detect analyzes a single-channel image and returns the markers found.
	// Returns an empty slice if no markers are detected. Ids are unique
	// within one call; ordering is unspecified.
	Detect(gray *gocv.Mat) ([]Marker, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Corner refinement methods understood by the ArUco detector.
const (
	CornerRefineNone    = 0
	CornerRefineSubpix  = 1
	CornerRefineContour = 2
)

// Config holds configuration options for marker detection.
type Config struct {
	// Dictionary names the marker family, e.g. "apriltag_36h11".
	Dictionary string

	// Adaptive thresholding window sizes and constant.
	AdaptiveThreshWinSizeMin  int
	AdaptiveThreshWinSizeMax  int
	AdaptiveThreshWinSizeStep int
	AdaptiveThreshConstant    float64

	// Marker perimeter bounds relative to the image size.
	MinMarkerPerimeterRate float64
	MaxMarkerPerimeterRate float64

	PolygonalApproxAccuracyRate float64
	MinCornerDistanceRate       float64
	MinDistanceToBorder         int

	// Corner refinement; sub-pixel corners matter for distance accuracy.
	CornerRefinementMethod        int
	CornerRefinementWinSize       int
	CornerRefinementMaxIterations int
}

// DefaultConfig returns a Config tuned for 8-10 cm AprilTag 36h11 markers.
func DefaultConfig() Config {
	return Config{
		Dictionary: "apriltag_36h11",

		AdaptiveThreshWinSizeMin:  3,
		AdaptiveThreshWinSizeMax:  23,
		AdaptiveThreshWinSizeStep: 10,
		AdaptiveThreshConstant:    7,

		// Small printed tags need a low minimum perimeter.
		MinMarkerPerimeterRate: 0.02,
		MaxMarkerPerimeterRate: 4.0,

		PolygonalApproxAccuracyRate: 0.05,
		MinCornerDistanceRate:       0.05,
		MinDistanceToBorder:         3,

		CornerRefinementMethod:        CornerRefineSubpix,
		CornerRefinementWinSize:       5,
		CornerRefinementMaxIterations: 30,
	}
}
