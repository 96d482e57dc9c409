package detector

import (
	"image/color"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// ErrUnknownDictionary is returned for dictionary names not in Dictionaries.
var ErrUnknownDictionary = errors.New("unknown marker dictionary")

// Dictionaries maps configuration names to predefined marker families.
var Dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":         gocv.ArucoDict4x4_50,
	"5x5_50":         gocv.ArucoDict5x5_50,
	"6x6_250":        gocv.ArucoDict6x6_250,
	"aruco_original": gocv.ArucoDictArucoOriginal,
	"apriltag_16h5":  gocv.ArucoDictAprilTag_16h5,
	"apriltag_25h9":  gocv.ArucoDictAprilTag_25h9,
	"apriltag_36h10": gocv.ArucoDictAprilTag_36h10,
	"apriltag_36h11": gocv.ArucoDictAprilTag_36h11,
}

// LookupDictionary resolves a dictionary name, case-insensitively.
func LookupDictionary(name string) (gocv.ArucoDictionaryCode, error) {
	code, ok := Dictionaries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(Dictionaries))
		for n := range Dictionaries {
			names = append(names, n)
		}
		sort.Strings(names)
		return 0, errors.WithHintf(
			errors.Wrapf(ErrUnknownDictionary, "%q", name),
			"supported dictionaries: %s", strings.Join(names, ", "))
	}
	return code, nil
}

// ArucoDetector implements Detector with OpenCV's ArUco module.
type ArucoDetector struct {
	config   Config
	detector gocv.ArucoDetector
	mu       sync.Mutex
	closed   bool
}

// NewArucoDetector creates a detector for the configured dictionary.
func NewArucoDetector(config Config) (*ArucoDetector, error) {
	code, err := LookupDictionary(config.Dictionary)
	if err != nil {
		return nil, err
	}

	params := gocv.NewArucoDetectorParameters()
	params.SetAdaptiveThreshWinSizeMin(config.AdaptiveThreshWinSizeMin)
	params.SetAdaptiveThreshWinSizeMax(config.AdaptiveThreshWinSizeMax)
	params.SetAdaptiveThreshWinSizeStep(config.AdaptiveThreshWinSizeStep)
	params.SetAdaptiveThreshConstant(config.AdaptiveThreshConstant)
	params.SetMinMarkerPerimeterRate(config.MinMarkerPerimeterRate)
	params.SetMaxMarkerPerimeterRate(config.MaxMarkerPerimeterRate)
	params.SetPolygonalApproxAccuracyRate(config.PolygonalApproxAccuracyRate)
	params.SetMinCornerDistanceRate(config.MinCornerDistanceRate)
	params.SetMinDistanceToBorder(config.MinDistanceToBorder)
	params.SetCornerRefinementMethod(config.CornerRefinementMethod)
	params.SetCornerRefinementWinSize(config.CornerRefinementWinSize)
	params.SetCornerRefinementMaxIterations(config.CornerRefinementMaxIterations)

	dict := gocv.GetPredefinedDictionary(code)

	return &ArucoDetector{
		config:   config,
		detector: gocv.NewArucoDetectorWithParams(dict, params),
	}, nil
}

// Detect finds markers in a grayscale frame.
func (d *ArucoDetector) Detect(gray *gocv.Mat) ([]Marker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector is closed")
	}
	if gray == nil || gray.Empty() {
		return nil, nil
	}

	corners, ids, _ := d.detector.DetectMarkers(*gray)
	if len(ids) == 0 {
		return nil, nil
	}

	markers := make([]Marker, 0, len(ids))
	for i, id := range ids {
		if i >= len(corners) || len(corners[i]) < 4 {
			continue
		}
		m := Marker{ID: id}
		for j := 0; j < 4; j++ {
			m.Corners[j] = Point{X: float64(corners[i][j].X), Y: float64(corners[i][j].Y)}
		}
		markers = append(markers, m)
	}

	return markers, nil
}

// Close releases the underlying OpenCV detector.
func (d *ArucoDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.detector.Close()
	d.closed = true
	return nil
}

// ToPoint2f converts markers back to the corner layout gocv drawing
// functions expect.
func ToPoint2f(markers []Marker) ([][]gocv.Point2f, []int) {
	corners := make([][]gocv.Point2f, len(markers))
	ids := make([]int, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
		corners[i] = make([]gocv.Point2f, 4)
		for j, p := range m.Corners {
			corners[i][j] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
		}
	}
	return corners, ids
}

// GenerateMarker renders a printable marker: a grayscale image of the
// marker at side pixels (one-bit black border) surrounded by a white quiet
// zone of margin pixels. The caller must Close the result.
func GenerateMarker(dict gocv.ArucoDictionaryCode, id, side, margin int) (gocv.Mat, error) {
	if side <= 0 || margin < 0 {
		return gocv.NewMat(), errors.Newf("invalid marker size %d with margin %d", side, margin)
	}

	img := gocv.NewMat()
	defer img.Close()
	gocv.ArucoGenerateImageMarker(dict, id, side, img, 1)
	if img.Empty() {
		return gocv.NewMat(), errors.Newf("generate marker %d", id)
	}

	out := gocv.NewMat()
	gocv.CopyMakeBorder(img, &out, margin, margin, margin, margin, gocv.BorderConstant, color.RGBA{255, 255, 255, 0})
	return out, nil
}
