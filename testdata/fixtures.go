// Package testdata builds synthetic camera frames containing printed
// markers, so detection can be exercised without a camera.
package testdata

import (
	"image"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// Frame size used by the synthetic fixtures.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// Placement positions one marker on a synthetic frame.
type Placement struct {
	ID   int
	X, Y int
	Side int
}

// MarkerImage renders a single marker of the given side in pixels as a
// grayscale Mat with a one-bit border.
func MarkerImage(dict gocv.ArucoDictionaryCode, id, side int) (gocv.Mat, error) {
	img := gocv.NewMat()
	gocv.ArucoGenerateImageMarker(dict, id, side, img, 1)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), errors.Newf("generate marker %d", id)
	}
	return img, nil
}

// SyntheticFrame returns a white BGR frame with the given markers drawn on
// it. The caller is responsible for closing the returned Mat.
func SyntheticFrame(dict gocv.ArucoDictionaryCode, placements ...Placement) (*gocv.Mat, error) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)

	for _, p := range placements {
		if p.X < 0 || p.Y < 0 || p.X+p.Side > FrameWidth || p.Y+p.Side > FrameHeight {
			frame.Close()
			return nil, errors.Newf("marker %d at (%d,%d) side %d does not fit the frame", p.ID, p.X, p.Y, p.Side)
		}

		gray, err := MarkerImage(dict, p.ID, p.Side)
		if err != nil {
			frame.Close()
			return nil, err
		}
		bgr := gocv.NewMat()
		gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
		gray.Close()

		roi := frame.Region(image.Rect(p.X, p.Y, p.X+p.Side, p.Y+p.Side))
		bgr.CopyTo(&roi)
		roi.Close()
		bgr.Close()
	}

	return &frame, nil
}

// Sequence returns n copies of the same synthetic frame, for replay through
// a mock camera.
func Sequence(n int, dict gocv.ArucoDictionaryCode, placements ...Placement) ([]*gocv.Mat, error) {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		f, err := SyntheticFrame(dict, placements...)
		if err != nil {
			for _, f := range frames {
				f.Close()
			}
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
