package display

import (
	"image"
	"image/color"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/capture"
)

// Panel titles of the processing-steps composite, in row-major order.
var StepTitles = [4]string{
	"1. Original Gray",
	"2. Gaussian Blur",
	"3. CLAHE Enhanced",
	"4. Adaptive Threshold",
}

// ComposeSteps tiles the four preprocessing stages into a 2x2 grayscale
// image of width x height, each panel titled. The caller must Close the
// result. An empty Mat is returned when stages is nil.
func ComposeSteps(s *capture.Stages, width, height int) gocv.Mat {
	if s == nil || width < 2 || height < 2 {
		return gocv.NewMat()
	}

	panelSize := image.Pt(width/2, height/2)
	scale := fontScale(width)
	thickness := max(1, int(scale))

	panels := [4]gocv.Mat{}
	for i, src := range []gocv.Mat{s.Gray, s.Blurred, s.Enhanced, s.Threshold} {
		panels[i] = gocv.NewMat()
		defer panels[i].Close()
		gocv.Resize(src, &panels[i], panelSize, 0, 0, gocv.InterpolationLinear)

		// The threshold panel is mostly white.
		c := color.RGBA{255, 255, 255, 0}
		if i == 3 {
			c = color.RGBA{0, 0, 0, 0}
		}
		gocv.PutText(&panels[i], StepTitles[i], image.Pt(10, 40), font, scale, c, thickness)
	}

	top := gocv.NewMat()
	defer top.Close()
	bottom := gocv.NewMat()
	defer bottom.Close()
	gocv.Hconcat(panels[0], panels[1], &top)
	gocv.Hconcat(panels[2], panels[3], &bottom)

	out := gocv.NewMat()
	gocv.Vconcat(top, bottom, &out)
	return out
}

// fontScale grows panel titles with the window width, within [0.8, 2.0].
func fontScale(width int) float64 {
	return min(2.0, max(0.8, float64(width)/800))
}

// SaveSnapshot writes img to path, replacing any existing file. The format
// follows the path extension.
func SaveSnapshot(path string, img gocv.Mat) error {
	if img.Empty() {
		return errors.New("snapshot: nothing to save")
	}
	if !gocv.IMWrite(path, img) {
		return errors.Newf("snapshot: failed to write %s", path)
	}
	return nil
}
