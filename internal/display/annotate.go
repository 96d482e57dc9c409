package display

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/sign"
)

// Overlay colors.
var (
	colorMarkerBorder = gocv.NewScalar(0, 255, 0, 0)
	colorMarkerID     = color.RGBA{30, 255, 30, 0}
	colorMarkerAction = color.RGBA{220, 220, 0, 0}
	colorFiltered     = color.RGBA{128, 128, 128, 0}
	colorStopTimer    = color.RGBA{255, 0, 0, 0}
	colorFPS          = color.RGBA{0, 0, 255, 0}
	colorAction       = color.RGBA{255, 120, 0, 0}
	colorDistance     = color.RGBA{200, 200, 0, 0}
	colorDetected     = color.RGBA{0, 255, 255, 0}
	colorFocal        = color.RGBA{255, 255, 0, 0}
	colorHelp         = color.RGBA{200, 200, 200, 0}
	colorBlack        = color.RGBA{0, 0, 0, 0}

	colorIncrease = color.RGBA{0, 255, 0, 0}
	colorDecrease = color.RGBA{255, 100, 0, 0}
	colorReset    = color.RGBA{0, 255, 255, 0}
)

const font = gocv.FontHersheySimplex

// Annotate returns a BGR copy of frame with the report drawn on it: marker
// borders and labels, the STOP timer, the status block, the highlighted
// focal length and the key help. The caller must Close the result.
func Annotate(frame *gocv.Mat, r pipeline.Report) gocv.Mat {
	out := gocv.NewMat()
	if frame == nil || frame.Empty() {
		return out
	}
	if frame.Channels() == 1 {
		gocv.CvtColor(*frame, &out, gocv.ColorGrayToBGR)
	} else {
		frame.CopyTo(&out)
	}

	drawMarkers(&out, r)
	drawStatus(&out, r)
	return out
}

func drawMarkers(img *gocv.Mat, r pipeline.Report) {
	accepted := make([]detector.Marker, 0, len(r.Overlays))
	for _, o := range r.Overlays {
		if o.Accepted {
			accepted = append(accepted, detector.Marker{ID: o.ID, Corners: o.Corners})
		}
	}
	if len(accepted) > 0 {
		corners, ids := detector.ToPoint2f(accepted)
		gocv.ArucoDrawDetectedMarkers(*img, corners, ids, colorMarkerBorder)
	}

	for _, o := range r.Overlays {
		c := image.Pt(int(o.Center.X), int(o.Center.Y))
		if !o.Accepted {
			gocv.PutText(img, fmt.Sprintf("ID:%d (FILTERED)", o.ID), c.Add(image.Pt(-50, 0)), font, 0.5, colorFiltered, 1)
			continue
		}

		gocv.PutText(img, fmt.Sprintf("ID:%d", o.ID), c.Add(image.Pt(-30, 0)), font, 0.7, colorMarkerID, 2)
		gocv.PutText(img, o.Action.String(), c.Add(image.Pt(-60, 28)), font, 1, colorMarkerAction, 3)

		if o.Primary && o.Action == sign.Stop && r.Dwell.Phase != dwell.Idle {
			timer := fmt.Sprintf("STOP: %.1fs", r.Dwell.Elapsed.Seconds())
			gocv.PutText(img, timer, c.Add(image.Pt(-40, 55)), font, 0.8, colorStopTimer, 2)
		}
	}
}

func drawStatus(img *gocv.Mat, r pipeline.Report) {
	gocv.PutText(img, fmt.Sprintf("FPS: %.1f", r.FPS), image.Pt(12, 36), font, 0.9, colorFPS, 2)
	gocv.PutText(img, "Action: "+r.Action, image.Pt(13, 75), font, 0.8, colorAction, 2)
	gocv.PutText(img, "Distance: "+r.Distance, image.Pt(13, 110), font, 0.8, colorDistance, 2)
	gocv.PutText(img, fmt.Sprintf("Detected: %d tags", r.Detected), image.Pt(13, 145), font, 0.7, colorDetected, 2)

	focal := fmt.Sprintf("Focal Length: %d", r.Focal)
	size, baseline := gocv.GetTextSizeWithBaseline(focal, font, 0.7, 2)
	box := image.Rect(10, 160, 10+size.X+6, 160+size.Y+baseline+6)
	gocv.Rectangle(img, box, colorBlack, -1)
	gocv.PutText(img, focal, image.Pt(13, 180), font, 0.7, colorFocal, 2)

	help := calibration.HelpLines()
	for i, line := range help {
		y := img.Rows() - 20*(len(help)-i)
		gocv.PutText(img, line, image.Pt(13, y), font, 0.6, colorHelp, 1)
	}
}

// DrawConfirmation draws a calibration confirmation banner near the top
// centre of img.
func DrawConfirmation(img *gocv.Mat, o calibration.Outcome) {
	if img == nil || img.Empty() || o.Message == "" {
		return
	}

	c := colorIncrease
	offset := 150
	switch o.Command {
	case calibration.Decrease:
		c = colorDecrease
	case calibration.Reset:
		c = colorReset
		offset = 180
	}
	gocv.PutText(img, o.Message, image.Pt(img.Cols()/2-offset, 50), font, 1.0, c, 3)
}
