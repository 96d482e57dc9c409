// Package sign turns detected fiducial markers into navigation signs: it
// estimates how far away a marker is, decides whether that estimate can be
// trusted, and looks up the action the marker encodes.
package sign

// DefaultTagWidthCm is the printed edge length of the markers, in the middle
// of the 8-10 cm range the detector parameters are tuned for.
const DefaultTagWidthCm = 9.0

// Estimator converts a marker's apparent size into a distance using the
// pinhole camera approximation.
type Estimator struct {
	TagWidthCm float64
}

// NewEstimator returns an Estimator for markers of the given physical width.
func NewEstimator(tagWidthCm float64) Estimator {
	return Estimator{TagWidthCm: tagWidthCm}
}

// Distance returns (TagWidthCm * focal) / pixelSize. ok is false when
// pixelSize is not strictly positive; such markers carry no usable geometry.
func (e Estimator) Distance(pixelSize float64, focal int) (cm float64, ok bool) {
	if pixelSize <= 0 {
		return 0, false
	}
	return e.TagWidthCm * float64(focal) / pixelSize, true
}
