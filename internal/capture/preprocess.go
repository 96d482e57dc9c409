package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Preprocessing constants
const (
	// BlurSize is the Gaussian kernel size. It is kept small so marker edges stay sharp.
	BlurSize = 3
	// CLAHEClipLimit and CLAHETileSize configure local contrast enhancement.
	CLAHEClipLimit = 3.0
	CLAHETileSize  = 8
	// ThresholdBlockSize and ThresholdC configure the diagnostic adaptive threshold.
	ThresholdBlockSize = 11
	ThresholdC         = 7
)

// Stages holds every intermediate image of one preprocessed frame. Enhanced
// is the image markers are detected in; the others are kept for the
// processing-steps view.
type Stages struct {
	Gray      gocv.Mat
	Blurred   gocv.Mat
	Enhanced  gocv.Mat
	Threshold gocv.Mat
}

// Close releases all stage images.
func (s *Stages) Close() {
	if s == nil {
		return
	}
	s.Gray.Close()
	s.Blurred.Close()
	s.Enhanced.Close()
	s.Threshold.Close()
}

// Preprocessor prepares camera frames for marker detection:
//
//  1. Convert to grayscale
//  2. Gaussian blur (3x3) to suppress sensor noise
//  3. CLAHE (clip 3.0, 8x8 tiles) to lift contrast under uneven lighting
//  4. Adaptive mean threshold of the enhanced image, for display only
type Preprocessor struct {
	clahe gocv.CLAHE
	mu    sync.Mutex
}

// NewPreprocessor creates a Preprocessor. Close must be called to release
// the CLAHE instance.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		clahe: gocv.NewCLAHEWithParams(CLAHEClipLimit, image.Point{X: CLAHETileSize, Y: CLAHETileSize}),
	}
}

// Process runs the preprocessing chain on a BGR or grayscale frame. It
// returns nil for an empty frame. The caller must Close the returned Stages.
func (p *Preprocessor) Process(frame *gocv.Mat) *Stages {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil
	}

	s := &Stages{
		Gray:      gocv.NewMat(),
		Blurred:   gocv.NewMat(),
		Enhanced:  gocv.NewMat(),
		Threshold: gocv.NewMat(),
	}

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &s.Gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&s.Gray)
	}

	gocv.GaussianBlur(s.Gray, &s.Blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	p.clahe.Apply(s.Blurred, &s.Enhanced)

	gocv.AdaptiveThreshold(s.Enhanced, &s.Threshold, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, ThresholdBlockSize, ThresholdC)

	return s
}

// Close releases resources used by the preprocessor.
func (p *Preprocessor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clahe.Close()
}
