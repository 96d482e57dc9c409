package calibration

import "fmt"

// GuidanceTitle heads the calibration instructions.
const GuidanceTitle = "Focal length calibration"

// GuidanceLines returns the operator instructions for tuning the focal
// length against a marker at a known distance.
func GuidanceLines(resetFocal int) []string {
	return []string{
		"1. Place an AprilTag at a known distance (for example 30cm)",
		"2. Watch the displayed distance value",
		"3. If the displayed distance is shorter than the real one, press UP (or W) to increase the focal length",
		"4. If the displayed distance is longer than the real one, press DOWN (or D) to decrease the focal length",
		"5. Repeat until the displayed distance matches the real distance",
		fmt.Sprintf("6. Press R to reset the focal length to %d", resetFocal),
	}
}

// HelpLines are the key hints drawn at the bottom of the detection view.
func HelpLines() []string {
	return []string{
		"ESC: Exit | S: Save | UP/DOWN or W/D: Focal",
		"R: Reset focal | C: Calibration mode",
	}
}
