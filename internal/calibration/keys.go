package calibration

// Raw key codes. Arrow keys arrive under different codes depending on the
// windowing backend, so each direction accepts several.
const (
	keyEsc  = 27
	keyNone = 255
)

var (
	upKeys   = []int{82, 0, 65}
	downKeys = []int{84, 1, 66}
)

// CommandForKey maps a key code as returned by a window's WaitKey to a
// Command. Negative values (no key) and unmapped keys give None.
func CommandForKey(key int) Command {
	if key < 0 {
		return None
	}
	key &= 0xFF
	if key == keyNone {
		return None
	}

	for _, k := range upKeys {
		if key == k {
			return Increase
		}
	}
	for _, k := range downKeys {
		if key == k {
			return Decrease
		}
	}

	switch key {
	case keyEsc:
		return Quit
	case 's', 'S':
		return Snapshot
	case 'w', 'W':
		return Increase
	case 'd', 'D':
		return Decrease
	case 'r', 'R':
		return Reset
	case 'c', 'C':
		return Guidance
	}
	return None
}
