package calibration

// DefaultQueueSize is the number of remote commands buffered between polls.
const DefaultQueueSize = 8

// Queue carries commands from remote surfaces (HTTP, tray) to the frame
// loop. Producers never block; the loop takes at most one command per
// frame with Poll.
type Queue struct {
	ch chan Command
}

// NewQueue creates a Queue holding up to size pending commands.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Command, size)}
}

// Push enqueues cmd. It reports false when cmd is None or the queue is full.
func (q *Queue) Push(cmd Command) bool {
	if cmd == None {
		return false
	}
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Poll returns the oldest pending command, or None.
func (q *Queue) Poll() Command {
	select {
	case cmd := <-q.ch:
		return cmd
	default:
		return None
	}
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return len(q.ch)
}
