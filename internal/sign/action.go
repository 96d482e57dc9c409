package sign

// Action is the navigation instruction encoded by a marker.
type Action string

// Known actions. Unknown is returned for ids outside the table.
const (
	NoEntry   Action = "NO ENTRY"
	DeadEnd   Action = "DEAD END"
	TurnRight Action = "TURN RIGHT"
	TurnLeft  Action = "TURN LEFT"
	Forward   Action = "FORWARD"
	Stop      Action = "STOP"
	Unknown   Action = "UNKNOWN"
)

// table maps marker ids to actions.
var table = map[int]Action{
	0: NoEntry,
	1: DeadEnd,
	2: TurnRight,
	3: TurnLeft,
	4: Forward,
	5: Stop,
}

// Resolve returns the action for a marker id, or Unknown.
func Resolve(id int) Action {
	if a, ok := table[id]; ok {
		return a
	}
	return Unknown
}

// Table returns a copy of the id to action mapping.
func Table() map[int]Action {
	out := make(map[int]Action, len(table))
	for id, a := range table {
		out[id] = a
	}
	return out
}

// IDs returns the mapped marker ids in ascending order.
func IDs() []int {
	return []int{0, 1, 2, 3, 4, 5}
}

func (a Action) String() string { return string(a) }
