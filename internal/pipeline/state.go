package pipeline

// State is the driver's position in its state machine:
// Idle → Stage1 → Stage2 → Stage3 → Stage4 → Stage5 → Stage6 → Done, with
// PartialDone reachable from any stage (cancellation) and EarlyDone
// reachable only from Stage1 (core produced no writes).
type State int

const (
	Idle State = iota
	Stage1
	Stage2
	Stage3
	Stage4
	Stage5
	Stage6
	Done
	PartialDone
	EarlyDone
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Stage1:
		return "Stage1"
	case Stage2:
		return "Stage2"
	case Stage3:
		return "Stage3"
	case Stage4:
		return "Stage4"
	case Stage5:
		return "Stage5"
	case Stage6:
		return "Stage6"
	case Done:
		return "Done"
	case PartialDone:
		return "PartialDone"
	case EarlyDone:
		return "EarlyDone"
	default:
		return "Unknown"
	}
}
