package pipeline

// State is a step of the per-image state machine.
type State string

// States in the order they are entered. DONE is always reached.
const (
	StateDetecting      State = "DETECTING"
	StateRefining       State = "REFINING"
	StateExtractingText State = "EXTRACTING_TEXT"
	StateMatching       State = "MATCHING"
	StateScoring        State = "SCORING"
	StateDeduping       State = "DEDUPING"
	StateDone           State = "DONE"
)

// FullTrace is the sequence of a run that finds at least one candidate.
var FullTrace = []State{
	StateDetecting, StateRefining, StateExtractingText, StateMatching,
	StateScoring, StateDeduping, StateDone,
}

type tracker struct {
	trace   []State
	onState func(State)
}

func (t *tracker) enter(s State) {
	t.trace = append(t.trace, s)
	if t.onState != nil {
		t.onState(s)
	}
}
