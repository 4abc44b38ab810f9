package syncer

import "fmt"

// State is the lifecycle state of one sync run.
type State string

const (
	StateCreated    State = "created"
	StateFetching   State = "fetching"
	StateEnriching  State = "enriching"
	StateMerging    State = "merging"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// transitions lists the legal next states. Fetching may complete directly
// when the catalog has no work. Terminal states have no entry.
var transitions = map[State][]State{
	StateCreated:    {StateFetching, StateFailed},
	StateFetching:   {StateEnriching, StateCompleted, StateFailed},
	StateEnriching:  {StateMerging, StateFailed},
	StateMerging:    {StatePersisting, StateFailed},
	StatePersisting: {StateCompleted, StateFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

type runState struct {
	current State
}

func newRunState() *runState {
	return &runState{current: StateCreated}
}

func (r *runState) to(next State) error {
	for _, allowed := range transitions[r.current] {
		if allowed == next {
			r.current = next
			return nil
		}
	}
	return fmt.Errorf("illegal sync run transition %s -> %s", r.current, next)
}
