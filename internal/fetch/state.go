package fetch

import "fmt"

// State is a step of the fetch state machine
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateNegotiating
	StateTransferring
	StateReconciling
	StateDisconnected
	// StateAborted is terminal and reachable from any non-terminal state
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateNegotiating:  "negotiating",
	StateTransferring: "transferring",
	StateReconciling:  "reconciling",
	StateDisconnected: "disconnected",
	StateAborted:      "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether no transition leaves s
func (s State) IsTerminal() bool {
	return s == StateDisconnected || s == StateAborted
}
