package forbiddenapis

import "fmt"

// State is a step of the verification state machine.
type State int

const (
	Init State = iota
	ResolvingRuntime
	LoadingSignatures
	EnumeratingClasses
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case ResolvingRuntime:
		return "resolving-runtime"
	case LoadingSignatures:
		return "loading-signatures"
	case EnumeratingClasses:
		return "enumerating-classes"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome describes one verification run.
type Outcome struct {
	State State `json:"state"`
	// Skipped is set when the run ended early without failing (unsupported runtime, no class files).
	Skipped           bool   `json:"skipped"`
	SkipReason        string `json:"skipReason,omitempty"`
	Supported         bool   `json:"supported"`
	Runtime           string `json:"runtime,omitempty"`
	ScannedCount      int    `json:"scannedCount"`
	ScannedBytes      int64  `json:"scannedBytes"`
	Violations        int    `json:"violations"`
	MissingReferences int    `json:"missingReferences"`
	ErrorKind         string `json:"errorKind,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Failed reports whether the run aborted.
func (o Outcome) Failed() bool {
	return o.State == Aborted
}
