package monitor

import "github.com/wagoodman/go-progress"

// Checking follows a verification run from the moment its class files are known until the engine finishes.
type Checking struct {
	ClassesLoaded     progress.Progressable
	ViolationsFound   progress.Monitorable
	MissingReferences progress.Monitorable
}
