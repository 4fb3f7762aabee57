package event

import "github.com/wagoodman/go-partybus"

const (
	// CheckStarted is published once class artifacts have been collected. It carries a monitor.Checking.
	CheckStarted partybus.EventType = "forbiddenapis-check-started"
	// MissingReference is published for every type or member the engine could not resolve.
	MissingReference partybus.EventType = "forbiddenapis-missing-reference"
	// ViolationFound is published for every forbidden signature match.
	ViolationFound partybus.EventType = "forbiddenapis-violation-found"
	// CheckFinished carries the final Outcome of a run, including early terminations.
	CheckFinished partybus.EventType = "forbiddenapis-check-finished"
	// NonRootCommandFinished carries the text report of an auxiliary command.
	NonRootCommandFinished partybus.EventType = "forbiddenapis-non-root-command-finished"
)
