package models

import "github.com/anchore/forbiddenapis/forbiddenapis"

const (
	ViolationFinding = "violation"
	MissingFinding   = "missing-reference"
)

// Finding is one message reported by the engine while the check was running.
type Finding struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Document is the complete report of one run.
type Document struct {
	Outcome    forbiddenapis.Outcome `json:"outcome"`
	Findings   []Finding             `json:"findings"`
	Descriptor Descriptor            `json:"descriptor"`
}
