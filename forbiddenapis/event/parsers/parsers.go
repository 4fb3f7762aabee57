package parsers

import (
	"fmt"

	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis"
	"github.com/anchore/forbiddenapis/forbiddenapis/event"
	"github.com/anchore/forbiddenapis/forbiddenapis/event/monitor"
)

type ErrBadPayload struct {
	Type  partybus.EventType
	Field string
	Value interface{}
}

func (e *ErrBadPayload) Error() string {
	return fmt.Sprintf("event='%s' has bad event payload field='%v': '%+v'", string(e.Type), e.Field, e.Value)
}

func newPayloadErr(t partybus.EventType, field string, value interface{}) error {
	return &ErrBadPayload{
		Type:  t,
		Field: field,
		Value: value,
	}
}

func checkEventType(actual, expected partybus.EventType) error {
	if actual != expected {
		return newPayloadErr(expected, "Type", actual)
	}
	return nil
}

func ParseCheckStarted(e partybus.Event) (*monitor.Checking, error) {
	if err := checkEventType(e.Type, event.CheckStarted); err != nil {
		return nil, err
	}

	mon, ok := e.Value.(monitor.Checking)
	if !ok {
		return nil, newPayloadErr(e.Type, "Value", e.Value)
	}

	return &mon, nil
}

func ParseMissingReference(e partybus.Event) (string, error) {
	return parseMessage(e, event.MissingReference)
}

func ParseViolationFound(e partybus.Event) (string, error) {
	return parseMessage(e, event.ViolationFound)
}

func parseMessage(e partybus.Event, expected partybus.EventType) (string, error) {
	if err := checkEventType(e.Type, expected); err != nil {
		return "", err
	}

	msg, ok := e.Value.(string)
	if !ok {
		return "", newPayloadErr(e.Type, "Value", e.Value)
	}

	return msg, nil
}

func ParseCheckFinished(e partybus.Event) (*forbiddenapis.Outcome, error) {
	if err := checkEventType(e.Type, event.CheckFinished); err != nil {
		return nil, err
	}

	outcome, ok := e.Value.(forbiddenapis.Outcome)
	if !ok {
		return nil, newPayloadErr(e.Type, "Value", e.Value)
	}

	return &outcome, nil
}

func ParseNonRootCommandFinished(e partybus.Event) (*string, error) {
	if err := checkEventType(e.Type, event.NonRootCommandFinished); err != nil {
		return nil, err
	}

	result, ok := e.Value.(string)
	if !ok {
		return nil, newPayloadErr(e.Type, "Value", e.Value)
	}

	return &result, nil
}
