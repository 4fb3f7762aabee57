package bus

import (
	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis/event"
)

func MissingReference(message string) {
	Publish(partybus.Event{
		Type:  event.MissingReference,
		Value: message,
	})
}

func Violation(message string) {
	Publish(partybus.Event{
		Type:  event.ViolationFound,
		Value: message,
	})
}

func Report(report string) {
	Publish(partybus.Event{
		Type:  event.NonRootCommandFinished,
		Value: report,
	})
}
