package ui

import (
	"io"

	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis/event"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
	"github.com/anchore/forbiddenapis/internal/log"
)

type ReportConfig struct {
	Option     presenter.Option
	WithColor  bool
	Descriptor models.Descriptor
}

type loggerUI struct {
	unsubscribe  func() error
	reportOutput io.Writer
	config       ReportConfig
	findings     []models.Finding
}

// NewLoggerUI leaves progress to the application logger, collects findings as they are published and writes the
// final report to the given writer.
func NewLoggerUI(reportWriter io.Writer, cfg ReportConfig) UI {
	return &loggerUI{
		reportOutput: reportWriter,
		config:       cfg,
	}
}

func (l *loggerUI) Setup(unsubscribe func() error) error {
	l.unsubscribe = unsubscribe
	return nil
}

func (l *loggerUI) Handle(e partybus.Event) error {
	switch e.Type {
	case event.CheckStarted:
		if err := handleCheckStarted(e); err != nil {
			log.Warnf("unable to show check started event: %+v", err)
		}
		return nil
	case event.MissingReference, event.ViolationFound:
		finding, err := parseFinding(e)
		if err != nil {
			log.Warnf("unable to record finding: %+v", err)
			return nil
		}
		l.findings = append(l.findings, finding)
		return nil
	case event.CheckFinished:
		if err := handleCheckFinished(e, l.reportOutput, l.config, l.findings); err != nil {
			log.Warnf("unable to show check finished event: %+v", err)
		}
	case event.NonRootCommandFinished:
		if err := handleNonRootCommandFinished(e, l.reportOutput); err != nil {
			log.Warnf("unable to show command finished event: %+v", err)
		}
	// ignore all other events
	default:
		return nil
	}

	// this is the last expected event, stop listening to events
	return l.unsubscribe()
}

func (l *loggerUI) Teardown(_ bool) error {
	return nil
}
