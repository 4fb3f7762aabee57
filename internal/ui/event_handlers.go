package ui

import (
	"fmt"
	"io"

	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis/event"
	"github.com/anchore/forbiddenapis/forbiddenapis/event/parsers"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
	"github.com/anchore/forbiddenapis/internal/log"
)

func parseFinding(e partybus.Event) (models.Finding, error) {
	if e.Type == event.MissingReference {
		msg, err := parsers.ParseMissingReference(e)
		return models.Finding{Kind: models.MissingFinding, Message: msg}, err
	}
	msg, err := parsers.ParseViolationFound(e)
	return models.Finding{Kind: models.ViolationFinding, Message: msg}, err
}

func handleCheckStarted(e partybus.Event) error {
	mon, err := parsers.ParseCheckStarted(e)
	if err != nil {
		return fmt.Errorf("bad CheckStarted event: %w", err)
	}
	log.Infof("checking %d class file(s) for forbidden API invocations", mon.ClassesLoaded.Size())
	return nil
}

func handleCheckFinished(e partybus.Event, reportOutput io.Writer, cfg ReportConfig, findings []models.Finding) error {
	outcome, err := parsers.ParseCheckFinished(e)
	if err != nil {
		return fmt.Errorf("bad CheckFinished event: %w", err)
	}

	doc := models.Document{
		Outcome:    *outcome,
		Findings:   findings,
		Descriptor: cfg.Descriptor,
	}
	pres := presenter.GetPresenter(cfg.Option, doc, cfg.WithColor)
	if pres == nil {
		return fmt.Errorf("unsupported report format: %s", cfg.Option)
	}
	if err := pres.Present(reportOutput); err != nil {
		return fmt.Errorf("unable to show forbidden API report: %w", err)
	}
	return nil
}

func handleNonRootCommandFinished(e partybus.Event, reportOutput io.Writer) error {
	// show the report to stdout
	result, err := parsers.ParseNonRootCommandFinished(e)
	if err != nil {
		return fmt.Errorf("bad NonRootCommandFinished event: %w", err)
	}

	if _, err := reportOutput.Write([]byte(*result)); err != nil {
		return fmt.Errorf("unable to show command report: %w", err)
	}
	return nil
}
