package text

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
)

// Presenter renders findings as a borderless table followed by a one line summary.
type Presenter struct {
	document  models.Document
	withColor bool
}

func NewPresenter(doc models.Document, withColor bool) *Presenter {
	return &Presenter{
		document:  doc,
		withColor: withColor,
	}
}

func (p *Presenter) Present(output io.Writer) error {
	if len(p.document.Findings) > 0 {
		p.renderFindings(output)
	}
	_, err := io.WriteString(output, p.summary()+"\n")
	return err
}

func (p *Presenter) renderFindings(output io.Writer) {
	table := tablewriter.NewWriter(output)
	table.SetHeader([]string{"Kind", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(true)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, f := range p.document.Findings {
		row := []string{f.Kind, f.Message}
		if p.withColor {
			table.Rich(row, []tablewriter.Colors{findingColor(f.Kind), {}})
		} else {
			table.Append(row)
		}
	}
	table.Render()
}

func findingColor(kind string) tablewriter.Colors {
	if kind == models.ViolationFinding {
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor}
	}
	return tablewriter.Colors{tablewriter.Normal, tablewriter.FgYellowColor}
}

func (p *Presenter) summary() string {
	o := p.document.Outcome
	var status string
	switch {
	case o.Failed():
		status = p.paint(color.Red, "FAILED")
	case o.Skipped:
		status = p.paint(color.Yellow, "SKIPPED")
	default:
		status = p.paint(color.Green, "PASSED")
	}

	line := fmt.Sprintf("%s scanned %s class file(s) (%s), %d forbidden API invocation(s), %d missing reference(s)",
		status,
		humanize.Comma(int64(o.ScannedCount)),
		humanize.Bytes(uint64(o.ScannedBytes)),
		o.Violations,
		o.MissingReferences,
	)
	switch {
	case o.Skipped:
		line += ": " + o.SkipReason
	case o.Error != "":
		line += ": " + o.Error
	}
	return line
}

func (p *Presenter) paint(c color.Color, s string) string {
	if !p.withColor {
		return s
	}
	return c.Sprint(s)
}
