package json

import (
	"encoding/json"
	"io"

	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
)

// Presenter writes the report document as indented JSON.
type Presenter struct {
	document models.Document
}

func NewPresenter(doc models.Document) *Presenter {
	return &Presenter{document: doc}
}

func (p *Presenter) Present(output io.Writer) error {
	doc := p.document
	if doc.Findings == nil {
		doc.Findings = []models.Finding{}
	}
	enc := json.NewEncoder(output)
	// prevent > and < from being escaped in the payload
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	return enc.Encode(&doc)
}
